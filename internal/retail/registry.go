package retail

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var (
	// toolSearches counts tool executions by tool name and outcome
	// (ok, empty, error).
	toolSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_tool_searches_total",
			Help: "Retailer tool executions by outcome.",
		},
		[]string{"tool", "outcome"},
	)

	toolLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retail_tool_duration_seconds",
			Help:    "Duration of retailer tool searches in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20},
		},
		[]string{"tool"},
	)
)

func init() {
	prometheus.MustRegister(toolSearches, toolLatency)
}

// DefaultMaxParallel caps how many tools one batch runs at a time.
const DefaultMaxParallel = 8

// Registry holds the tools available at runtime. Registration normally
// happens once at startup; lookups are safe for concurrent use.
type Registry struct {
	// MaxParallel bounds concurrent tool searches per batch; <= 0 means
	// unbounded.
	MaxParallel int

	mu      sync.RWMutex
	tools   []Tool
	timeout time.Duration
}

// NewRegistry returns a registry whose per-tool searches are bounded by
// timeout (zero disables the bound).
func NewRegistry(timeout time.Duration, tools ...Tool) *Registry {
	r := &Registry{timeout: timeout, MaxParallel: DefaultMaxParallel}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register appends a tool. Nil tools are ignored.
func (r *Registry) Register(t Tool) {
	if t == nil {
		return
	}
	r.mu.Lock()
	r.tools = append(r.tools, t)
	r.mu.Unlock()
}

// ToolsFor returns the tools tagged with vt, in registration order.
func (r *Registry) ToolsFor(vt VehicleType) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, t := range r.tools {
		if supports(t, vt) {
			out = append(out, t)
		}
	}
	return out
}

// ExecuteAllForVehicle runs every tool registered for vt concurrently, at
// most MaxParallel at a time, and flattens their results in registration order. A tool that errors or panics
// is logged and contributes nothing; the batch never fails. With no tools the
// result is an empty, non-nil slice.
func (r *Registry) ExecuteAllForVehicle(ctx context.Context, vt VehicleType, p SearchParams) []Product {
	tools := r.ToolsFor(vt)
	out := make([]Product, 0)
	if len(tools) == 0 {
		return out
	}

	ctx, span := otel.Tracer("retail/registry").Start(ctx, "ExecuteAllForVehicle")
	defer span.End()
	span.SetAttributes(
		attribute.String("vehicle.type", string(vt)),
		attribute.Int("tools.count", len(tools)),
	)

	// run recovers panics and reports errors as empty results, so the group
	// only bounds concurrency and never fails.
	results := make([][]Product, len(tools))
	var g errgroup.Group
	if r.MaxParallel > 0 {
		g.SetLimit(r.MaxParallel)
	}
	for i, t := range tools {
		g.Go(func() error {
			results[i] = r.run(ctx, t, p)
			return nil
		})
	}
	_ = g.Wait()

	for _, rs := range results {
		out = append(out, rs...)
	}
	span.SetAttributes(attribute.Int("products.count", len(out)))
	return out
}

func (r *Registry) run(ctx context.Context, t Tool, p SearchParams) (products []Product) {
	lg := zerolog.Ctx(ctx).With().Str("tool", t.Name()).Logger()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		toolLatency.WithLabelValues(t.Name()).Observe(time.Since(start).Seconds())
		if rec := recover(); rec != nil {
			lg.Error().Str("panic", fmt.Sprint(rec)).Msg("retail tool panicked")
			toolSearches.WithLabelValues(t.Name(), "error").Inc()
			products = nil
		}
	}()

	res, err := t.Search(ctx, p)
	switch {
	case err != nil:
		lg.Warn().Err(err).Str("query", p.Query).Msg("retail tool failed")
		toolSearches.WithLabelValues(t.Name(), "error").Inc()
		return nil
	case len(res) == 0:
		toolSearches.WithLabelValues(t.Name(), "empty").Inc()
	default:
		toolSearches.WithLabelValues(t.Name(), "ok").Inc()
	}
	return res
}
