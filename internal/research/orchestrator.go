package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/llm"
	"github.com/tbourn/go-garage-backend/internal/retail"
)

// Paths reported in Output.Path and the path metric. PathOffline marks the
// deterministic reply rendered when the model is unavailable.
const (
	PathDiscovery      = "discovery"
	PathProductFinding = "product_finding"
	PathQuickQuestion  = "quick_question"
	PathGeneral        = "general"
	PathOffline        = "offline"
)

const defaultMaxProducts = 12

var (
	pathTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_orchestrator_paths_total",
			Help: "Assistant replies by orchestrator path.",
		},
		[]string{"path"},
	)
	degradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_orchestrator_degraded_total",
			Help: "Research phases that failed and fell back to a plain reply.",
		},
		[]string{"phase"},
	)
)

func init() {
	prometheus.MustRegister(pathTotal, degradedTotal)
}

var errNoJSON = errors.New("research: no JSON object in model output")

// Input is everything the orchestrator needs for one user turn.
type Input struct {
	Message           string
	History           []Turn
	Vehicles          []domain.Vehicle
	CollectionSummary string
	// ResearchMode forces the discovery phase for the message.
	ResearchMode bool
	State        State
}

// Output is the reply and the state to persist. Metadata is nil for plain
// chat replies.
type Output struct {
	Reply    string
	Metadata *Metadata
	State    State
	Path     string
	Vehicle  *VehicleContext
}

// Orchestrator routes a user turn to discovery, product finding or a single
// LLM call.
type Orchestrator struct {
	LLM         llm.Generator
	Tools       *retail.Registry
	MaxProducts int
}

// NewOrchestrator wires an orchestrator. A nil generator behaves like
// llm.Disabled; a nil registry has no tools.
func NewOrchestrator(gen llm.Generator, tools *retail.Registry) *Orchestrator {
	if gen == nil {
		gen = llm.Disabled{}
	}
	if tools == nil {
		tools = retail.NewRegistry(0)
	}
	return &Orchestrator{LLM: gen, Tools: tools, MaxProducts: defaultMaxProducts}
}

// Respond produces the assistant reply for in. Research failures are logged
// and degrade to a plain reply. When the plain reply fails too, the products
// already fetched and the collection summary are rendered without the model;
// an error is returned only when there is neither.
func (o *Orchestrator) Respond(ctx context.Context, in Input) (*Output, error) {
	ctx, span := otel.Tracer("research/orchestrator").Start(ctx, "Respond")
	defer span.End()
	log := zerolog.Ctx(ctx)

	state := in.State.Normalize()
	cls := Classify(in.Message)
	history := make([]string, 0, len(in.History))
	for _, t := range in.History {
		history = append(history, t.Content)
	}
	vehicle := BindVehicle(in.Message, history, in.Vehicles)

	span.SetAttributes(
		attribute.String("research.intent", string(cls.Intent)),
		attribute.String("research.status", string(state.Status)),
		attribute.Bool("research.vehicle_bound", vehicle != nil),
	)

	newTopic := cls.Intent == IntentProductResearch && cls.Category != "" && cls.Category != state.ProductCategory
	var fetched []retail.Product
	switch {
	case state.AwaitingRefinement() && !newTopic:
		out, products, err := o.findProducts(ctx, in, state, vehicle)
		if err == nil {
			return o.done(out), nil
		}
		fetched = products
		degradedTotal.WithLabelValues(PathProductFinding).Inc()
		log.Warn().Err(err).Str("category", state.ProductCategory).Msg("product finding failed; falling back to chat")

	case cls.Intent == IntentProductResearch || in.ResearchMode:
		out, products, err := o.discover(ctx, in, cls, state, vehicle)
		if err == nil {
			return o.done(out), nil
		}
		fetched = products
		degradedTotal.WithLabelValues(PathDiscovery).Inc()
		log.Warn().Err(err).Str("category", cls.Category).Msg("discovery failed; falling back to chat")
	}

	out, err := o.oneShot(ctx, in, cls, state, vehicle)
	if err == nil {
		return o.done(out), nil
	}
	if len(fetched) == 0 && len(in.Vehicles) == 0 {
		return nil, err
	}
	summary := ""
	if len(in.Vehicles) > 0 {
		summary = in.CollectionSummary
	}
	degradedTotal.WithLabelValues(PathGeneral).Inc()
	log.Warn().Err(err).Int("products", len(fetched)).Msg("model unavailable; answering offline")
	return o.done(&Output{
		Reply:   FormatOffline(fetched, summary, vehicle),
		State:   state,
		Path:    PathOffline,
		Vehicle: vehicle,
	}), nil
}

func (o *Orchestrator) done(out *Output) *Output {
	pathTotal.WithLabelValues(out.Path).Inc()
	return out
}

func (o *Orchestrator) search(ctx context.Context, query string, v *VehicleContext) []retail.Product {
	p := retail.SearchParams{Query: query}
	if v != nil {
		p.Year, p.Make, p.Model = v.Year, v.Make, v.Model
	}
	products := o.Tools.ExecuteAllForVehicle(ctx, v.VehicleType(), p)
	if limit := o.MaxProducts; limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products
}

// discover and findProducts return the retailer products they fetched even
// when the model call fails, so the caller can still show them.
func (o *Orchestrator) discover(ctx context.Context, in Input, cls Classification, state State, vehicle *VehicleContext) (*Output, []retail.Product, error) {
	category := cls.Category
	if category == "" {
		category = "products"
	}
	query := category
	if cls.Category == "" {
		query = strings.TrimSpace(in.Message)
	}

	products := o.search(ctx, query, vehicle)
	resp, err := o.LLM.Generate(ctx, llm.Request{
		Prompt:      DiscoveryPrompt(category, in.Message, vehicle, products),
		System:      SystemPrompt(in.CollectionSummary, vehicle),
		WebSearch:   true,
		JSON:        true,
		Temperature: llm.Temperature(0.4),
	})
	if err != nil {
		return nil, products, fmt.Errorf("discovery: %w", err)
	}

	d := &DiscoveryResult{}
	if err := decodeJSON(resp.Text, d); err != nil {
		// Prose is still a usable discovery answer.
		d = &DiscoveryResult{Summary: resp.Text}
	}
	d.Category = category
	d.Products = products
	d.Sources = resp.Sources

	next := BeginDiscovery(state, category, query, vehicle, d)
	return &Output{
		Reply: FormatDiscovery(d, vehicle),
		Metadata: &Metadata{
			Type:            MetadataDiscovery,
			DiscoveryResult: d,
			VehicleContext:  vehicle,
			ResearchState:   next,
		},
		State:   next,
		Path:    PathDiscovery,
		Vehicle: vehicle,
	}, products, nil
}

func (o *Orchestrator) findProducts(ctx context.Context, in Input, state State, bound *VehicleContext) (*Output, []retail.Product, error) {
	vehicle := state.Vehicle
	if vehicle == nil {
		vehicle = bound
		state.Vehicle = bound
		if bound != nil {
			state.VehicleID = bound.ID
		}
	}

	query := RefineQuery(state, in.Message)
	products := o.search(ctx, query, vehicle)
	resp, err := o.LLM.Generate(ctx, llm.Request{
		Prompt:      RecommendationPrompt(state, in.Message, products),
		System:      SystemPrompt(in.CollectionSummary, vehicle),
		WebSearch:   true,
		JSON:        true,
		Temperature: llm.Temperature(0.2),
	})
	if err != nil {
		return nil, products, fmt.Errorf("product finding: %w", err)
	}

	r := &ResearchResult{}
	if err := decodeJSON(resp.Text, r); err != nil {
		return nil, products, fmt.Errorf("product finding: %w", err)
	}
	if len(r.Recommendations) == 0 {
		return nil, products, errors.New("product finding: model returned no recommendations")
	}
	r.Category = state.ProductCategory
	r.Products = products
	r.Sources = resp.Sources

	next := CompleteResearch(state, in.Message)
	next.Query = query
	return &Output{
		Reply: FormatRecommendations(r, vehicle),
		Metadata: &Metadata{
			Type:           MetadataProductResearch,
			ResearchResult: r,
			VehicleContext: vehicle,
			ResearchState:  next,
		},
		State:   next,
		Path:    PathProductFinding,
		Vehicle: vehicle,
	}, products, nil
}

func (o *Orchestrator) oneShot(ctx context.Context, in Input, cls Classification, state State, vehicle *VehicleContext) (*Output, error) {
	quick := cls.Intent == IntentQuickQuestion
	resp, err := o.LLM.Generate(ctx, llm.Request{
		Prompt:    ChatPrompt(in.History, in.Message),
		System:    SystemPrompt(in.CollectionSummary, vehicle),
		WebSearch: quick,
	})
	if err != nil {
		return nil, err
	}

	reply := strings.TrimSpace(resp.Text)
	if quick && len(resp.Sources) > 0 {
		var b strings.Builder
		b.WriteString(reply)
		b.WriteString("\n")
		writeSources(&b, resp.Sources)
		reply = strings.TrimSpace(b.String())
	}

	next := state
	if state.Status == StatusCompleted {
		next = Reset()
	}
	path := PathGeneral
	if quick {
		path = PathQuickQuestion
	}
	return &Output{Reply: reply, State: next, Path: path, Vehicle: vehicle}, nil
}

// RefineQuery narrows the discovery query with refinement words that name one
// of the discovered options (for example "lithium" or "AGM").
func RefineQuery(s State, refinement string) string {
	base := s.Query
	if base == "" {
		base = s.ProductCategory
	}
	if s.Discovery == nil || len(s.Discovery.Options) == 0 {
		return base
	}
	optionWords := map[string]bool{}
	for _, opt := range s.Discovery.Options {
		for w := range tokens(opt.Name) {
			if len(w) >= 3 {
				optionWords[w] = true
			}
		}
	}
	have := tokens(base)
	var extra []string
	for _, w := range wordRE.FindAllString(strings.ToLower(refinement), -1) {
		if optionWords[w] && !have[w] {
			extra = append(extra, w)
			have[w] = true
			if len(extra) == 3 {
				break
			}
		}
	}
	if len(extra) == 0 {
		return base
	}
	return strings.Join(extra, " ") + " " + base
}

func decodeJSON(text string, v any) error {
	raw := llm.ExtractJSON(text)
	if raw == "" {
		return errNoJSON
	}
	return json.Unmarshal([]byte(raw), v)
}
