// Package services – session titles
//
// A new session is stored with a heuristic title built from the first
// message. After the reply is sent, a TitleDispatcher hands a TitleJob to a
// TitleGenerator, which asks the LLM for a better title and falls back to the
// heuristic. Title work never blocks or fails a chat turn.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/llm"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/research"
)

const (
	// placeholder titles eligible for automatic replacement
	defaultTitleNew      = "New chat"
	defaultTitleUntitled = "Untitled"

	defaultTitleMaxLen  = 60
	defaultTitleTimeout = 20 * time.Second
)

var titleJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "title_jobs_total",
		Help: "Session title jobs by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(titleJobsTotal)
}

// TitleJob asks for the title of a freshly created session.
type TitleJob struct {
	ChatID  string `json:"chat_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
	Reply   string `json:"reply"`
	// Initial is the title stored at creation. A session renamed since then
	// is left alone.
	Initial string `json:"initial"`
}

// TitleDispatcher schedules title generation. Dispatch must return quickly
// and must not report failures to the caller.
type TitleDispatcher interface {
	Dispatch(ctx context.Context, job TitleJob)
}

// NoopTitleDispatcher drops every job.
type NoopTitleDispatcher struct{}

func (NoopTitleDispatcher) Dispatch(context.Context, TitleJob) {}

// TitleGenerator produces and stores session titles.
type TitleGenerator struct {
	DB     *gorm.DB
	LLM    llm.Generator
	MaxLen int
	Locale language.Tag
}

// NewTitleGenerator returns a generator; a nil LLM always uses the heuristic.
func NewTitleGenerator(db *gorm.DB, gen llm.Generator) *TitleGenerator {
	if gen == nil {
		gen = llm.Disabled{}
	}
	return &TitleGenerator{DB: db, LLM: gen, MaxLen: defaultTitleMaxLen, Locale: language.English}
}

// Title returns a title for the exchange. It never fails: LLM errors and
// unusable output fall back to the heuristic.
func (g *TitleGenerator) Title(ctx context.Context, message, reply string) string {
	resp, err := g.LLM.Generate(ctx, llm.Request{
		Prompt:      research.TitlePrompt(message, reply),
		Temperature: llm.Temperature(0.3),
	})
	if err == nil {
		if t := cleanTitle(resp.Text, g.MaxLen); t != "" {
			titleJobsTotal.WithLabelValues("generated").Inc()
			return t
		}
	} else if !errors.Is(err, llm.ErrNotConfigured) {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("title generation failed; using heuristic")
	}
	titleJobsTotal.WithLabelValues("fallback").Inc()
	return heuristicTitle(message, g.Locale, g.MaxLen)
}

// Apply generates a title for job and stores it unless the session has been
// renamed or deleted in the meantime.
func (g *TitleGenerator) Apply(ctx context.Context, job TitleJob) error {
	ctx, span := otel.Tracer("services/TitleGenerator").Start(ctx, "Apply",
		trace.WithAttributes(attribute.String("chat.id", job.ChatID)),
	)
	defer span.End()

	chat, err := repo.GetChat(ctx, g.DB, job.ChatID, job.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			titleJobsTotal.WithLabelValues("skipped").Inc()
			return nil
		}
		return err
	}
	if chat.Title != job.Initial && !shouldAutoTitle(chat.Title) {
		titleJobsTotal.WithLabelValues("skipped").Inc()
		return nil
	}

	title := g.Title(ctx, job.Message, job.Reply)
	if title == "" || title == chat.Title {
		return nil
	}
	return repo.UpdateChatTitle(ctx, g.DB, job.ChatID, job.UserID, title)
}

// AsyncTitleDispatcher runs each job on its own goroutine, detached from the
// request context.
type AsyncTitleDispatcher struct {
	Gen     *TitleGenerator
	Timeout time.Duration

	wg sync.WaitGroup
}

// NewAsyncTitleDispatcher wraps gen with the default timeout.
func NewAsyncTitleDispatcher(gen *TitleGenerator) *AsyncTitleDispatcher {
	return &AsyncTitleDispatcher{Gen: gen, Timeout: defaultTitleTimeout}
}

// Dispatch starts the job and returns immediately.
func (d *AsyncTitleDispatcher) Dispatch(ctx context.Context, job TitleJob) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTitleTimeout
	}
	logger := zerolog.Ctx(ctx).With().Str("chat_id", job.ChatID).Logger()
	base := logger.WithContext(context.WithoutCancel(ctx))

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				titleJobsTotal.WithLabelValues("failed").Inc()
				logger.Error().Interface("panic", r).Msg("title job panicked")
			}
		}()

		jobCtx, cancel := context.WithTimeout(base, timeout)
		defer cancel()
		if err := d.Gen.Apply(jobCtx, job); err != nil {
			titleJobsTotal.WithLabelValues("failed").Inc()
			logger.Warn().Err(err).Msg("title job failed")
		}
	}()
}

// Wait blocks until every dispatched job has finished.
func (d *AsyncTitleDispatcher) Wait() { d.wg.Wait() }

// shouldAutoTitle reports whether current is a placeholder title.
func shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultTitleNew) || t == strings.ToLower(defaultTitleUntitled)
}

// heuristicTitle derives a compact title from the first message: words
// title-cased, stop words dropped, at most 8 words.
func heuristicTitle(message string, locale language.Tag, maxLen int) string {
	toks := titleWordRE.FindAllString(strings.ToLower(strings.TrimSpace(message)), -1)
	if len(toks) == 0 {
		return ""
	}
	if locale == language.Und {
		locale = language.English
	}

	caser := cases.Title(locale)
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	if len(out) == 0 {
		return ""
	}
	return clipRunes(strings.Join(out, " "), maxLen)
}

// cleanTitle keeps the first line of model output without quotes, markdown
// or trailing punctuation.
func cleanTitle(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "Title:")
	s = strings.Trim(s, " \t\"'`*#")
	s = strings.TrimRight(s, ".!?:;,")
	s = normalizeTitle(s)
	if s == "" {
		return ""
	}
	return clipRunes(s, maxLen)
}

var titleWordRE = regexp.MustCompile(`[\p{L}\p{N}][\p{L}\p{N}-]*`)

var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"my": {}, "i": {}, "what": {}, "should": {}, "get": {}, "do": {}, "me": {},
}
