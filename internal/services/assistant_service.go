// Package services – AssistantService
//
// AssistantService runs one chat turn: it resolves or creates the session,
// loads the collection and recent history, restores the research state,
// asks the orchestrator for a reply and persists the exchange. Upstream and
// persistence failures are logged and never fail the turn; only invalid
// input and unknown sessions are reported to the caller.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/research"
)

// FallbackReply is stored and returned when no reply could be generated.
const FallbackReply = "Sorry, I couldn't put an answer together right now. Please try again in a moment."

const defaultHistoryLimit = 20

// Responder produces the assistant reply for a turn.
type Responder interface {
	Respond(ctx context.Context, in research.Input) (*research.Output, error)
}

// ChatInput is one user turn.
type ChatInput struct {
	Message      string
	SessionID    string
	CollectionID string
	ResearchMode bool
}

// ChatOutput is the reply returned to the client.
type ChatOutput struct {
	Message            string
	SessionID          string
	Metadata           *research.Metadata
	AssistantMessageID string
	// Created is true when this turn opened the session.
	Created bool
}

// AssistantService coordinates a chat turn.
type AssistantService struct {
	DB           *gorm.DB
	Orchestrator Responder
	Titles       TitleDispatcher

	// HistoryLimit is the number of prior messages passed to the orchestrator.
	HistoryLimit int
	// MaxMessageRunes rejects longer messages when > 0.
	MaxMessageRunes int
	TitleMaxLen     int

	Now func() time.Time
}

// NewAssistantService wires a service with default limits and no title
// dispatch.
func NewAssistantService(db *gorm.DB, orch Responder) *AssistantService {
	return &AssistantService{
		DB:           db,
		Orchestrator: orch,
		Titles:       NoopTitleDispatcher{},
		HistoryLimit: defaultHistoryLimit,
		TitleMaxLen:  defaultTitleMaxLen,
	}
}

// Chat runs a turn for userID.
func (s *AssistantService) Chat(ctx context.Context, userID string, in ChatInput) (*ChatOutput, error) {
	tr := otel.Tracer("services/AssistantService")
	ctx, span := tr.Start(ctx, "Chat",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("collection.id", in.CollectionID),
			attribute.Bool("research_mode", in.ResearchMode),
		),
	)
	defer span.End()

	msg := strings.TrimSpace(in.Message)
	collectionID := strings.TrimSpace(in.CollectionID)
	switch {
	case msg == "":
		return nil, ErrEmptyMessage
	case collectionID == "":
		return nil, ErrMissingCollection
	case s.MaxMessageRunes > 0 && utf8.RuneCountInString(msg) > s.MaxMessageRunes:
		return nil, ErrTooLong
	}

	chat, created, err := s.resolveChat(ctx, userID, strings.TrimSpace(in.SessionID), collectionID, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve session")
		return nil, err
	}
	span.SetAttributes(attribute.String("chat.id", chat.ID), attribute.Bool("chat.created", created))

	log := zerolog.Ctx(ctx).With().Str("chat_id", chat.ID).Logger()
	ctx = log.WithContext(ctx)

	vehicles, history := s.loadContext(ctx, userID, collectionID, chat.ID, created)
	state := s.loadState(ctx, chat.ID)

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	input := research.Input{
		Message:           msg,
		History:           history,
		Vehicles:          vehicles,
		CollectionSummary: CollectionSummary(vehicles, now),
		ResearchMode:      in.ResearchMode,
		State:             state,
	}

	out, err := s.Orchestrator.Respond(ctx, input)
	if err != nil || out == nil || strings.TrimSpace(out.Reply) == "" {
		log.Error().Err(err).Msg("assistant reply failed; using fallback")
		out = &research.Output{Reply: FallbackReply, State: state}
	} else {
		span.SetAttributes(attribute.String("research.path", out.Path))
	}

	if _, err := repo.CreateMessage(ctx, s.DB, chat.ID, domain.RoleUser, msg, nil); err != nil {
		log.Error().Err(err).Msg("persist user message failed")
	}
	meta, err := encodeMetadata(out.Metadata)
	if err != nil {
		log.Error().Err(err).Msg("encode reply metadata failed")
	}
	result := &ChatOutput{Message: out.Reply, SessionID: chat.ID, Metadata: out.Metadata, Created: created}
	if am, err := repo.CreateMessage(ctx, s.DB, chat.ID, domain.RoleAssistant, out.Reply, meta); err != nil {
		log.Error().Err(err).Msg("persist assistant message failed")
	} else {
		result.AssistantMessageID = am.ID
	}

	s.saveState(ctx, userID, chat.ID, out.State)
	if err := repo.TouchChat(ctx, s.DB, chat.ID); err != nil {
		log.Warn().Err(err).Msg("touch session failed")
	}

	if created && s.Titles != nil {
		s.Titles.Dispatch(ctx, TitleJob{
			ChatID:  chat.ID,
			UserID:  userID,
			Message: msg,
			Reply:   out.Reply,
			Initial: chat.Title,
		})
	}
	return result, nil
}

// resolveChat loads sessionID for userID, or creates a session titled from
// the first message when sessionID is empty.
func (s *AssistantService) resolveChat(ctx context.Context, userID, sessionID, collectionID, msg string) (*domain.Chat, bool, error) {
	if sessionID != "" {
		c, err := repo.GetChat(ctx, s.DB, sessionID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, ErrChatNotFound
			}
			return nil, false, fmt.Errorf("load session: %w", err)
		}
		return c, false, nil
	}

	title := heuristicTitle(msg, language.English, s.TitleMaxLen)
	if title == "" {
		title = defaultTitleNew
	}
	c, err := repo.CreateChat(ctx, s.DB, userID, collectionID, title)
	if err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	return c, true, nil
}

// loadContext reads the collection's vehicles and the recent history
// concurrently. Read failures are logged and leave the slice empty.
func (s *AssistantService) loadContext(ctx context.Context, userID, collectionID, chatID string, fresh bool) ([]domain.Vehicle, []research.Turn) {
	log := zerolog.Ctx(ctx)
	limit := s.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var (
		wg       sync.WaitGroup
		vehicles []domain.Vehicle
		msgs     []domain.Message
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		vs, err := repo.ListVehicles(ctx, s.DB, userID, collectionID)
		if err != nil {
			log.Warn().Err(err).Msg("load vehicles failed")
			return
		}
		vehicles = vs
	}()
	if !fresh {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ms, err := repo.ListRecentMessages(ctx, s.DB, chatID, limit)
			if err != nil {
				log.Warn().Err(err).Msg("load history failed")
				return
			}
			msgs = ms
		}()
	}
	wg.Wait()

	history := make([]research.Turn, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, research.Turn{Role: m.Role, Content: m.Content})
	}
	return vehicles, history
}

// loadState restores the research state from the research_sessions row,
// falling back to the metadata of the last assistant message.
func (s *AssistantService) loadState(ctx context.Context, chatID string) research.State {
	log := zerolog.Ctx(ctx)

	rs, err := repo.GetResearchSession(ctx, s.DB, chatID)
	switch {
	case err == nil:
		var st research.State
		if len(rs.State) > 0 {
			if uerr := json.Unmarshal(rs.State, &st); uerr != nil {
				log.Warn().Err(uerr).Msg("decode research state failed")
				return research.Reset()
			}
		}
		return st.Normalize()
	case !errors.Is(err, gorm.ErrRecordNotFound):
		log.Warn().Err(err).Msg("load research state failed")
	}

	m, err := repo.LastAssistantMessage(ctx, s.DB, chatID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn().Err(err).Msg("load last assistant message failed")
		}
		return research.Reset()
	}
	if st, ok := research.StateFromMetadata(m.Metadata); ok {
		return st
	}
	return research.Reset()
}

func (s *AssistantService) saveState(ctx context.Context, userID, chatID string, st research.State) {
	st = st.Normalize()
	raw, err := json.Marshal(st)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("encode research state failed")
		return
	}
	rs := &domain.ResearchSession{ChatID: chatID, UserID: userID, Status: string(st.Status), State: datatypes.JSON(raw)}
	if err := repo.SaveResearchSession(ctx, s.DB, rs); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("persist research state failed")
	}
}

func encodeMetadata(m *research.Metadata) (datatypes.JSON, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
