// Chat HTTP handlers.
//
// This file exposes the assistant endpoints:
//   - POST /chat               (one turn; creates the session on first message)
//   - GET  /chat/suggestions   (four starter prompts; anonymous callers allowed)
//
// Handlers are transport-thin: they validate input, call application services
// and translate results into HTTP responses. Idempotent retries of POST /chat
// are answered from the stored assistant message.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/http/middleware"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/services"
	"github.com/tbourn/go-garage-backend/internal/transfer"
)

//
// Service contracts (context-aware)
//

// AssistantService runs chat turns.
type AssistantService interface {
	Chat(ctx context.Context, userID string, in services.ChatInput) (*services.ChatOutput, error)
}

// SuggestionService returns starter prompts. It never fails.
type SuggestionService interface {
	Suggestions(ctx context.Context, userID, collectionID string) []string
}

// SessionService manages chat sessions outside a turn.
type SessionService interface {
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) error
	Delete(ctx context.Context, userID, chatID string) error
}

// MessageService lists the transcript of a session.
type MessageService interface {
	ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
}

// TransferService moves vehicles in and out of a collection in bulk.
type TransferService interface {
	Export(ctx context.Context, userID, collectionID string, f transfer.Format, w io.Writer) error
	Import(ctx context.Context, userID, collectionID, format, filename string, data []byte) (*services.ImportReport, error)
	Match(ctx context.Context, userID, collectionID string, filenames, titles []string) ([]transfer.FileMatch, error)
}

// VehicleService reads vehicles.
type VehicleService interface {
	List(ctx context.Context, userID, collectionID string) ([]domain.Vehicle, error)
	Get(ctx context.Context, userID, id string) (*domain.Vehicle, error)
	Stats(ctx context.Context, userID, collectionID string) (int64, *time.Time, error)
}

//
// Handler wiring
//

// Deps are the collaborators of Handlers. DB, when set, backs conditional
// list responses and idempotent replays; both are skipped without it.
type Deps struct {
	DB          *gorm.DB
	Assistant   AssistantService
	Suggestions SuggestionService
	Sessions    SessionService
	Messages    MessageService
	Transfer    TransferService
	Vehicles    VehicleService

	// MaxMessageRunes rejects longer chat messages at the edge when > 0.
	MaxMessageRunes int
	// IdempotencyTTL is how long a chat result can be replayed (default 24h).
	IdempotencyTTL time.Duration
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	d Deps
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	if d.IdempotencyTTL <= 0 {
		d.IdempotencyTTL = 24 * time.Hour
	}
	return &Handlers{d: d}
}

//
// DTOs
//

// ChatRequest is one user turn.
type ChatRequest struct {
	Message      string `json:"message"                example:"What oil should I use in my 1967 Mustang?"`
	SessionID    string `json:"sessionId,omitempty"    example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	CollectionID string `json:"collectionId"           example:"garage-1"`
	ResearchMode bool   `json:"researchMode,omitempty"`
}

// ChatResponse is the assistant reply. Metadata carries the research payload
// ({type, discoveryResult?, researchResult?, vehicleContext?, researchState})
// when the turn went through product research.
type ChatResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
	Metadata  any    `json:"metadata,omitempty" swaggertype:"object"`
}

// SuggestionsResponse wraps exactly four prompts.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent converts CRLF/CR to LF, collapses blank-line runs and trims.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// Chat godoc
// @ID          chat
// @Summary     Send a chat message
// @Description Runs one assistant turn against a collection. Omit sessionId to start a session.
// @Description Supports idempotent retries via the Idempotency-Key header.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                 false  "Key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.ChatRequest   true   "Chat turn"
//
// @Success     200  {object}  handlers.ChatResponse
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous attempt"
// @Failure     400  {object}  handlers.ErrorResponse  "Missing message or collectionId"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	msg := sanitizeContent(req.Message)
	switch {
	case msg == "":
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		return
	case strings.TrimSpace(req.CollectionID) == "":
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "collectionId is required")
		return
	case h.d.MaxMessageRunes > 0 && utf8.RuneCountInString(msg) > h.d.MaxMessageRunes:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrTooLong.Error())
		return
	}

	idemKey, _ := middleware.GetIdempotencyKey(c)
	scope := middleware.IdempotencyScope(c)
	if idemKey != "" && middleware.IsReplay(c) && h.d.DB != nil {
		if resp, found := h.replay(ctx, uid, scope, idemKey); found {
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, resp)
			return
		}
	}

	out, err := h.d.Assistant.Chat(ctx, uid, services.ChatInput{
		Message:      msg,
		SessionID:    req.SessionID,
		CollectionID: req.CollectionID,
		ResearchMode: req.ResearchMode,
	})
	if err != nil {
		failService(c, err, ErrCodeChatFailed)
		return
	}

	resp := ChatResponse{Message: out.Message, SessionID: out.SessionID}
	if out.Metadata != nil {
		resp.Metadata = out.Metadata
	}

	// Best effort; a turn whose assistant message was not persisted cannot be
	// replayed and is simply run again.
	if idemKey != "" && h.d.DB != nil && out.AssistantMessageID != "" {
		if _, err := repo.CreateIdempotency(ctx, h.d.DB, uid, scope, idemKey, out.AssistantMessageID, http.StatusOK, h.d.IdempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency key failed")
		}
	}
	ok(c, http.StatusOK, resp)
}

// IdempotencyLookup answers the idempotency middleware from stored keys.
func IdempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	return func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return err == nil && rec != nil, err
	}
}

// replay rebuilds the response of a previous turn from its assistant message.
func (h *Handlers) replay(ctx context.Context, uid, scope, key string) (ChatResponse, bool) {
	rec, err := repo.GetIdempotency(ctx, h.d.DB, uid, scope, key, time.Now().UTC())
	if err != nil || rec == nil {
		return ChatResponse{}, false
	}
	m, err := repo.GetMessage(ctx, h.d.DB, rec.MessageID)
	if err != nil {
		return ChatResponse{}, false
	}
	resp := ChatResponse{Message: m.Content, SessionID: m.ChatID}
	if len(m.Metadata) > 0 {
		resp.Metadata = json.RawMessage(m.Metadata)
	}
	return resp, true
}

// Suggestions godoc
// @ID          chatSuggestions
// @Summary     Starter prompts
// @Description Returns four prompts tailored to the collection, or generic ones for anonymous callers. Always 200.
// @Tags        Chat
// @Produce     json
//
// @Param       collectionId  query  string  false  "Collection to tailor prompts to"
//
// @Success     200  {object}  handlers.SuggestionsResponse
// @Router      /chat/suggestions [get]
func (h *Handlers) Suggestions(c *gin.Context) {
	list := h.d.Suggestions.Suggestions(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(c.Query("collectionId")))
	ok(c, http.StatusOK, SuggestionsResponse{Suggestions: list})
}
