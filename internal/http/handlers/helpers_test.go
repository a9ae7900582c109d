package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-garage-backend/internal/http/middleware"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/research"
	"github.com/tbourn/go-garage-backend/internal/services"
)

// cannedResponder answers every turn with a discovery-shaped reply.
type cannedResponder struct {
	mu    sync.Mutex
	calls int
}

func (r *cannedResponder) Respond(_ context.Context, in research.Input) (*research.Output, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	st := research.State{Status: research.StatusAwaitingRefinement, ProductCategory: "battery"}
	return &research.Output{
		Reply:    "Here are a few battery tenders. Which matters more, price or brand?",
		Metadata: &research.Metadata{Type: "discovery", ResearchState: st},
		State:    st,
		Path:     "discovery",
	}, nil
}

func (r *cannedResponder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fixture struct {
	db   *gorm.DB
	r    *gin.Engine
	orch *cannedResponder
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newFixture mounts the handlers the way the router does, with header-mode
// auth so tests pick the user through X-User-ID.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	orch := &cannedResponder{}

	h := New(Deps{
		DB:              db,
		Assistant:       services.NewAssistantService(db, orch),
		Suggestions:     &services.SuggestionService{DB: db},
		Sessions:        services.NewChatService(db, repo.Chats{}),
		Messages:        &services.MessageService{DB: db},
		Transfer:        &services.TransferService{DB: db},
		Vehicles:        &services.VehicleService{DB: db},
		MaxMessageRunes: 200,
	})

	auth := middleware.NewAuthenticator(middleware.AuthOptions{})
	r := gin.New()
	r.Use(middleware.RequestID(), auth.OptionalAuth())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, IdempotencyLookup(db)))

	api := r.Group("/api/v1")
	api.GET("/chat/suggestions", h.Suggestions)
	authed := api.Group("", auth.Auth())
	authed.POST("/chat", h.Chat)
	authed.GET("/chat/sessions", h.ListSessions)
	authed.GET("/chat/sessions/:id/messages", h.ListMessages)
	authed.PUT("/chat/sessions/:id/title", h.RenameSession)
	authed.DELETE("/chat/sessions/:id", h.DeleteSession)
	authed.GET("/collections/:id/vehicles", h.ListVehicles)
	authed.GET("/vehicles/:id", h.GetVehicle)
	authed.GET("/collections/:id/export", h.ExportCollection)
	authed.POST("/collections/:id/import", h.ImportCollection)
	authed.POST("/collections/:id/import/match", h.MatchImportFiles)

	return &fixture{db: db, r: r, orch: orch}
}

// do sends a request as user (anonymous when empty). body may be a string,
// []byte, io.Reader or a value to JSON-encode.
func (f *fixture) do(t *testing.T, method, path, user string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	case []byte:
		rd = bytes.NewReader(b)
	case io.Reader:
		rd = b
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if _, isJSON := body.(map[string]any); isJSON {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v; body=%s", v, err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d; want %d; body=%s", w.Code, status, w.Body.String())
	}
	if er := decode[ErrorResponse](t, w); er.Code != code || er.RequestID == "" {
		t.Fatalf("error body = %+v; want code %q", er, code)
	}
}
