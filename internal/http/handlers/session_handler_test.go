package handlers

import (
	"net/http"
	"testing"
)

func startSession(t *testing.T, f *fixture, user string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/chat", user, map[string]any{
		"message": "How do I store a motorcycle for winter?", "collectionId": "garage",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start session: %d %s", w.Code, w.Body.String())
	}
	return decode[chatReply](t, w).SessionID
}

func TestListSessions_PaginationAndETag(t *testing.T) {
	f := newFixture(t)
	startSession(t, f, "u1")
	startSession(t, f, "u1")
	startSession(t, f, "u2")

	w := f.do(t, http.MethodGet, "/api/v1/chat/sessions?page=1&page_size=1", "u1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decode[ListSessionsResponse](t, w)
	if len(got.Sessions) != 1 || got.Pagination.Total != 2 || got.Pagination.TotalPages != 2 || !got.Pagination.HasNext {
		t.Fatalf("page = %+v", got)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}

	w = f.do(t, http.MethodGet, "/api/v1/chat/sessions", "u1", nil, map[string]string{"If-None-Match": `W/"other", ` + etag})
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("conditional = %d %q", w.Code, w.Body.String())
	}
	if w = f.do(t, http.MethodGet, "/api/v1/chat/sessions", "u2", nil, map[string]string{"If-None-Match": etag}); w.Code != http.StatusOK {
		t.Fatalf("tag leaked across users: %d", w.Code)
	}
}

func TestListMessages(t *testing.T) {
	f := newFixture(t)
	id := startSession(t, f, "u1")

	w := f.do(t, http.MethodGet, "/api/v1/chat/sessions/"+id+"/messages", "u1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	got := decode[ListMessagesResponse](t, w)
	if len(got.Messages) != 2 || got.Messages[0].Role != "user" || got.Messages[1].Role != "assistant" {
		t.Fatalf("transcript = %+v", got.Messages)
	}
	if len(got.Messages[1].Metadata) == 0 {
		t.Fatalf("assistant metadata missing")
	}
	if w2 := f.do(t, http.MethodGet, "/api/v1/chat/sessions/"+id+"/messages", "u1", nil, map[string]string{"If-None-Match": w.Header().Get("ETag")}); w2.Code != http.StatusNotModified {
		t.Fatalf("conditional = %d", w2.Code)
	}

	expectError(t, f.do(t, http.MethodGet, "/api/v1/chat/sessions/"+id+"/messages", "u2", nil, nil), http.StatusNotFound, ErrCodeNotFound)
	expectError(t, f.do(t, http.MethodGet, "/api/v1/chat/sessions/nope/messages", "u1", nil, nil), http.StatusBadRequest, ErrCodeBadRequest)
}

func TestRenameAndDeleteSession(t *testing.T) {
	f := newFixture(t)
	id := startSession(t, f, "u1")
	path := "/api/v1/chat/sessions/" + id

	if w := f.do(t, http.MethodPut, path+"/title", "u1", map[string]any{"title": "  Winter   storage "}, nil); w.Code != http.StatusNoContent {
		t.Fatalf("rename = %d %s", w.Code, w.Body.String())
	}
	list := decode[ListSessionsResponse](t, f.do(t, http.MethodGet, "/api/v1/chat/sessions", "u1", nil, nil))
	if len(list.Sessions) != 1 || list.Sessions[0].Title != "Winter storage" {
		t.Fatalf("sessions = %+v", list.Sessions)
	}

	expectError(t, f.do(t, http.MethodPut, path+"/title", "u1", map[string]any{"title": ""}, nil), http.StatusBadRequest, ErrCodeBadRequest)
	expectError(t, f.do(t, http.MethodPut, path+"/title", "u2", map[string]any{"title": "Mine"}, nil), http.StatusNotFound, ErrCodeNotFound)
	expectError(t, f.do(t, http.MethodDelete, path, "u2", nil, nil), http.StatusNotFound, ErrCodeNotFound)

	if w := f.do(t, http.MethodDelete, path, "u1", nil, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", w.Code)
	}
	expectError(t, f.do(t, http.MethodGet, path+"/messages", "u1", nil, nil), http.StatusNotFound, ErrCodeNotFound)
}
