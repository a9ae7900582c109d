// Session HTTP handlers.
//
//   - GET    /chat/sessions                 (paginated, weak ETag)
//   - GET    /chat/sessions/{id}/messages   (paginated transcript, weak ETag)
//   - PUT    /chat/sessions/{id}/title      (rename)
//   - DELETE /chat/sessions/{id}            (delete with messages and research state)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/http/middleware"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/utils"
)

// UpdateTitleRequest renames a session.
type UpdateTitleRequest struct {
	Title string `json:"title" binding:"required,min=1,max=255" example:"Winter storage for the CBR"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, size int, total int64) Pagination {
	pages := utils.TotalPages(total, size)
	return Pagination{Page: page, PageSize: size, Total: total, TotalPages: pages, HasNext: page < pages}
}

// ListSessionsResponse wraps a page of sessions.
type ListSessionsResponse struct {
	Sessions   []domain.Chat `json:"sessions"`
	Pagination Pagination    `json:"pagination"`
}

// ListMessagesResponse wraps a page of a session's messages.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// sessionID reads and validates the :id path parameter.
func sessionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session id must be a UUID")
		return "", false
	}
	return id, true
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List chat sessions
// @Description Returns the caller's sessions, most recently active first. Supports If-None-Match.
// @Tags        Sessions
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListSessionsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat/sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	page, size := utils.Page(c.Query("page"), c.Query("page_size"))

	if h.d.DB != nil {
		if count, latest, err := repo.ChatsStats(ctx, h.d.DB, uid); err == nil {
			if notModified(c, weakETag("sessions", uid, count, latest)) {
				return
			}
		}
	}

	items, total, err := h.d.Sessions.ListPage(ctx, uid, page, size)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListSessionsResponse{Sessions: items, Pagination: newPagination(page, size, total)})
}

// ListMessages godoc
// @ID          listSessionMessages
// @Summary     List messages of a session
// @Description Returns the transcript in chronological order. Assistant messages carry research metadata.
// @Tags        Sessions
// @Produce     json
// @Security    BearerAuth
//
// @Param       id             path    string  true   "Session ID"  format(uuid)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chat/sessions/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	chatID, valid := sessionID(c)
	if !valid {
		return
	}
	uid := middleware.UserID(c)
	page, size := utils.Page(c.Query("page"), c.Query("page_size"))

	items, total, err := h.d.Messages.ListPage(ctx, uid, chatID, page, size)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	// Ownership was checked by the listing above, so the tag never confirms a
	// foreign session.
	if h.d.DB != nil {
		if count, latest, err := repo.MessagesStats(ctx, h.d.DB, chatID); err == nil {
			if notModified(c, weakETag("messages", chatID, count, latest)) {
				return
			}
		}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: newPagination(page, size, total)})
}

// RenameSession godoc
// @ID          renameSession
// @Summary     Rename a session
// @Tags        Sessions
// @Accept      json
// @Security    BearerAuth
//
// @Param       id    path  string                         true  "Session ID"  format(uuid)
// @Param       body  body  handlers.UpdateTitleRequest    true  "New title"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /chat/sessions/{id}/title [put]
func (h *Handlers) RenameSession(c *gin.Context) {
	chatID, valid := sessionID(c)
	if !valid {
		return
	}
	var req UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "title required (1-255 chars)")
		return
	}
	if err := h.d.Sessions.UpdateTitle(c.Request.Context(), middleware.UserID(c), chatID, req.Title); err != nil {
		failService(c, err, ErrCodeUpdateFailed)
		return
	}
	noContent(c)
}

// DeleteSession godoc
// @ID          deleteSession
// @Summary     Delete a session
// @Description Removes the session together with its messages and research state.
// @Tags        Sessions
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Session ID"  format(uuid)
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Session not found"
// @Router      /chat/sessions/{id} [delete]
func (h *Handlers) DeleteSession(c *gin.Context) {
	chatID, valid := sessionID(c)
	if !valid {
		return
	}
	if err := h.d.Sessions.Delete(c.Request.Context(), middleware.UserID(c), chatID); err != nil {
		failService(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}
