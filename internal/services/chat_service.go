// Package services – ChatService
//
// ChatService manages chat sessions outside of a chat turn: listing with
// pagination, renaming and deleting. Sessions are created by
// AssistantService on the first message, so Create here is only used by
// callers that want an empty session up front.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/domain"
)

// ChatRepo defines the repository contract required by ChatService.
type ChatRepo interface {
	CreateChat(ctx context.Context, db *gorm.DB, userID, collectionID, title string) (*domain.Chat, error)
	ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error)
	GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error)
	UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error
	DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error
	CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error)
}

// ChatService provides session-level operations and enforces ownership.
type ChatService struct {
	DB   *gorm.DB
	Repo ChatRepo

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewChatService constructs a ChatService with the default title cap.
func NewChatService(db *gorm.DB, r ChatRepo) *ChatService {
	return &ChatService{DB: db, Repo: r, TitleMaxLen: defaultTitleMaxLen}
}

// Create inserts a new session owned by userID. A blank title becomes
// "New chat", which keeps it eligible for automatic titling.
func (s *ChatService) Create(ctx context.Context, userID, collectionID, title string) (*domain.Chat, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleNew
	}
	return s.Repo.CreateChat(ctx, s.DB, userID, collectionID, clipRunes(title, s.TitleMaxLen))
}

// Get returns a session owned by userID.
func (s *ChatService) Get(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	c, err := s.Repo.GetChat(ctx, s.DB, chatID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return c, nil
}

// List returns all sessions for a user (non-paginated).
func (s *ChatService) List(ctx context.Context, userID string) ([]domain.Chat, error) {
	return s.Repo.ListChats(ctx, s.DB, userID)
}

// ListPage returns a page of sessions, most recently active first, and the
// total count. Invalid page/pageSize fall back to 1 and 20.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}

	items, err := s.Repo.ListChatsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// UpdateTitle renames a session owned by userID. A blank title becomes
// "Untitled".
func (s *ChatService) UpdateTitle(ctx context.Context, userID, chatID, title string) error {
	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleUntitled
	}
	if _, err := s.Get(ctx, userID, chatID); err != nil {
		return err
	}
	return s.Repo.UpdateChatTitle(ctx, s.DB, chatID, userID, clipRunes(title, s.TitleMaxLen))
}

// Delete removes a session together with its messages and research state.
func (s *ChatService) Delete(ctx context.Context, userID, chatID string) error {
	err := s.Repo.DeleteChat(ctx, s.DB, chatID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrChatNotFound
	}
	return err
}

// normalizeTitle trims whitespace and collapses inner runs to one space.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// clipRunes truncates s to limit runes; limit <= 0 means the default cap.
func clipRunes(s string, limit int) string {
	if limit <= 0 {
		limit = defaultTitleMaxLen
	}
	if utf8.RuneCountInString(s) > limit {
		return strings.TrimSpace(string([]rune(s)[:limit]))
	}
	return s
}
