// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateChat(ctx, db, userID, collectionID, title) -> *domain.Chat, error
//     Inserts a new Chat row with UUID primary key and UTC timestamp.
//
//   - ListChats(ctx, db, userID) -> []domain.Chat, error
//     Returns all chats for a user, ordered by creation time descending.
//
//   - CountChats(ctx, db, userID) -> (int64, error)
//     Returns the total number of chats owned by the user.
//
//   - ListChatsPage(ctx, db, userID, offset, limit) -> []domain.Chat, error
//     Returns a paginated slice of chats for a user.
//
//   - GetChat(ctx, db, id, userID) -> *domain.Chat, error
//     Fetches a single chat by ID/userID, or ErrNotFound if missing.
//
//   - UpdateChatTitle(ctx, db, id, userID, title) -> error
//     Updates the title of a chat, enforcing user ownership.
//     Returns ErrNotFound if the chat does not exist.
//
//   - TouchChat(ctx, db, id) -> error
//     Bumps updated_at so recently used sessions sort first.
//
//   - DeleteChat(ctx, db, id, userID) -> error
//     Hard-deletes a chat; messages and research state cascade.
//
// Usage:
//
//	// Within a service layer
//	chat, err := repo.CreateChat(ctx, db, userID, collectionID, "Oil change intervals")
//	if errors.Is(err, repo.ErrNotFound) {
//	    // handle missing
//	} else if err != nil {
//	    // handle DB failure
//	}
//
// This repository is designed to be wrapped by a higher-level service
// (see services.ChatService) which enforces business rules, caching,
// or cross-aggregate behavior.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChat inserts a new Chat row owned by userID, opened against
// collectionID, with the given title. The chat ID is a random UUID and the
// timestamps are set to UTC now.
func CreateChat(ctx context.Context, db *gorm.DB, userID, collectionID, title string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		ID:           uuid.NewString(),
		UserID:       userID,
		CollectionID: collectionID,
		Title:        title,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// ListChats returns all chats belonging to userID, most recently active
// first. It returns an empty slice if the user has
// no chats. On DB error, it returns the error.
func ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc, id asc").
		Find(&out).Error
	return out, err
}

// CountChats returns the total number of chats owned by userID.
// On DB error, it returns the error.
func CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListChatsPage returns a paginated slice of chats for userID, most recently
// active first. Use CountChats to obtain the total for pagination
// metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc, id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetChat fetches a single chat by its ID and owner (userID). If the record
// does not exist, it returns ErrNotFound. On other DB errors, the raw error
// is returned.
func GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateChatTitle updates the title of a chat identified by id and owned by
// userID. If no rows are affected (chat missing or not owned by userID),
// it returns ErrNotFound. On DB error, the raw error is returned.
func UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]any{"title": title, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TouchChat bumps updated_at on a chat after a new exchange. A missing chat is
// not an error; the caller has already resolved it.
func TouchChat(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}

// DeleteChat removes a chat owned by userID. Messages and the research session
// are removed by the ON DELETE CASCADE constraints. Returns ErrNotFound when
// no row matched.
func DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Chat{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Chats adapts the chat functions above to the method set services.ChatRepo
// expects, so services can be tested against fakes.
type Chats struct{}

func (Chats) CreateChat(ctx context.Context, db *gorm.DB, userID, collectionID, title string) (*domain.Chat, error) {
	return CreateChat(ctx, db, userID, collectionID, title)
}

func (Chats) ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	return ListChats(ctx, db, userID)
}

func (Chats) GetChat(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Chat, error) {
	return GetChat(ctx, db, id, userID)
}

func (Chats) UpdateChatTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return UpdateChatTitle(ctx, db, id, userID, title)
}

func (Chats) DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error {
	return DeleteChat(ctx, db, id, userID)
}

func (Chats) CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return CountChats(ctx, db, userID)
}

func (Chats) ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	return ListChatsPage(ctx, db, userID, offset, limit)
}
