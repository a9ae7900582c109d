// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the per-chat research state row.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-garage-backend/internal/domain"
)

// GetResearchSession returns the research state for chatID, or ErrNotFound.
func GetResearchSession(ctx context.Context, db *gorm.DB, chatID string) (*domain.ResearchSession, error) {
	var rs domain.ResearchSession
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&rs).Error; err != nil {
		return nil, err
	}
	return &rs, nil
}

// SaveResearchSession upserts the research state keyed by chat_id.
func SaveResearchSession(ctx context.Context, db *gorm.DB, rs *domain.ResearchSession) error {
	now := time.Now().UTC()
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = now
	}
	rs.UpdatedAt = now
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "state", "updated_at"}),
	}).Create(rs).Error
}
