// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for collections and
// the vehicles they contain.
//
// Ownership is enforced here: every read and write is scoped to the owning
// user, so a foreign collection id behaves exactly like a missing one.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/domain"
)

// CreateCollection inserts a collection owned by ownerID. An empty id gets a
// fresh UUID.
func CreateCollection(ctx context.Context, db *gorm.DB, id, ownerID, name string) (*domain.Collection, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	c := &domain.Collection{ID: id, OwnerID: ownerID, Name: name, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetCollection fetches a collection by id and owner, or ErrNotFound.
func GetCollection(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Collection, error) {
	var c domain.Collection
	err := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListVehicles returns the user's vehicles ordered by year, then make and
// model. A non-empty collectionID restricts the result to that collection.
func ListVehicles(ctx context.Context, db *gorm.DB, userID, collectionID string) ([]domain.Vehicle, error) {
	var out []domain.Vehicle
	q := db.WithContext(ctx).Where("user_id = ?", userID)
	if collectionID != "" {
		q = q.Where("collection_id = ?", collectionID)
	}
	err := q.Order("year DESC, make ASC, model ASC, id ASC").Find(&out).Error
	return out, err
}

// GetVehicle fetches a vehicle by id and owner, or ErrNotFound.
func GetVehicle(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Vehicle, error) {
	var v domain.Vehicle
	if err := db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&v).Error; err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVehicle inserts v, assigning an id and timestamps when missing.
func CreateVehicle(ctx context.Context, db *gorm.DB, v *domain.Vehicle) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now
	return db.WithContext(ctx).Create(v).Error
}

// UpdateVehicle writes every column of v back to its row. The row must belong
// to v.UserID; otherwise ErrNotFound is returned.
func UpdateVehicle(ctx context.Context, db *gorm.DB, v *domain.Vehicle) error {
	v.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Vehicle{}).
		Where("id = ? AND user_id = ?", v.ID, v.UserID).
		Select("*").
		Omit("id", "created_at").
		Updates(v)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// VehicleStats returns the row count and latest updated_at for a collection,
// for ETag generation on exports.
func VehicleStats(ctx context.Context, db *gorm.DB, userID, collectionID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Vehicle{}).Where("user_id = ? AND collection_id = ?", userID, collectionID)
	return countAndLatest(q)
}
