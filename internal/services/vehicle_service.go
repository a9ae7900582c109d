// Package services – VehicleService
//
// Read access to a collection's vehicles. Writes happen through imports
// (TransferService); the garage UI owns everything else.
package services

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/repo"
)

// ErrVehicleNotFound is returned for vehicles missing or owned by another user.
var ErrVehicleNotFound = errors.New("vehicle not found")

// VehicleService lists and fetches vehicles owned by the caller.
type VehicleService struct {
	DB *gorm.DB
}

// List returns the vehicles of collectionID, newest model year first. The
// collection must belong to userID.
func (s *VehicleService) List(ctx context.Context, userID, collectionID string) ([]domain.Vehicle, error) {
	ctx, span := otel.Tracer("services/VehicleService").Start(ctx, "List",
		trace.WithAttributes(attribute.String("collection.id", collectionID)),
	)
	defer span.End()

	if collectionID == "" {
		return nil, ErrMissingCollection
	}
	if _, err := repo.GetCollection(ctx, s.DB, collectionID, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	return repo.ListVehicles(ctx, s.DB, userID, collectionID)
}

// Get returns one vehicle owned by userID.
func (s *VehicleService) Get(ctx context.Context, userID, id string) (*domain.Vehicle, error) {
	v, err := repo.GetVehicle(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrVehicleNotFound
	}
	return v, err
}

// Stats returns the vehicle count and latest update of a collection, for
// conditional responses.
func (s *VehicleService) Stats(ctx context.Context, userID, collectionID string) (int64, *time.Time, error) {
	return repo.VehicleStats(ctx, s.DB, userID, collectionID)
}
