package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/repo"
)

// newTestDB opens a migrated in-memory database on a single connection so
// concurrent reads in the service queue instead of hitting table locks.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
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
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustVehicle(t *testing.T, db *gorm.DB, v domain.Vehicle) domain.Vehicle {
	t.Helper()
	if err := repo.CreateVehicle(context.Background(), db, &v); err != nil {
		t.Fatalf("create vehicle: %v", err)
	}
	return v
}

// recordingDispatcher captures title jobs instead of running them.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []TitleJob
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job TitleJob) {
	d.mu.Lock()
	d.jobs = append(d.jobs, job)
	d.mu.Unlock()
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}
