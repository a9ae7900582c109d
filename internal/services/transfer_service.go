package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/repo"
	"github.com/tbourn/go-garage-backend/internal/transfer"
)

var transferRows = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transfer_import_rows_total",
		Help: "Imported rows by outcome (create, update, skipped).",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(transferRows)
}

// ImportReport is the result of an import.
type ImportReport struct {
	Format  transfer.Format     `json:"format"`
	Created int                 `json:"created"`
	Updated int                 `json:"updated"`
	Skipped []transfer.RowError `json:"skipped"`
}

// TransferService exports and imports whole collections.
type TransferService struct {
	DB  *gorm.DB
	Now func() time.Time
}

func (s *TransferService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *TransferService) collection(ctx context.Context, userID, collectionID string) (*domain.Collection, error) {
	c, err := repo.GetCollection(ctx, s.DB, collectionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, err
	}
	return c, nil
}

// Export writes every vehicle of the collection to w in format f.
func (s *TransferService) Export(ctx context.Context, userID, collectionID string, f transfer.Format, w io.Writer) error {
	ctx, span := otel.Tracer("services/transfer").Start(ctx, "TransferService.Export",
		trace.WithAttributes(attribute.String("collection.id", collectionID), attribute.String("transfer.format", string(f))))
	defer span.End()

	c, err := s.collection(ctx, userID, collectionID)
	if err != nil {
		return err
	}
	vehicles, err := repo.ListVehicles(ctx, s.DB, userID, collectionID)
	if err != nil {
		return err
	}
	if err := transfer.Write(w, f, *c, vehicles, s.now()); err != nil {
		if errors.Is(err, transfer.ErrUnknownFormat) {
			return ErrUnsupportedFormat
		}
		return fmt.Errorf("export %s: %w", f, err)
	}
	return nil
}

// Import reads data (format taken from format, else the filename extension,
// else CSV) and reconciles it into the collection in one transaction. A
// missing collection is created for the user. Malformed files fail as a
// whole; bad rows are reported in Skipped.
func (s *TransferService) Import(ctx context.Context, userID, collectionID, format, filename string, data []byte) (*ImportReport, error) {
	ctx, span := otel.Tracer("services/transfer").Start(ctx, "TransferService.Import",
		trace.WithAttributes(attribute.String("collection.id", collectionID), attribute.Int("transfer.bytes", len(data))))
	defer span.End()

	if collectionID == "" {
		return nil, ErrMissingCollection
	}
	f, err := pickFormat(format, filename)
	if err != nil {
		return nil, err
	}
	if len(data) > transfer.MaxImportBytes {
		return nil, ErrImportTooLarge
	}
	rows, rowErrs, err := transfer.Read(f, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	if _, err := s.collection(ctx, userID, collectionID); err != nil {
		if !errors.Is(err, ErrCollectionNotFound) {
			return nil, err
		}
		if _, err := repo.CreateCollection(ctx, s.DB, collectionID, userID, "Imported collection"); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("collection_id", collectionID).Msg("import: create collection failed")
			return nil, ErrCollectionNotFound
		}
	}

	var plan transfer.Plan
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := repo.ListVehicles(ctx, tx, userID, collectionID)
		if err != nil {
			return err
		}
		plan = transfer.Reconcile(existing, rows, userID, collectionID, s.now())
		for i := range plan.Changes {
			ch := &plan.Changes[i]
			if ch.Action == transfer.ActionUpdate {
				err = repo.UpdateVehicle(ctx, tx, &ch.Vehicle)
			} else {
				err = repo.CreateVehicle(ctx, tx, &ch.Vehicle)
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", ch.Line, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created, updated := plan.Counts()
	skipped := append(rowErrs, plan.Skipped...)
	transferRows.WithLabelValues("create").Add(float64(created))
	transferRows.WithLabelValues("update").Add(float64(updated))
	transferRows.WithLabelValues("skipped").Add(float64(len(skipped)))
	zerolog.Ctx(ctx).Info().
		Str("collection_id", collectionID).
		Str("format", string(f)).
		Str("result", plan.Summary()).
		Msg("import applied")

	if skipped == nil {
		skipped = []transfer.RowError{}
	}
	return &ImportReport{Format: f, Created: created, Updated: updated, Skipped: skipped}, nil
}

// Match suggests a vehicle and title for each uploaded filename. Nothing is
// written.
func (s *TransferService) Match(ctx context.Context, userID, collectionID string, filenames, titles []string) ([]transfer.FileMatch, error) {
	if _, err := s.collection(ctx, userID, collectionID); err != nil {
		return nil, err
	}
	vehicles, err := repo.ListVehicles(ctx, s.DB, userID, collectionID)
	if err != nil {
		return nil, err
	}
	return transfer.MatchFiles(filenames, vehicles, titles), nil
}

func pickFormat(format, filename string) (transfer.Format, error) {
	if format != "" {
		f, err := transfer.ParseFormat(format)
		if err != nil {
			return "", ErrUnsupportedFormat
		}
		return f, nil
	}
	if f := transfer.FormatFromFilename(filename); f != "" {
		return f, nil
	}
	return transfer.FormatCSV, nil
}
