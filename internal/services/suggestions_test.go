package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-garage-backend/internal/domain"
)

func TestSuggestions_AlwaysFour(t *testing.T) {
	ctx := context.Background()

	s := &SuggestionService{}
	got := s.Suggestions(ctx, "", "")
	if len(got) != SuggestionCount || got[0] != genericSuggestions[0] {
		t.Fatalf("anonymous = %v", got)
	}

	// missing tables act like a failing store
	broken := &SuggestionService{DB: newTestDB(t)}
	broken.DB.Exec("DROP TABLE vehicles")
	if got := broken.Suggestions(ctx, "u1", "col"); len(got) != SuggestionCount {
		t.Fatalf("degraded = %v", got)
	}
}

func TestSuggestions_Personal(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mustVehicle(t, db, domain.Vehicle{CollectionID: "col", UserID: "u1", Type: "motorcycle", Year: 2019, Make: "Honda", Model: "CBR650F",
		TabExpiration: domain.NewDate(now.AddDate(0, 0, -3))})
	mustVehicle(t, db, domain.Vehicle{CollectionID: "col", UserID: "u1", Type: "car", Year: 1967, Make: "Ford", Model: "Mustang", NeedsMaintenance: true})

	s := &SuggestionService{DB: db, Now: func() time.Time { return now }}
	got := s.Suggestions(context.Background(), "u1", "col")
	if len(got) != SuggestionCount {
		t.Fatalf("got %d suggestions: %v", len(got), got)
	}
	joined := strings.Join(got, "\n")
	for _, want := range []string{
		"How do I renew the expired tabs on my 2019 Honda CBR650F?",
		"What maintenance does my 1967 Ford Mustang need?",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in %v", want, got)
		}
	}
}

func TestPadSuggestions(t *testing.T) {
	got := padSuggestions([]string{"a", "a", "", "b", "c", "d", "e"})
	if strings.Join(got, ",") != "a,b,c,d" {
		t.Fatalf("got %v", got)
	}
	if len(padSuggestions(nil)) != SuggestionCount {
		t.Fatalf("padding failed")
	}
}
