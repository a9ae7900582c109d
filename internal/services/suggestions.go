package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/repo"
)

// SuggestionCount is the number of prompts Suggestions always returns.
const SuggestionCount = 4

var genericSuggestions = [...]string{
	"What maintenance should I keep up with on an older car?",
	"What's the best battery tender for winter storage?",
	"How do I prepare a vehicle for long-term storage?",
	"What should I check before buying a used motorcycle?",
	"How often should I change the brake fluid?",
}

// SuggestionService builds starter prompts for the chat box.
type SuggestionService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// Suggestions returns exactly SuggestionCount prompts. With a user it draws
// on the collection's attention items and vehicles; without one, or when the
// collection cannot be loaded, it returns generic prompts.
func (s *SuggestionService) Suggestions(ctx context.Context, userID, collectionID string) []string {
	if userID == "" || s.DB == nil {
		return padSuggestions(nil)
	}
	vehicles, err := repo.ListVehicles(ctx, s.DB, userID, collectionID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("suggestions: load vehicles failed")
		return padSuggestions(nil)
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	return padSuggestions(personalSuggestions(vehicles, now))
}

func personalSuggestions(vehicles []domain.Vehicle, now time.Time) []string {
	a := CollectAttention(vehicles, now)
	var out []string
	if len(a.ExpiredTabs) > 0 {
		out = append(out, fmt.Sprintf("How do I renew the expired tabs on my %s?", a.ExpiredTabs[0].DisplayName()))
	} else if len(a.ExpiringTabs) > 0 {
		out = append(out, fmt.Sprintf("What do I need to renew the tabs on my %s?", a.ExpiringTabs[0].DisplayName()))
	}
	if len(a.NeedMaintenance) > 0 {
		out = append(out, fmt.Sprintf("What maintenance does my %s need?", a.NeedMaintenance[0].DisplayName()))
	}

	for _, v := range vehicles {
		if v.Status != "" && v.Status != "active" {
			continue
		}
		name := v.DisplayName()
		if name == "" {
			continue
		}
		switch v.Type {
		case "motorcycle":
			out = append(out, fmt.Sprintf("What battery should I get for my %s?", name))
		case "boat":
			out = append(out, fmt.Sprintf("How should I winterize my %s?", name))
		default:
			out = append(out, fmt.Sprintf("What tires would you recommend for my %s?", name))
		}
		if len(out) >= SuggestionCount {
			break
		}
	}
	if len(vehicles) > 1 {
		out = append(out, "Summarize what needs attention in my collection.")
	}
	return out
}

// padSuggestions dedupes, truncates and pads with generic prompts to exactly
// SuggestionCount items.
func padSuggestions(in []string) []string {
	out := make([]string, 0, SuggestionCount)
	seen := map[string]bool{}
	add := func(s string) {
		if len(out) < SuggestionCount && s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range in {
		add(s)
	}
	for _, s := range genericSuggestions {
		add(s)
	}
	return out
}
