package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/parse"
)

const (
	tabWarnWindow  = 30 * 24 * time.Hour
	maxSummaryRows = 40
)

// Attention lists the vehicles that need the owner's attention at a given
// day.
type Attention struct {
	ExpiredTabs     []domain.Vehicle
	ExpiringTabs    []domain.Vehicle
	NeedMaintenance []domain.Vehicle
}

// Empty reports whether nothing needs attention.
func (a Attention) Empty() bool {
	return len(a.ExpiredTabs) == 0 && len(a.ExpiringTabs) == 0 && len(a.NeedMaintenance) == 0
}

// CollectAttention classifies vehicles against today. Only active vehicles
// are considered. A tab expiring today counts as expiring, not expired.
func CollectAttention(vehicles []domain.Vehicle, now time.Time) Attention {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var a Attention
	for _, v := range vehicles {
		if v.Status != "" && v.Status != parse.StatusActive {
			continue
		}
		if exp, ok := domain.Date(v.TabExpiration); ok {
			exp = time.Date(exp.Year(), exp.Month(), exp.Day(), 0, 0, 0, 0, time.UTC)
			switch {
			case exp.Before(today):
				a.ExpiredTabs = append(a.ExpiredTabs, v)
			case !exp.After(today.Add(tabWarnWindow)):
				a.ExpiringTabs = append(a.ExpiringTabs, v)
			}
		}
		if v.NeedsMaintenance {
			a.NeedMaintenance = append(a.NeedMaintenance, v)
		}
	}
	return a
}

// CollectionSummary renders a deterministic plain-text summary of the
// collection for the system prompt: counts by status and type, one line
// per vehicle and the attention items.
func CollectionSummary(vehicles []domain.Vehicle, now time.Time) string {
	if len(vehicles) == 0 {
		return "The owner has no vehicles in this collection yet."
	}

	byStatus := map[string]int{}
	byType := map[string]int{}
	for _, v := range vehicles {
		byStatus[orDefault(v.Status, parse.StatusActive)]++
		byType[orDefault(v.Type, "car")]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Collection: %s (%s). Types: %s.\n",
		plural(len(vehicles), "vehicle"), countList(byStatus, ""), countList(byType, "plural"))

	b.WriteString("Vehicles:\n")
	for i, v := range vehicles {
		if i == maxSummaryRows {
			fmt.Fprintf(&b, "- and %d more\n", len(vehicles)-maxSummaryRows)
			break
		}
		b.WriteString("- ")
		b.WriteString(vehicleLine(v))
		b.WriteByte('\n')
	}

	a := CollectAttention(vehicles, now)
	if a.Empty() {
		b.WriteString("Attention: nothing due.")
		return b.String()
	}
	b.WriteString("Attention:")
	if len(a.ExpiredTabs) > 0 {
		fmt.Fprintf(&b, "\n- Expired tabs: %s", tabList(a.ExpiredTabs))
	}
	if len(a.ExpiringTabs) > 0 {
		fmt.Fprintf(&b, "\n- Tabs expiring within 30 days: %s", tabList(a.ExpiringTabs))
	}
	if len(a.NeedMaintenance) > 0 {
		names := make([]string, 0, len(a.NeedMaintenance))
		for _, v := range a.NeedMaintenance {
			names = append(names, label(v))
		}
		fmt.Fprintf(&b, "\n- Needs maintenance: %s", strings.Join(names, ", "))
	}
	return b.String()
}

func vehicleLine(v domain.Vehicle) string {
	parts := []string{orDefault(v.Type, "car"), orDefault(v.Status, parse.StatusActive)}
	if v.Mileage != nil {
		parts = append(parts, fmt.Sprintf("%d miles", *v.Mileage))
	}
	if v.Color != "" {
		parts = append(parts, v.Color)
	}
	return fmt.Sprintf("%s (%s)", label(v), strings.Join(parts, ", "))
}

func label(v domain.Vehicle) string {
	name := v.DisplayName()
	if v.Nickname != "" && name != v.Nickname {
		name += " \"" + v.Nickname + "\""
	}
	if name == "" {
		return "Unnamed vehicle"
	}
	return name
}

func tabList(vs []domain.Vehicle) string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		d, _ := domain.Date(v.TabExpiration)
		out = append(out, fmt.Sprintf("%s (%s)", label(v), parse.FormatDateForDB(d)))
	}
	return strings.Join(out, ", ")
}

// countList renders "2 active, 1 sold" with keys sorted for stable output.
func countList(m map[string]int, mode string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if mode == "plural" {
			out = append(out, plural(m[k], k))
		} else {
			out = append(out, fmt.Sprintf("%d %s", m[k], k))
		}
	}
	return strings.Join(out, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
