package transfer

import (
	"strings"

	"github.com/tbourn/go-garage-backend/internal/domain"
	"github.com/tbourn/go-garage-backend/internal/parse"
)

// FileMatch is the suggested target for one uploaded file. VehicleID is
// empty when no vehicle was recognized; Match is nil when no title scored
// high enough. Suggestions are shown for confirmation and never applied.
type FileMatch struct {
	Filename  string               `json:"filename"`
	Parsed    parse.ImportFilename `json:"parsed"`
	VehicleID string               `json:"vehicleId,omitempty"`
	Vehicle   string               `json:"vehicle,omitempty"`
	Match     *parse.Match         `json:"match,omitempty"`
}

// MatchFiles suggests, for each filename, the vehicle named by its
// Year-Make-Model prefix and the closest of titles. Without explicit titles
// the vehicle display names are the candidates, which lets a bare
// "Mustang.pdf" find its vehicle.
func MatchFiles(filenames []string, vehicles []domain.Vehicle, titles []string) []FileMatch {
	names := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		names = append(names, v.DisplayName())
	}
	candidates := titles
	byTitle := false
	if len(candidates) == 0 {
		candidates = names
		byTitle = true
	}

	out := make([]FileMatch, 0, len(filenames))
	for _, fn := range filenames {
		fm := FileMatch{Filename: fn, Parsed: parse.ParseImportFilename(fn)}
		if fm.Parsed.HasVehiclePrefix() {
			if i := vehicleByPrefix(vehicles, fm.Parsed); i >= 0 {
				fm.VehicleID, fm.Vehicle = vehicles[i].ID, names[i]
			}
		}
		if m, ok := parse.MatchTitle(fn, candidates); ok {
			fm.Match = &m
			if byTitle && fm.VehicleID == "" {
				for i, n := range names {
					if n == m.Title {
						fm.VehicleID, fm.Vehicle = vehicles[i].ID, n
						break
					}
				}
			}
		}
		out = append(out, fm)
	}
	return out
}

func vehicleByPrefix(vehicles []domain.Vehicle, f parse.ImportFilename) int {
	for i, v := range vehicles {
		if v.Year == f.Year && strings.EqualFold(v.Make, f.Make) && sameModel(v.Model, f.Model) {
			return i
		}
	}
	return -1
}

// sameModel compares ignoring spaces and dashes, since filenames cannot carry
// the dash in "F-150" without breaking the prefix.
func sameModel(a, b string) bool {
	norm := strings.NewReplacer(" ", "", "-", "", "_", "").Replace
	return strings.EqualFold(norm(a), norm(b))
}
