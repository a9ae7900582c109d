package parse

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// MinMatchConfidence is the cutoff below which MatchTitle reports no match.
// It favours fewer false positives during bulk import.
const MinMatchConfidence = 50

// ImportFilename is the decomposition of an uploaded file name such as
// "2019-Honda-CBR650F-Oil Change-2.pdf".
type ImportFilename struct {
	Year  int    `json:"year,omitempty"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Title string `json:"title"`
	// Index is the numeric "-N" suffix used to disambiguate multiple files for
	// the same record. Zero when absent.
	Index int `json:"index,omitempty"`
}

// HasVehiclePrefix reports whether a Year-Make-Model prefix was detected.
func (f ImportFilename) HasVehiclePrefix() bool { return f.Year != 0 }

// Match is a candidate title with its confidence in [0,100].
type Match struct {
	Title      string `json:"title"`
	Confidence int    `json:"confidence"`
}

var (
	vehiclePrefixRE = regexp.MustCompile(`^((?:19|20)\d{2})-([^-]+)-([^-]+)-(.+)$`)
	indexSuffixRE   = regexp.MustCompile(`^(.+?)-(\d{1,4})$`)
	nonWordRE       = regexp.MustCompile(`[^\p{L}\p{N}]+`)
)

// ParseImportFilename strips the extension, an optional Year-Make-Model
// prefix and an optional "-N" suffix. The suffix is only taken when N < 100
// so "Registration-2024" keeps its year.
func ParseImportFilename(name string) ImportFilename {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSpace(base)

	var out ImportFilename
	if m := vehiclePrefixRE.FindStringSubmatch(base); m != nil {
		out.Year, _ = strconv.Atoi(m[1])
		out.Make = strings.TrimSpace(m[2])
		out.Model = strings.TrimSpace(m[3])
		base = m[4]
	}
	if m := indexSuffixRE.FindStringSubmatch(base); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil && n < 100 {
			out.Index = n
			base = m[1]
		}
	}
	out.Title = strings.TrimSpace(base)
	return out
}

// MatchTitle finds the candidate title that best matches an uploaded file
// name. It returns false when nothing reaches MinMatchConfidence. Callers show
// the match for confirmation; it is never applied silently.
func MatchTitle(filename string, titles []string) (Match, bool) {
	query := normalizeTitle(ParseImportFilename(filename).Title)
	if query == "" {
		return Match{}, false
	}

	best := Match{}
	for _, t := range titles {
		score := titleScore(query, normalizeTitle(t))
		if score > best.Confidence {
			best = Match{Title: t, Confidence: score}
		}
		if score == 100 {
			break
		}
	}
	if best.Confidence < MinMatchConfidence {
		return Match{}, false
	}
	return best, true
}

// titleScore compares two normalized titles.
//
//	exact                         → 100
//	candidate contains query      → 85 (whole words only)
//	query contains candidate      → 80 (whole words only)
//	otherwise word overlap ratio  → 15..75, 0 when no words are shared
func titleScore(query, candidate string) int {
	if candidate == "" {
		return 0
	}
	switch {
	case query == candidate:
		return 100
	case containsWords(candidate, query):
		return 85
	case containsWords(query, candidate):
		return 80
	}

	qw := strings.Fields(query)
	cw := make(map[string]struct{})
	for _, w := range strings.Fields(candidate) {
		cw[w] = struct{}{}
	}
	common := 0
	seen := make(map[string]struct{}, len(qw))
	for _, w := range qw {
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if _, ok := cw[w]; ok {
			common++
		}
	}
	if common == 0 {
		return 0
	}
	denom := len(seen)
	if len(cw) > denom {
		denom = len(cw)
	}
	ratio := float64(common) / float64(denom)
	return 15 + int(ratio*60+0.5)
}

// containsWords reports whether sub appears in s as a run of whole words.
func containsWords(s, sub string) bool {
	return strings.Contains(" "+s+" ", " "+sub+" ")
}

// normalizeTitle lowercases, turns punctuation into spaces and collapses runs.
func normalizeTitle(s string) string {
	s = nonWordRE.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Join(strings.Fields(s), " ")
}
