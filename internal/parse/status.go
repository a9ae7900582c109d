package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Vehicle lifecycle statuses.
const (
	StatusActive = "active"
	StatusSold   = "sold"
	StatusTraded = "traded"
	StatusStored = "stored"
)

// minSaleAmount is the threshold above which a number in a notes string is
// read as a price. Anything at or below it (a quantity, a model-year fragment)
// stays in the text.
const minSaleAmount = 100

// SaleInfo is the structured tail of a SOLD/TRADED notes string.
type SaleInfo struct {
	Date   string   `json:"date,omitempty"` // YYYY-MM-DD
	Amount *float64 `json:"amount,omitempty"`
	Notes  string   `json:"notes,omitempty"`
}

// StatusNotes is the result of ParseStatusNotes. For sold/traded vehicles the
// free text before notesSep lives in Sale.Notes and the text after it in
// Notes; for stored and active vehicles all of it is in Notes.
type StatusNotes struct {
	Status string    `json:"status"`
	Sale   *SaleInfo `json:"saleInfo,omitempty"`
	Notes  string    `json:"notes,omitempty"`
}

var (
	statusKeywordRE = regexp.MustCompile(`(?i)^\s*(sold|traded|trade|stored)\b[\s:,\-]*`)

	// Date shapes inside free text. The first match in the first pattern that
	// parses wins.
	notesDateREs = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}/(?:\d{4}|\d{2})\b`),
		regexp.MustCompile(`\b\d{1,2}/\d{1,2}\b`),
		regexp.MustCompile(`\b\d{4}-\d{1,2}-\d{1,2}\b`),
	}

	// Standalone numbers with an optional $ and thousands separators. Digits
	// glued to letters (CBR650F) never match because of the word boundaries.
	amountRE = regexp.MustCompile(`\$?\s?\b(\d{1,3}(?:,\d{3})+|\d+)(\.\d{1,2})?\b`)

	leftoverTrimCutset = " \t,;:-"
)

// notesSep divides the sale details of a SOLD/TRADED string from the
// vehicle's general notes.
const notesSep = " | "

// ParseStatusNotes detects a leading SOLD / TRADED / TRADE / STORED keyword
// and pulls a sale date and price out of the remainder. Without a keyword the
// status is active and the text is returned untouched.
//
// This is a first-match-wins heuristic: "SOLD 1/2 50000 to neighbor, 2019
// model" takes 1/2 as the date and 50000 as the amount.
func ParseStatusNotes(notes string) StatusNotes {
	return ParseStatusNotesAt(notes, time.Now())
}

// ParseStatusNotesAt is ParseStatusNotes with an explicit "today" used to
// resolve year-less dates.
func ParseStatusNotesAt(notes string, now time.Time) StatusNotes {
	loc := statusKeywordRE.FindStringSubmatchIndex(notes)
	if loc == nil {
		return StatusNotes{Status: StatusActive, Notes: notes}
	}

	status := strings.ToLower(notes[loc[2]:loc[3]])
	if status == "trade" {
		status = StatusTraded
	}
	rest := notes[loc[1]:]

	// Stored notes carry no sale details; dates and numbers are plain text.
	if status == StatusStored {
		return StatusNotes{Status: status, Notes: strings.TrimSpace(rest)}
	}

	var general string
	if i := strings.Index(rest, notesSep); i >= 0 {
		rest, general = rest[:i], strings.TrimSpace(rest[i+len(notesSep):])
	}
	date, rest := extractDate(rest, now)
	amount, rest := extractAmount(rest)

	return StatusNotes{
		Status: status,
		Sale: &SaleInfo{
			Date:   date,
			Amount: amount,
			Notes:  tidy(rest),
		},
		Notes: general,
	}
}

// FormatStatusNotes renders the inverse of ParseStatusNotes so that an export
// followed by an import yields the same record.
func FormatStatusNotes(status string, sale *SaleInfo, notes string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case StatusSold, StatusTraded:
		parts := []string{strings.ToUpper(status)}
		if sale != nil {
			if sale.Date != "" {
				parts = append(parts, sale.Date)
			}
			if sale.Amount != nil {
				parts = append(parts, formatAmount(*sale.Amount))
			}
			if s := strings.TrimSpace(sale.Notes); s != "" {
				parts = append(parts, s)
			}
		}
		out := strings.Join(parts, " ")
		if s := strings.TrimSpace(notes); s != "" {
			out += notesSep + s
		}
		return out
	case StatusStored:
		if s := strings.TrimSpace(notes); s != "" {
			return "STORED " + s
		}
		return "STORED"
	default:
		return notes
	}
}

func extractDate(s string, now time.Time) (string, string) {
	for _, re := range notesDateREs {
		loc := re.FindStringIndex(s)
		if loc == nil {
			continue
		}
		t, ok := ParseFlexibleDateAt(s[loc[0]:loc[1]], now)
		if !ok {
			continue
		}
		return FormatDateForDB(t), s[:loc[0]] + " " + s[loc[1]:]
	}
	return "", s
}

func extractAmount(s string) (*float64, string) {
	for _, loc := range amountRE.FindAllStringSubmatchIndex(s, -1) {
		digits := strings.ReplaceAll(s[loc[2]:loc[3]], ",", "")
		if loc[4] >= 0 {
			digits += s[loc[4]:loc[5]]
		}
		v, err := strconv.ParseFloat(digits, 64)
		if err != nil || v <= minSaleAmount {
			continue
		}
		return &v, s[:loc[0]] + " " + s[loc[1]:]
	}
	return nil, s
}

func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return "$" + commaInt(int64(v))
	}
	whole := int64(v)
	return fmt.Sprintf("$%s.%02d", commaInt(whole), int64((v-float64(whole))*100+0.5))
}

func commaInt(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func tidy(s string) string {
	s = spaceRunsRE.ReplaceAllString(s, " ")
	return strings.Trim(s, leftoverTrimCutset)
}
