package parse

import (
	"strings"
	"testing"
)

func TestParseStatusNotes_SoldWithDateAmountAndNotes(t *testing.T) {
	got := ParseStatusNotesAt("SOLD 7/25/25 $10,000 to neighbor", refNow)
	if got.Status != StatusSold {
		t.Fatalf("status=%q", got.Status)
	}
	if got.Sale == nil {
		t.Fatalf("expected sale info")
	}
	if got.Sale.Date != "2025-07-25" {
		t.Fatalf("date=%q", got.Sale.Date)
	}
	if got.Sale.Amount == nil || *got.Sale.Amount != 10000 {
		t.Fatalf("amount=%v", got.Sale.Amount)
	}
	if got.Sale.Notes != "to neighbor" {
		t.Fatalf("notes=%q", got.Sale.Notes)
	}
}

func TestParseStatusNotes_Keywords(t *testing.T) {
	cases := map[string]string{
		"sold":                  StatusSold,
		"Sold: 2024-05-01":      StatusSold,
		"TRADED for a boat":     StatusTraded,
		"trade - 4500":          StatusTraded,
		"STORED at grandma's":   StatusStored,
		"runs great, new tires": StatusActive,
		"":                      StatusActive,
		"resold parts":          StatusActive, // keyword must lead
	}
	for in, want := range cases {
		if got := ParseStatusNotesAt(in, refNow).Status; got != want {
			t.Fatalf("ParseStatusNotes(%q).Status=%q, want %q", in, got, want)
		}
	}
}

func TestParseStatusNotes_ActivePassesTextThrough(t *testing.T) {
	in := "  needs a chain, $150 quote  "
	got := ParseStatusNotesAt(in, refNow)
	if got.Notes != in || got.Sale != nil {
		t.Fatalf("active notes must be unchanged, got %+v", got)
	}
}

func TestParseStatusNotes_SmallNumbersStayInText(t *testing.T) {
	got := ParseStatusNotesAt("SOLD with 2 helmets and 50 spare bolts", refNow)
	if got.Sale.Amount != nil {
		t.Fatalf("amount should be nil, got %v", *got.Sale.Amount)
	}
	if !strings.Contains(got.Sale.Notes, "2 helmets") || !strings.Contains(got.Sale.Notes, "50 spare") {
		t.Fatalf("small numbers removed from notes: %q", got.Sale.Notes)
	}
}

func TestParseStatusNotes_AmountRemovedFromText(t *testing.T) {
	for _, in := range []string{"SOLD 4500 cash", "TRADED $12,500.50 plus a dirt bike", "sold 101"} {
		got := ParseStatusNotesAt(in, refNow)
		if got.Sale == nil || got.Sale.Amount == nil {
			t.Fatalf("%q: expected amount", in)
		}
		if strings.ContainsAny(got.Sale.Notes, "0123456789") {
			t.Fatalf("%q: amount left in notes %q", in, got.Sale.Notes)
		}
	}
}

func TestParseStatusNotes_FirstMatchWins(t *testing.T) {
	got := ParseStatusNotesAt("SOLD 1/2 50000 to neighbor, 2019 model", refNow)
	if got.Sale.Date != "2027-01-02" {
		t.Fatalf("date=%q", got.Sale.Date)
	}
	if got.Sale.Amount == nil || *got.Sale.Amount != 50000 {
		t.Fatalf("amount=%v", got.Sale.Amount)
	}
	if got.Sale.Notes != "to neighbor, 2019 model" {
		t.Fatalf("notes=%q", got.Sale.Notes)
	}
}

func TestParseStatusNotes_GluedDigitsAreNotPrices(t *testing.T) {
	got := ParseStatusNotesAt("SOLD my CBR650F to Sam", refNow)
	if got.Sale.Amount != nil {
		t.Fatalf("model name parsed as price: %v", *got.Sale.Amount)
	}
}

func TestParseStatusNotes_StoredKeepsNotes(t *testing.T) {
	got := ParseStatusNotesAt("STORED winter storage at unit 12", refNow)
	if got.Sale != nil || got.Notes != "winter storage at unit 12" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestParseStatusNotes_StoredLeavesDatesAndNumbers(t *testing.T) {
	got := ParseStatusNotesAt(FormatStatusNotes(StatusStored, nil, "unit 204 since 3/1/2024"), refNow)
	if got.Status != StatusStored || got.Sale != nil || got.Notes != "unit 204 since 3/1/2024" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestParseStatusNotes_GeneralNotesAfterSeparator(t *testing.T) {
	got := ParseStatusNotesAt("TRADED 2023-09-10 for a boat | rebuilt 22RE, 3000 spare", refNow)
	if got.Sale == nil || got.Sale.Date != "2023-09-10" || got.Sale.Amount != nil || got.Sale.Notes != "for a boat" {
		t.Fatalf("sale = %+v", got.Sale)
	}
	if got.Notes != "rebuilt 22RE, 3000 spare" {
		t.Fatalf("notes = %q", got.Notes)
	}
}

func TestFormatStatusNotes_RoundTrip(t *testing.T) {
	amt := 10000.0
	in := &SaleInfo{Date: "2025-07-25", Amount: &amt, Notes: "to neighbor"}
	s := FormatStatusNotes(StatusSold, in, "")
	if s != "SOLD 2025-07-25 $10,000 to neighbor" {
		t.Fatalf("format=%q", s)
	}
	back := ParseStatusNotesAt(s, refNow)
	if back.Status != StatusSold || back.Sale.Date != in.Date || *back.Sale.Amount != amt || back.Sale.Notes != in.Notes {
		t.Fatalf("round trip mismatch: %+v", back.Sale)
	}

	if got := FormatStatusNotes(StatusActive, nil, "just notes"); got != "just notes" {
		t.Fatalf("active format=%q", got)
	}
	if got := FormatStatusNotes(StatusSold, in, "garage kept"); got != "SOLD 2025-07-25 $10,000 to neighbor | garage kept" {
		t.Fatalf("sold with notes format=%q", got)
	}
	if got := FormatStatusNotes(StatusStored, nil, ""); got != "STORED" {
		t.Fatalf("stored format=%q", got)
	}
}
