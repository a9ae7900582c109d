package parse

import "testing"

func TestParseImportFilename(t *testing.T) {
	cases := []struct {
		in   string
		want ImportFilename
	}{
		{"2019-Honda-CBR650F-Oil Change.pdf", ImportFilename{Year: 2019, Make: "Honda", Model: "CBR650F", Title: "Oil Change"}},
		{"2019-Honda-CBR650F-Oil Change-2.pdf", ImportFilename{Year: 2019, Make: "Honda", Model: "CBR650F", Title: "Oil Change", Index: 2}},
		{"Registration-2024.pdf", ImportFilename{Title: "Registration-2024"}},
		{"Title-99.jpg", ImportFilename{Title: "Title", Index: 99}},
		{"docs/Insurance Card.PDF", ImportFilename{Title: "Insurance Card"}},
		{"1885-Benz-Motorwagen-Patent.pdf", ImportFilename{Title: "1885-Benz-Motorwagen-Patent"}},
		{"Bill of Sale", ImportFilename{Title: "Bill of Sale"}},
	}
	for _, tc := range cases {
		if got := ParseImportFilename(tc.in); got != tc.want {
			t.Fatalf("ParseImportFilename(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestMatchTitle_Scores(t *testing.T) {
	titles := []string{"Oil Change", "Front Tire Replacement", "Registration Renewal"}

	cases := []struct {
		file  string
		title string
		conf  int
	}{
		{"2019-Honda-CBR650F-oil_change.pdf", "Oil Change", 100},
		{"OIL-CHANGE-3.pdf", "Oil Change", 100},
		{"Registration.pdf", "Registration Renewal", 85},
		{"Registration Renewal 2025 receipt.pdf", "Registration Renewal", 80},
		{"Tire Replacement Front.pdf", "Front Tire Replacement", 75},
	}
	for _, tc := range cases {
		m, ok := MatchTitle(tc.file, titles)
		if !ok {
			t.Fatalf("MatchTitle(%q) found nothing", tc.file)
		}
		if m.Title != tc.title || m.Confidence != tc.conf {
			t.Fatalf("MatchTitle(%q) = %+v, want %s/%d", tc.file, m, tc.title, tc.conf)
		}
	}
}

func TestMatchTitle_NoCommonWordsIsNoMatch(t *testing.T) {
	if m, ok := MatchTitle("Insurance Card.pdf", []string{"Oil Change", "Front Tire Replacement"}); ok {
		t.Fatalf("expected no match, got %+v", m)
	}
}

func TestMatchTitle_PartialWordsDoNotContain(t *testing.T) {
	for _, file := range []string{"cha.pdf", "Oil Chang.pdf", "il change.pdf"} {
		if m, ok := MatchTitle(file, []string{"Oil Change"}); ok {
			t.Fatalf("MatchTitle(%q) = %+v, want no match", file, m)
		}
	}
	if m, _ := MatchTitle("Oil.pdf", []string{"Oil Change"}); m.Confidence != 85 {
		t.Fatalf("whole-word containment = %+v", m)
	}
}

func TestMatchTitle_LowOverlapBelowCutoff(t *testing.T) {
	// one shared word out of four → 15 + 15 = 30
	if m, ok := MatchTitle("tire pressure gauge manual.pdf", []string{"Front Tire Replacement Receipt"}); ok {
		t.Fatalf("expected below cutoff, got %+v", m)
	}
}

func TestMatchTitle_EmptyInputs(t *testing.T) {
	if _, ok := MatchTitle("", []string{"Oil Change"}); ok {
		t.Fatalf("empty filename must not match")
	}
	if _, ok := MatchTitle("---.pdf", []string{"Oil Change"}); ok {
		t.Fatalf("punctuation-only filename must not match")
	}
	if _, ok := MatchTitle("Oil Change.pdf", nil); ok {
		t.Fatalf("no candidates must not match")
	}
	if _, ok := MatchTitle("Oil Change.pdf", []string{"", "  "}); ok {
		t.Fatalf("blank candidates must not match")
	}
}
