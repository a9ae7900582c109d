package parse

import (
	"testing"
	"time"
)

var refNow = time.Date(2026, time.October, 14, 15, 30, 0, 0, time.UTC)

func TestParseFlexibleDateAt_Shapes(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-05", "2024-03-05", true},
		{"2024-3-5", "2024-03-05", true},
		{"6/25/2026", "2026-06-25", true},
		{"6/25/26", "2026-06-25", true},
		{"  7/4/99 ", "2099-07-04", true},
		{"January 2, 2025", "2025-01-02", true},
		{"Mar 9 2024", "2024-03-09", true},
		{"2024/12/31", "2024-12-31", true},
		{"2026-02-30", "", false},
		{"2/30/2026", "", false},
		{"13/1", "", false},
		{"13/1/2026", "", false},
		{"", "", false},
		{"   \t ", "", false},
		{"next tuesday", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseFlexibleDateAt(tc.in, refNow)
		if ok != tc.ok {
			t.Fatalf("ParseFlexibleDateAt(%q) ok=%v, want %v (got %v)", tc.in, ok, tc.ok, got)
		}
		if ok && FormatDateForDB(got) != tc.want {
			t.Fatalf("ParseFlexibleDateAt(%q)=%s, want %s", tc.in, FormatDateForDB(got), tc.want)
		}
	}
}

func TestParseFlexibleDateAt_YearOmitted(t *testing.T) {
	cases := map[string]string{
		"10/14": "2026-10-14", // today stays in the current year
		"10/15": "2026-10-15",
		"12/31": "2026-12-31",
		"10/13": "2027-10-13", // yesterday rolls to next year
		"1/1":   "2027-01-01",
		"2/29":  "2028-02-29", // 2026 and 2027 are not leap years
	}
	for in, want := range cases {
		got, ok := ParseFlexibleDateAt(in, refNow)
		if !ok {
			t.Fatalf("ParseFlexibleDateAt(%q) not parsed", in)
		}
		if s := FormatDateForDB(got); s != want {
			t.Fatalf("ParseFlexibleDateAt(%q)=%s, want %s", in, s, want)
		}
		if int(got.Month()) != atoi(in[:indexSlash(in)]) {
			t.Fatalf("month mismatch for %q: %v", in, got)
		}
	}
}

func TestParseFlexibleDateAt_LeapYearCurrent(t *testing.T) {
	leapNow := time.Date(2028, time.January, 10, 0, 0, 0, 0, time.UTC)
	got, ok := ParseFlexibleDateAt("2/29", leapNow)
	if !ok || FormatDateForDB(got) != "2028-02-29" {
		t.Fatalf("2/29 in a leap year = %v %v", got, ok)
	}
}

func TestFormatDateForDB_ZeroIsEmpty(t *testing.T) {
	if s := FormatDateForDB(time.Time{}); s != "" {
		t.Fatalf("zero time should format as empty, got %q", s)
	}
}

func TestFlexibleDate_RoundTripIdempotent(t *testing.T) {
	for _, in := range []string{"2020-01-01", "1999-12-31", "2024-02-29", "2031-7-9"} {
		first, ok := ParseFlexibleDateAt(in, refNow)
		if !ok {
			t.Fatalf("parse %q", in)
		}
		once := FormatDateForDB(first)
		second, ok := ParseFlexibleDateAt(once, refNow)
		if !ok {
			t.Fatalf("reparse %q", once)
		}
		if twice := FormatDateForDB(second); twice != once {
			t.Fatalf("round trip drifted: %q -> %q -> %q", in, once, twice)
		}
	}
}

func indexSlash(s string) int {
	for i := range s {
		if s[i] == '/' {
			return i
		}
	}
	return len(s)
}
