package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestPage(t *testing.T) {
	cases := []struct {
		page, size   string
		wantP, wantS int
	}{
		{"", "", 1, DefaultPageSize},
		{"3", "50", 3, 50},
		{"0", "0", 1, 1},
		{"-2", "500", 1, MaxPageSize},
		{"x", "y", 1, DefaultPageSize},
	}
	for _, tc := range cases {
		if p, s := Page(tc.page, tc.size); p != tc.wantP || s != tc.wantS {
			t.Errorf("Page(%q, %q) = %d, %d; want %d, %d", tc.page, tc.size, p, s, tc.wantP, tc.wantS)
		}
	}
}

func TestTotalPages(t *testing.T) {
	if TotalPages(0, 20) != 0 || TotalPages(20, 20) != 1 || TotalPages(21, 20) != 2 {
		t.Fatalf("TotalPages arithmetic off")
	}
}
