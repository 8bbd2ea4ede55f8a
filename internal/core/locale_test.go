package core

import "testing"

func TestMatchLocale(t *testing.T) {
	def := DefaultLocale()
	cases := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"en-US,en;q=0.9", "en"},
		{"en-GB", "en-GB"},
		{"it-IT,it;q=0.9,en;q=0.5", "it"},
		{"de", "de"},
		{"fr-CH, fr;q=0.9", "fr"},
		{"hi-IN", "hi"},
		{"ja", "en"},
		{"%%%", "en"},
	}
	for _, tc := range cases {
		got := MatchLocale(tc.header, def)
		if got.String() != tc.want {
			t.Errorf("MatchLocale(%q) = %s, want %s", tc.header, got, tc.want)
		}
	}
}

func TestLookupLocaleFallback(t *testing.T) {
	if got := LookupLocale("not a tag"); got.String() != "en" {
		t.Fatalf("got %s", got)
	}
	if got := LookupLocale("es"); got.String() != "es" {
		t.Fatalf("got %s", got)
	}
}

func TestFormatDate(t *testing.T) {
	d := NewDate(2024, 3, 7)
	cases := []struct {
		locale string
		want   string
	}{
		{"en", "3/7/2024"},
		{"en-GB", "07/03/2024"},
		{"it", "7/3/2024"},
		{"de", "7.3.2024"},
		{"fr", "07/03/2024"},
	}
	for _, tc := range cases {
		if got := FormatDate(d, LookupLocale(tc.locale)); got != tc.want {
			t.Errorf("FormatDate(%s) = %q, want %q", tc.locale, got, tc.want)
		}
	}
	if got := FormatDate(Date{}, DefaultLocale()); got != "" {
		t.Errorf("zero date rendered as %q", got)
	}
}

func TestMonthLabel(t *testing.T) {
	d := NewDate(2024, 1, 1)
	cases := []struct {
		locale string
		want   string
	}{
		{"en", "Jan 2024"},
		{"it", "gen 2024"},
		{"fr", "janv. 2024"},
		{"es", "ene 2024"},
	}
	for _, tc := range cases {
		if got := MonthLabel(d, LookupLocale(tc.locale)); got != tc.want {
			t.Errorf("MonthLabel(%s) = %q, want %q", tc.locale, got, tc.want)
		}
	}
	// a zero Locale behaves like the default
	if got := MonthLabel(d, Locale{}); got != "Jan 2024" {
		t.Errorf("zero locale: got %q", got)
	}
}

func TestDescriptionOrDash(t *testing.T) {
	if DescriptionOrDash("") != "—" || DescriptionOrDash("  ") != "—" {
		t.Fatal("empty description should render as a dash")
	}
	if DescriptionOrDash("Lunch") != "Lunch" {
		t.Fatal("description changed")
	}
}
