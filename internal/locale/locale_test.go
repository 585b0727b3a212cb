package locale_test

import (
	"testing"

	"plansync/internal/locale"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in       string
		date     string
		dateTime string
	}{
		{"2025-12-18", "2025-12-18", ""},
		{"16.12.2025", "2025-12-16", ""},
		{" 1.2.2024 ", "2024-02-01", ""},
		{"17.12.2025 13:03:17", "2025-12-17", "2025-12-17T13:03:17"},
		{"16.12.2025  9:08:59", "2025-12-16", "2025-12-16T09:08:59"},
		{"31.02.2025", "", ""},
		{"2025-13-01", "", ""},
		{"16.12.25", "", ""},
		{"morgen", "", ""},
		{"", "", ""},
		{"17.12.2025 25:00:00", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			date, dateTime := locale.ParseDate(tt.in)
			if date != tt.date || dateTime != tt.dateTime {
				t.Fatalf("ParseDate(%q) = (%q, %q), want (%q, %q)", tt.in, date, dateTime, tt.date, tt.dateTime)
			}
		})
	}
}

func TestNormalizeDateKeepsOriginal(t *testing.T) {
	if got := locale.NormalizeDate("16.12.2025"); got != "2025-12-16" {
		t.Fatalf("unexpected normalized date %q", got)
	}
	if got := locale.NormalizeDate(" KW 51 "); got != "KW 51" {
		t.Fatalf("expected trimmed original, got %q", got)
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"11,30", 11.3, true},
		{"5", 5, true},
		{"-2,5", -2.5, true},
		{"1.234.567,8", 1234567.8, true},
		{"12,50 €", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"1,2,3", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := locale.ParseDecimal(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseDecimal(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("ParseDecimal(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmountStripsCurrency(t *testing.T) {
	got := locale.ParseAmount("12,50 €")
	if got == nil || *got != 12.5 {
		t.Fatalf("unexpected amount %v", got)
	}
	if locale.ParseAmount("n/a") != nil {
		t.Fatal("expected nil for non-numeric amount")
	}
}

func TestFindDates(t *testing.T) {
	got := locale.FindDates("Array 01.12.2025 / 2025-12-03")
	if len(got) != 2 || got[0] != "01.12.2025" || got[1] != "2025-12-03" {
		t.Fatalf("unexpected dates %v", got)
	}
}
