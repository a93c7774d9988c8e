package timeparsing

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)

func TestParseAbsolute(t *testing.T) {
	got, err := Parse("2026-07-01T09:00:00Z", testNow)
	if err != nil {
		t.Fatalf("Parse RFC3339 failed: %v", err)
	}
	want := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}

	got, err = Parse("2026-07-01", testNow)
	if err != nil {
		t.Fatalf("Parse date-only failed: %v", err)
	}
	if got.Year() != 2026 || got.Month() != time.July || got.Day() != 1 {
		t.Errorf("Expected 2026-07-01, got %v", got)
	}
}

func TestParseCompactDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"6h", testNow.Add(6 * time.Hour)},
		{"+6h", testNow.Add(6 * time.Hour)},
		{"-2h", testNow.Add(-2 * time.Hour)},
		{"1d", testNow.AddDate(0, 0, 1)},
		{"2w", testNow.AddDate(0, 0, 14)},
		{"-1w", testNow.AddDate(0, 0, -7)},
		{"3m", testNow.AddDate(0, 3, 0)},
		{"1y", testNow.AddDate(1, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCompactDuration(tt.input, testNow)
			if err != nil {
				t.Fatalf("ParseCompactDuration(%q) failed: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseCompactDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsCompactDuration(t *testing.T) {
	for _, valid := range []string{"6h", "+1d", "-2w", "12m", "1y"} {
		if !IsCompactDuration(valid) {
			t.Errorf("IsCompactDuration(%q) = false, want true", valid)
		}
	}
	for _, invalid := range []string{"", "h", "6", "6x", "next week", "2026-01-01", "1.5d"} {
		if IsCompactDuration(invalid) {
			t.Errorf("IsCompactDuration(%q) = true, want false", invalid)
		}
	}
}

func TestParseNaturalLanguage(t *testing.T) {
	got, err := Parse("tomorrow", testNow)
	if err != nil {
		t.Fatalf("Parse natural language failed: %v", err)
	}
	if got.Day() != 16 || got.Month() != time.June {
		t.Errorf("Expected June 16, got %v", got)
	}
}

func TestParseUnrecognized(t *testing.T) {
	if _, err := Parse("the heat death of the universe", testNow); err == nil {
		t.Error("Expected unrecognized expression to fail")
	}
}
