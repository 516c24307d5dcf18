package timeparsing

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestLookback(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"12h", now.Add(-12 * time.Hour)},
		{"7d", now.AddDate(0, 0, -7)},
		{"-7d", now.AddDate(0, 0, -7)},
		{"2w", now.AddDate(0, 0, -14)},
		{"3m", now.AddDate(0, -3, 0)},
		{"1y", now.AddDate(-1, 0, 0)},
		{"0d", now},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Lookback(tt.in, now)
			if !ok {
				t.Fatalf("Lookback(%q) not recognized", tt.in)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Lookback(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLookbackRejectsOtherForms(t *testing.T) {
	for _, in := range []string{"+1d", "7", "d", "7x", "7 d", "1.5d", "yesterday", "2024-01-31"} {
		if _, ok := Lookback(in, now); ok {
			t.Errorf("Lookback(%q) recognized, want rejected", in)
		}
	}
}

func TestParseSinceAbsolute(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-05-01 09:30", time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)},
		{"2024-05-01T09:30:15", time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)},
		{"2024-05-01T09:30:00+03:00", time.Date(2024, 5, 1, 6, 30, 0, 0, time.UTC)},
		{"  2024-05-01  ", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSince(tt.in, now)
			if err != nil {
				t.Fatalf("ParseSince(%q) error = %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseSince(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSinceUsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	got, err := ParseSince("2024-05-01", now.In(loc))
	if err != nil {
		t.Fatalf("ParseSince() error = %v", err)
	}
	if got.Location() != loc || got.Hour() != 0 {
		t.Errorf("ParseSince() = %s, want midnight in %s", got, loc)
	}
}

func TestParseSincePhrases(t *testing.T) {
	tests := []struct {
		in      string
		wantDay int
	}{
		{"yesterday", 9},
		{"3 days ago", 7},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSince(tt.in, now)
			if err != nil {
				t.Fatalf("ParseSince(%q) error = %v", tt.in, err)
			}
			if got.Day() != tt.wantDay || got.Month() != time.March {
				t.Errorf("ParseSince(%q) = %s, want March %d", tt.in, got, tt.wantDay)
			}
		})
	}
}

func TestParseSinceErrors(t *testing.T) {
	tests := []struct {
		in         string
		wantFuture bool
		wantMsg    string
	}{
		{in: ""},
		{in: "banana", wantMsg: "unrecognized cutoff"},
		{in: "2030-01-01", wantFuture: true},
		{in: "+1d"}, // not a look-back
		{in: "tomorrow", wantFuture: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseSince(tt.in, now)
			if err == nil {
				t.Fatalf("ParseSince(%q) succeeded, want error", tt.in)
			}
			if tt.wantFuture && !errors.Is(err, ErrFuture) {
				t.Errorf("ParseSince(%q) error = %v, want ErrFuture", tt.in, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("ParseSince(%q) error = %v, want %q", tt.in, err, tt.wantMsg)
			}
		})
	}
}
