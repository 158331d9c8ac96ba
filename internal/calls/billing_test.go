package calls

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBillingFor_CeilsToStartedMinute(t *testing.T) {
	rate := decimal.RequireFromString("50.00")
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		elapsed     time.Duration
		wantSeconds int
		wantMinutes int
		wantTotal   string
	}{
		{"zero", 0, 0, 0, "0"},
		{"one second", time.Second, 1, 1, "50.00"},
		{"sub-second rounds down", 400 * time.Millisecond, 0, 0, "0"},
		{"sub-second rounds up", 600 * time.Millisecond, 1, 1, "50.00"},
		{"exactly one minute", time.Minute, 60, 1, "50.00"},
		{"one minute one second", 61 * time.Second, 61, 2, "100.00"},
		{"ninety seconds", 90 * time.Second, 90, 2, "100.00"},
		{"two minutes", 2 * time.Minute, 120, 2, "100.00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			seconds, minutes, total := billingFor(start, start.Add(tc.elapsed), rate)
			if seconds != tc.wantSeconds {
				t.Fatalf("seconds = %d, want %d", seconds, tc.wantSeconds)
			}
			if minutes != tc.wantMinutes {
				t.Fatalf("minutes = %d, want %d", minutes, tc.wantMinutes)
			}
			if !total.Equal(decimal.RequireFromString(tc.wantTotal)) {
				t.Fatalf("total = %s, want %s", total, tc.wantTotal)
			}
		})
	}
}

func TestBillingFor_NegativeClampsToZero(t *testing.T) {
	rate := decimal.RequireFromString("50.00")
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seconds, minutes, total := billingFor(start, start.Add(-time.Second), rate)
	if seconds != 0 || minutes != 0 || !total.IsZero() {
		t.Fatalf("expected zero billing, got %d s %d min %s", seconds, minutes, total)
	}
}
