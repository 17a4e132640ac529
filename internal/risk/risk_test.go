package risk

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAllow(t *testing.T) {
	sizer := NewSizer(50000, 0.15, 3)
	if !sizer.Allow(2) {
		t.Fatalf("expected third position to pass")
	}
	if sizer.Allow(3) {
		t.Fatalf("expected fourth position to fail")
	}
}

func TestNotional(t *testing.T) {
	sizer := NewSizer(50000, 0.15, 3)
	cases := []struct {
		confidence float64
		want       string
	}{
		{0.925, "6937.5"},
		{1, "7500"},
		{1.4, "7500"},
		{-0.2, "0"},
	}
	for _, tc := range cases {
		got := sizer.Notional(tc.confidence)
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Notional(%v) = %s, want %s", tc.confidence, got, tc.want)
		}
	}
}
