package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"licitacion-go/internal/calendar"
	"licitacion-go/internal/signal"
)

func TestDetectionDue(t *testing.T) {
	f := newFixture(t, nil, false)
	cases := []struct {
		at   time.Time
		want bool
	}{
		{time.Date(2026, 1, 13, 10, 59, 0, 0, buenosAires), false},
		{time.Date(2026, 1, 13, 11, 0, 0, 0, buenosAires), true},
		{time.Date(2026, 1, 13, 18, 30, 0, 0, buenosAires), true},
		{time.Date(2026, 1, 13, 19, 0, 0, 0, buenosAires), false},
		{time.Date(2026, 1, 17, 12, 0, 0, 0, buenosAires), false}, // Saturday
		{time.Date(2026, 1, 13, 14, 0, 0, 0, time.UTC), true},    // 11:00 local
	}
	for _, tc := range cases {
		if got := f.runner.DetectionDue(tc.at); got != tc.want {
			t.Fatalf("DetectionDue(%s) = %v, want %v", tc.at, got, tc.want)
		}
	}
	if f.runner.InMarketHours(time.Date(2026, 1, 13, 18, 30, 0, 0, buenosAires)) {
		t.Fatalf("18:30 is after the close")
	}
	if !f.runner.InMarketHours(time.Date(2026, 1, 13, 17, 59, 0, 0, buenosAires)) {
		t.Fatalf("17:59 is inside the session")
	}
}

func TestStepRunsOncePerHourAndRefreshesDaily(t *testing.T) {
	f := newFixture(t, []calendar.Event{{Date: auctionDay, Instruments: []string{"S17A6"}}}, false)
	seedAuctionStress(f.provider, "S17A6")
	ctx := context.Background()

	var hour, day string
	step := func(at time.Time) {
		*f.clock = at
		hour, day = f.runner.step(ctx, at, hour, day)
	}

	step(time.Date(2026, 1, 13, 7, 59, 0, 0, buenosAires))
	if f.calendar.Calls() != 0 || f.account.OpenCount() != 0 {
		t.Fatalf("nothing is due before 08:00")
	}
	step(time.Date(2026, 1, 13, 8, 0, 0, 0, buenosAires))
	if f.calendar.Calls() != 1 {
		t.Fatalf("expected daily refresh at 08:00, got %d fetches", f.calendar.Calls())
	}
	step(time.Date(2026, 1, 13, 8, 1, 0, 0, buenosAires))
	if f.calendar.Calls() != 1 {
		t.Fatalf("daily refresh must run once")
	}
	step(time.Date(2026, 1, 13, 11, 0, 0, 0, buenosAires))
	if f.account.OpenCount() != 1 {
		t.Fatalf("expected the 11:00 cycle to open a position")
	}
	f.provider.Update(f.mustSnapshotAt(t, "S17A6", 97))
	step(time.Date(2026, 1, 13, 11, 1, 0, 0, buenosAires))
	if f.account.OpenCount() != 1 {
		t.Fatalf("cycle must not rerun within the same hour")
	}
	step(time.Date(2026, 1, 13, 12, 0, 0, 0, buenosAires))
	if f.account.OpenCount() != 0 {
		t.Fatalf("expected the 12:00 cycle to take profit")
	}
	step(time.Date(2026, 1, 14, 8, 0, 0, 0, buenosAires))
	if f.calendar.Calls() != 2 {
		t.Fatalf("expected a forced refresh on the next day, got %d fetches", f.calendar.Calls())
	}
}

func (f *fixture) mustSnapshotAt(t *testing.T, ticker string, price float64) signal.MarketSnapshot {
	t.Helper()
	snap, err := f.provider.Snapshot(ticker)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	snap.LastPrice = price
	snap.HasSpread = false
	return snap
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.runner.Run(ctx, 5*time.Millisecond) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
