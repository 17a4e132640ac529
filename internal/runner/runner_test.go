package runner

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"licitacion-go/internal/calendar"
	"licitacion-go/internal/execution"
	"licitacion-go/internal/marketdata"
	"licitacion-go/internal/paper"
	"licitacion-go/internal/risk"
	"licitacion-go/internal/signal"
	"licitacion-go/internal/strategy"
)

var buenosAires = time.FixedZone("UTC-3", -3*3600)

// Tuesday, the day before the auction.
var cycleTime = time.Date(2026, 1, 13, 11, 0, 0, 0, buenosAires)

var auctionDay = time.Date(2026, 1, 14, 0, 0, 0, 0, buenosAires)

type countingCalendar struct {
	mu     sync.Mutex
	calls  int
	events []calendar.Event
	err    error
}

func (c *countingCalendar) UpcomingEvents(context.Context, time.Time, int) ([]calendar.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.events, c.err
}

func (c *countingCalendar) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type recordingExecutor struct {
	orders []execution.Order
}

func (r *recordingExecutor) Submit(o execution.Order) error {
	r.orders = append(r.orders, o)
	return nil
}

type recordingJournal struct {
	signals []signal.TradingSignal
	actions []signal.Action
}

func (j *recordingJournal) RecordSignal(s signal.TradingSignal) { j.signals = append(j.signals, s) }
func (j *recordingJournal) RecordAction(a signal.Action)        { j.actions = append(j.actions, a) }

// seedAuctionStress fills ticker with a calm history followed by a thin, wide last print.
func seedAuctionStress(p *marketdata.Provider, ticker string) {
	for i := 0; i < 9; i++ {
		p.Update(signal.MarketSnapshot{Ticker: ticker, LastPrice: 100, BidPrice: 99.9, OfferPrice: 100.1, Volume: 100000})
	}
	p.Update(signal.MarketSnapshot{Ticker: ticker, LastPrice: 100, BidPrice: 99.8, OfferPrice: 100.2, Volume: 40000})
	p.SetDollarRates(1496.5, 1460, cycleTime)
}

type fixture struct {
	runner   *Runner
	provider *marketdata.Provider
	calendar *countingCalendar
	account  *paper.Account
	executor *recordingExecutor
	journal  *recordingJournal
	clock    *time.Time
}

func newFixture(t *testing.T, events []calendar.Event, live bool) *fixture {
	t.Helper()
	provider := marketdata.NewProvider(30)
	engine, err := strategy.NewEngine(provider, strategy.Params{
		WindowDays:              3,
		VolumeDropThreshold:     0.30,
		SpreadIncreaseThreshold: 0.15,
		CurrencyGapThreshold:    0.015,
		MinConfidence:           0.75,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	f := &fixture{
		provider: provider,
		calendar: &countingCalendar{events: events},
		account:  paper.NewAccount(50000),
		journal:  &recordingJournal{},
		clock:    new(time.Time),
	}
	*f.clock = cycleTime
	deps := Deps{
		Engine:   engine,
		Calendar: f.calendar,
		Prices:   provider,
		Account:  f.account,
		Sizer:    risk.NewSizer(50000, 0.15, 3),
		Journal:  f.journal,
	}
	if live {
		f.executor = &recordingExecutor{}
		deps.Executor = f.executor
	}
	f.runner, err = New(deps, Config{
		DefaultInstruments: []string{"S17A6", "S30A6", "S29Y6", "S30J6"},
		HorizonDays:        14,
		RefreshEvery:       24 * time.Hour,
		MarketOpen:         11 * time.Hour,
		MarketClose:        18 * time.Hour,
		CalendarRefreshAt:  8 * time.Hour,
		Location:           buenosAires,
	}, zerolog.Nop(), WithClock(func() time.Time { return *f.clock }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestRunCycleOpensSignals(t *testing.T) {
	f := newFixture(t, []calendar.Event{
		{Date: auctionDay, Title: "Licitación", Instruments: []string{"S17A6", "MISSING"}},
		{Date: auctionDay.AddDate(0, 0, 9), Title: "later"},
	}, false)
	seedAuctionStress(f.provider, "S17A6")

	report, err := f.runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.EventsInWindow != 1 || len(report.Signals) != 1 || report.Opened != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	sig := report.Signals[0]
	if sig.Strength != signal.StrongBearish || math.Abs(sig.Confidence-0.925) > 1e-9 {
		t.Fatalf("unexpected signal %s", sig)
	}
	snap := f.account.Snapshot(nil)
	if len(snap.Positions) != 1 || snap.Positions[0].Side != execution.Sell || math.Abs(snap.Positions[0].Notional-6937.5) > 1e-6 {
		t.Fatalf("unexpected positions %+v", snap.Positions)
	}
	if len(f.journal.signals) != 1 {
		t.Fatalf("expected signal journaled, got %d", len(f.journal.signals))
	}

	// same auction, same ticker: no second position, no second calendar fetch
	report, err = f.runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.Opened != 0 || f.account.OpenCount() != 1 {
		t.Fatalf("expected duplicate signal to be skipped, report %+v", report)
	}
	if f.calendar.Calls() != 1 {
		t.Fatalf("expected cached calendar, got %d fetches", f.calendar.Calls())
	}
}

func TestRunCycleUsesDefaultInstruments(t *testing.T) {
	f := newFixture(t, []calendar.Event{{Date: auctionDay, Title: "sin instrumentos"}}, false)
	seedAuctionStress(f.provider, "S29Y6")
	seedAuctionStress(f.provider, "S30J6") // fourth default, never analyzed

	report, err := f.runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if len(report.Signals) != 1 || report.Signals[0].Ticker != "S29Y6" {
		t.Fatalf("expected only the third default to signal, got %+v", report.Signals)
	}
}

func TestRunCycleClosesOnTarget(t *testing.T) {
	f := newFixture(t, []calendar.Event{{Date: auctionDay, Instruments: []string{"S17A6"}}}, true)
	seedAuctionStress(f.provider, "S17A6")
	if _, err := f.runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	f.provider.Update(signal.MarketSnapshot{Ticker: "S17A6", LastPrice: 97, BidPrice: 96.9, OfferPrice: 97.1, Volume: 30000})
	report, err := f.runner.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if report.Closed != 1 || f.account.OpenCount() != 0 {
		t.Fatalf("expected target close, report %+v open %d", report, f.account.OpenCount())
	}
	if f.account.RealizedPnL() <= 0 {
		t.Fatalf("expected short to profit, got %.2f", f.account.RealizedPnL())
	}
	if len(f.executor.orders) != 2 || f.executor.orders[0].Side != execution.Sell || f.executor.orders[1].Side != execution.Buy {
		t.Fatalf("expected open and cover orders, got %+v", f.executor.orders)
	}
}

func TestExitReason(t *testing.T) {
	short := signal.TradingSignal{Strength: signal.StrongBearish, Target: 97.5, Stop: 101.5}
	long := signal.TradingSignal{Strength: signal.WeakBullish, Target: 102.5, Stop: 98.5}
	cases := []struct {
		sig   signal.TradingSignal
		price float64
		want  string
	}{
		{short, 101.5, ReasonStopLoss},
		{short, 97.5, ReasonTarget},
		{short, 100, ""},
		{long, 98.5, ReasonStopLoss},
		{long, 103, ReasonTarget},
		{long, 100, ""},
	}
	for _, tc := range cases {
		if got := exitReason(tc.sig, tc.price); got != tc.want {
			t.Fatalf("exitReason(%s, %.2f) = %q, want %q", tc.sig.Strength, tc.price, got, tc.want)
		}
	}
}

func TestResolveAppliesDecisions(t *testing.T) {
	f := newFixture(t, []calendar.Event{{Date: auctionDay, Instruments: []string{"S17A6"}}}, false)
	seedAuctionStress(f.provider, "S17A6")
	if _, err := f.runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	actions := f.runner.Resolve(signal.EventOutcome{EventDate: auctionDay, RolloverPct: 0.92})
	if len(actions) != 1 || actions[0].Decision != signal.DecisionPartialClose {
		t.Fatalf("unexpected actions %+v", actions)
	}
	snap := f.account.Snapshot(nil)
	if len(snap.Positions) != 1 || math.Abs(snap.Positions[0].Notional-3468.75) > 1e-6 {
		t.Fatalf("expected half position left, got %+v", snap.Positions)
	}

	actions = f.runner.Resolve(signal.EventOutcome{EventDate: auctionDay, RolloverPct: 0.5})
	if len(actions) != 1 || actions[0].Decision != signal.DecisionHold || f.account.OpenCount() != 1 {
		t.Fatalf("expected hold, got %+v", actions)
	}

	actions = f.runner.Resolve(signal.EventOutcome{EventDate: auctionDay, RolloverPct: 0.97})
	if len(actions) != 1 || actions[0].Decision != signal.DecisionClose || f.account.OpenCount() != 0 {
		t.Fatalf("expected close, got %+v", actions)
	}
	if len(f.journal.actions) != 3 {
		t.Fatalf("expected 3 journaled actions, got %d", len(f.journal.actions))
	}
	if got := f.runner.Resolve(signal.EventOutcome{RolloverPct: 1}); len(got) != 0 {
		t.Fatalf("expected no actions without open positions, got %+v", got)
	}
}

func TestCalendarFailureKeepsCache(t *testing.T) {
	f := newFixture(t, []calendar.Event{{Date: auctionDay, Instruments: []string{"S17A6"}}}, false)
	if err := f.runner.RefreshCalendar(context.Background()); err != nil {
		t.Fatalf("RefreshCalendar: %v", err)
	}
	f.calendar.err = errors.New("site down")
	f.runner.ForceRefresh()
	if err := f.runner.RefreshCalendar(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	if len(f.runner.Events()) != 1 {
		t.Fatalf("expected cached events to survive a failed refresh")
	}
	if _, err := f.runner.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle should not fail on calendar errors: %v", err)
	}
}

func TestNewRequiresDeps(t *testing.T) {
	if _, err := New(Deps{}, Config{}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for missing deps")
	}
}
