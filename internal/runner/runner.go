// Package runner drives detection cycles: it keeps the auction calendar fresh, asks the engine for
// signals, books them, watches stops and targets, and applies post-auction decisions.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"licitacion-go/internal/calendar"
	"licitacion-go/internal/execution"
	"licitacion-go/internal/metrics"
	"licitacion-go/internal/paper"
	"licitacion-go/internal/risk"
	"licitacion-go/internal/signal"
	"licitacion-go/internal/strategy"
)

// Close reasons recorded on fills.
const (
	ReasonStopLoss = "STOP_LOSS"
	ReasonTarget   = "TARGET"
)

// defaultInstrumentCount is how many default LECAPs stand in for an event without instruments.
const defaultInstrumentCount = 3

// PriceSource returns the latest snapshot for a ticker.
type PriceSource interface {
	Snapshot(ticker string) (signal.MarketSnapshot, error)
}

// Submitter forwards orders to a venue. Paper mode runs without one.
type Submitter interface {
	Submit(execution.Order) error
}

// Journal persists emitted signals and resolver actions.
type Journal interface {
	RecordSignal(signal.TradingSignal)
	RecordAction(signal.Action)
}

// Config carries scheduling and universe settings.
type Config struct {
	DefaultInstruments []string
	HorizonDays        int
	RefreshEvery       time.Duration
	MarketOpen         time.Duration // offset from local midnight
	MarketClose        time.Duration
	CalendarRefreshAt  time.Duration
	Location           *time.Location
}

// Deps are the collaborators a Runner drives.
type Deps struct {
	Engine   *strategy.Engine
	Calendar calendar.Source
	Prices   PriceSource
	Account  *paper.Account
	Sizer    risk.Sizer
	Executor Submitter // nil in paper mode
	Journal  Journal   // optional
}

// CycleReport summarizes one detection cycle.
type CycleReport struct {
	EventsInWindow int
	Signals        []signal.TradingSignal
	Opened         int
	Closed         int
}

// Runner is safe for use by a single scheduler goroutine plus concurrent Resolve calls.
type Runner struct {
	deps Deps
	cfg  Config
	log  zerolog.Logger
	now  func() time.Time

	mu          sync.Mutex
	events      []calendar.Event
	refreshedAt time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New wires a Runner. Engine, Calendar, Prices, and Account are required.
func New(deps Deps, cfg Config, log zerolog.Logger, opts ...Option) (*Runner, error) {
	switch {
	case deps.Engine == nil:
		return nil, errors.New("runner: engine is required")
	case deps.Calendar == nil:
		return nil, errors.New("runner: calendar is required")
	case deps.Prices == nil:
		return nil, errors.New("runner: price source is required")
	case deps.Account == nil:
		return nil, errors.New("runner: account is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 14
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 24 * time.Hour
	}
	if cfg.MarketClose <= cfg.MarketOpen {
		cfg.MarketOpen, cfg.MarketClose = 11*time.Hour, 18*time.Hour
	}
	if cfg.CalendarRefreshAt <= 0 {
		cfg.CalendarRefreshAt = 8 * time.Hour
	}
	r := &Runner{deps: deps, cfg: cfg, log: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Events returns the cached calendar.
func (r *Runner) Events() []calendar.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calendar.Event, len(r.events))
	copy(out, r.events)
	return out
}

// ForceRefresh marks the calendar stale so the next cycle reloads it.
func (r *Runner) ForceRefresh() {
	r.mu.Lock()
	r.refreshedAt = time.Time{}
	r.mu.Unlock()
}

// RefreshCalendar reloads events when the cache is older than RefreshEvery. A failed reload keeps the
// previous events.
func (r *Runner) RefreshCalendar(ctx context.Context) error {
	now := r.now()
	r.mu.Lock()
	stale := r.refreshedAt.IsZero() || now.Sub(r.refreshedAt) > r.cfg.RefreshEvery
	r.mu.Unlock()
	if !stale {
		return nil
	}

	events, err := r.deps.Calendar.UpcomingEvents(ctx, now, r.cfg.HorizonDays)
	if err != nil {
		return fmt.Errorf("refresh calendar: %w", err)
	}
	r.mu.Lock()
	r.events = events
	r.refreshedAt = now
	r.mu.Unlock()

	r.log.Info().Int("events", len(events)).Msg("auction calendar updated")
	for i, ev := range events {
		if i == 3 {
			break
		}
		r.log.Info().Time("event", ev.Date).Str("title", ev.Title).Strs("instruments", ev.Instruments).Msg("upcoming auction")
	}
	return nil
}

// RunCycle runs one detection pass over every event inside the engine window, then checks open
// positions against their stops and targets.
func (r *Runner) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	if err := r.RefreshCalendar(ctx); err != nil {
		r.log.Error().Err(err).Msg("calendar refresh failed, using cached events")
	}

	now := r.now()
	for _, ev := range r.Events() {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if !r.deps.Engine.InWindow(ev.Date, now) {
			continue
		}
		report.EventsInWindow++
		tickers := ev.Instruments
		if len(tickers) == 0 {
			tickers = r.defaultInstruments()
			r.log.Warn().Time("event", ev.Date).Strs("tickers", tickers).Msg("event lists no instruments, using defaults")
		}
		r.log.Info().Time("event", ev.Date).Int("days", strategy.DaysUntil(ev.Date, now)).Msg("analyzing auction")

		signals := r.deps.Engine.Analyze(ev.Date, tickers, now)
		report.Signals = append(report.Signals, signals...)
		for _, sig := range signals {
			if r.open(sig) {
				report.Opened++
			}
		}
	}

	report.Closed = r.monitor(now)
	metrics.OpenSignals.Set(float64(r.deps.Account.OpenCount()))
	r.log.Info().
		Int("events_in_window", report.EventsInWindow).
		Int("signals", len(report.Signals)).
		Int("opened", report.Opened).
		Int("closed", report.Closed).
		Int("open", r.deps.Account.OpenCount()).
		Msg("detection cycle complete")
	return report, nil
}

func (r *Runner) defaultInstruments() []string {
	n := defaultInstrumentCount
	if len(r.cfg.DefaultInstruments) < n {
		n = len(r.cfg.DefaultInstruments)
	}
	return append([]string(nil), r.cfg.DefaultInstruments[:n]...)
}

// open books sig unless the position cap is hit or the same ticker is already held for the same auction.
func (r *Runner) open(sig signal.TradingSignal) bool {
	log := r.log.With().Str("ticker", sig.Ticker).Str("strength", sig.Strength.String()).Logger()
	for _, held := range r.deps.Account.OpenSignals() {
		if held.Ticker == sig.Ticker && held.EventDate.Equal(sig.EventDate) {
			log.Debug().Msg("position already open for this auction")
			return false
		}
	}
	if !r.deps.Sizer.Allow(r.deps.Account.OpenCount()) {
		log.Warn().Int("max_positions", r.deps.Sizer.MaxPositions).Msg("position limit reached, signal not booked")
		return false
	}
	notional := r.deps.Sizer.Notional(sig.Confidence)
	fill, err := r.deps.Account.Open(sig, notional, sig.Entry)
	if err != nil {
		log.Warn().Err(err).Msg("open position failed")
		return false
	}
	log.Info().
		Str("side", string(fill.Side)).
		Str("notional", notional.StringFixed(2)).
		Float64("entry", sig.Entry).
		Float64("target", sig.Target).
		Float64("stop", sig.Stop).
		Msg("position opened")

	if r.deps.Journal != nil {
		r.deps.Journal.RecordSignal(sig)
	}
	r.submit(sig, fill.Side, fill.Qty, sig.Entry)
	return true
}

func (r *Runner) submit(sig signal.TradingSignal, side execution.Side, qty, price float64) {
	if r.deps.Executor == nil {
		return
	}
	order := execution.Order{SignalID: sig.ID, Ticker: sig.Ticker, Side: side, Qty: qty, Price: price}
	if err := r.deps.Executor.Submit(order); err != nil {
		r.log.Error().Err(err).Str("ticker", sig.Ticker).Msg("order submission failed")
	}
}

// monitor closes positions whose last price crossed the stop or the target.
func (r *Runner) monitor(now time.Time) int {
	closed := 0
	for _, sig := range r.deps.Account.OpenSignals() {
		snap, err := r.deps.Prices.Snapshot(sig.Ticker)
		if err != nil || !snap.HasPrice() {
			continue
		}
		reason := exitReason(sig, snap.LastPrice)
		if reason == "" {
			continue
		}
		if r.closePosition(sig, snap.LastPrice, reason) {
			closed++
		}
	}
	return closed
}

// exitReason reports STOP_LOSS or TARGET when price crosses a level, else "".
func exitReason(sig signal.TradingSignal, price float64) string {
	if sig.Bearish() {
		switch {
		case price >= sig.Stop:
			return ReasonStopLoss
		case price <= sig.Target:
			return ReasonTarget
		}
		return ""
	}
	switch {
	case price <= sig.Stop:
		return ReasonStopLoss
	case price >= sig.Target:
		return ReasonTarget
	}
	return ""
}

func (r *Runner) closePosition(sig signal.TradingSignal, price float64, reason string) bool {
	return r.reduce(sig, 1, price, reason)
}

func (r *Runner) reduce(sig signal.TradingSignal, fraction, price float64, reason string) bool {
	fill, err := r.deps.Account.Reduce(sig.ID, fraction, price, reason)
	if err != nil {
		r.log.Error().Err(err).Str("ticker", sig.Ticker).Msg("close position failed")
		return false
	}
	ev := r.log.Info()
	if reason == ReasonStopLoss {
		ev = r.log.Warn()
	}
	ev.Str("ticker", sig.Ticker).
		Str("reason", reason).
		Float64("fraction", fraction).
		Float64("price", price).
		Float64("pnl", fill.PnL).
		Msg("position reduced")
	r.submit(sig, fill.Side, fill.Qty, price)
	return true
}

// Resolve runs the post-auction resolver over the open positions (opening order) and applies every
// decision at the latest known price, falling back to the signal entry.
func (r *Runner) Resolve(outcome signal.EventOutcome) []signal.Action {
	open := r.deps.Account.OpenSignals()
	actions := strategy.Resolve(outcome, open)
	for _, action := range actions {
		log := r.log.With().Str("ticker", action.Signal.Ticker).Str("decision", string(action.Decision)).Float64("rollover", outcome.RolloverPct).Logger()
		log.Info().Str("reason", action.Reason).Msg("auction outcome decision")
		if r.deps.Journal != nil {
			r.deps.Journal.RecordAction(action)
		}
		price := action.Signal.Entry
		if snap, err := r.deps.Prices.Snapshot(action.Signal.Ticker); err == nil && snap.HasPrice() {
			price = snap.LastPrice
		}
		switch action.Decision {
		case signal.DecisionClose:
			r.reduce(action.Signal, 1, price, string(action.Decision))
		case signal.DecisionPartialClose:
			r.reduce(action.Signal, action.Fraction, price, string(action.Decision))
		}
	}
	metrics.OpenSignals.Set(float64(r.deps.Account.OpenCount()))
	return actions
}
