// Package paper simulates signal positions against virtual capital.
package paper

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"licitacion-go/internal/execution"
	"licitacion-go/internal/signal"
)

// FillRecorder captures paper fills for later inspection.
type FillRecorder interface {
	Record(execution.Fill)
}

var (
	// ErrUnknownPosition is returned when a signal id has no open position.
	ErrUnknownPosition = errors.New("paper: unknown position")
	// ErrDuplicatePosition is returned when a signal is opened twice.
	ErrDuplicatePosition = errors.New("paper: position already open")
)

var one = decimal.NewFromInt(1)

// Costs are the proportional execution costs applied to every fill.
type Costs struct {
	CommissionPct float64
	SlippagePct   float64
}

type positionState struct {
	signal   signal.TradingSignal
	side     execution.Side
	qty      decimal.Decimal
	entry    decimal.Decimal // after slippage
	notional decimal.Decimal // capital still committed
	opened   time.Time
}

// Account tracks virtual cash, realized PnL, and per-signal positions in opening order.
type Account struct {
	mu           sync.Mutex
	startingCash decimal.Decimal
	cash         decimal.Decimal
	realizedPnL  decimal.Decimal
	commission   decimal.Decimal
	slippage     decimal.Decimal
	positions    map[uuid.UUID]*positionState
	order        []uuid.UUID
	recorder     FillRecorder
	now          func() time.Time
}

// PositionSnapshot exposes a read-only view of a single signal position.
type PositionSnapshot struct {
	SignalID   uuid.UUID
	Ticker     string
	Side       execution.Side
	Qty        float64
	EntryPrice float64
	Notional   float64
	Unrealized float64
	OpenedAt   time.Time
}

// Snapshot represents a thread-safe view of the account state, optionally marked to market using provided prices.
type Snapshot struct {
	Cash        float64
	RealizedPnL float64
	Equity      float64
	Positions   []PositionSnapshot
}

// Option customizes an Account.
type Option func(*Account)

// WithCosts sets commission and slippage fractions.
func WithCosts(c Costs) Option {
	return func(a *Account) {
		a.commission = decimal.NewFromFloat(c.CommissionPct)
		a.slippage = decimal.NewFromFloat(c.SlippagePct)
	}
}

// WithRecorder sends every fill to r.
func WithRecorder(r FillRecorder) Option {
	return func(a *Account) { a.recorder = r }
}

// WithClock overrides the fill timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Account) { a.now = now }
}

// NewAccount constructs an account populated with starting cash.
func NewAccount(startingCash float64, opts ...Option) *Account {
	cash := decimal.NewFromFloat(startingCash)
	a := &Account{
		startingCash: cash,
		cash:         cash,
		positions:    make(map[uuid.UUID]*positionState),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// StartingCash returns the initial bankroll.
func (a *Account) StartingCash() float64 { return a.startingCash.InexactFloat64() }

// Open commits notional capital to sig at price. Bearish signals open short, everything else long.
func (a *Account) Open(sig signal.TradingSignal, notional decimal.Decimal, price float64) (execution.Fill, error) {
	if !notional.IsPositive() {
		return execution.Fill{}, errors.New("notional must be positive")
	}
	if price <= 0 {
		return execution.Fill{}, errors.New("price must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.positions[sig.ID]; ok {
		return execution.Fill{}, ErrDuplicatePosition
	}
	side := execution.EntrySide(sig.Bearish())
	px := a.adverse(decimal.NewFromFloat(price), side)
	fee := notional.Mul(a.commission)
	if notional.Add(fee).GreaterThan(a.cash) {
		return execution.Fill{}, fmt.Errorf("insufficient cash for %s: need %s, have %s", sig.Ticker, notional.Add(fee).StringFixed(2), a.cash.StringFixed(2))
	}
	qty := notional.Div(px)
	a.cash = a.cash.Sub(notional).Sub(fee)
	a.realizedPnL = a.realizedPnL.Sub(fee)
	a.positions[sig.ID] = &positionState{signal: sig, side: side, qty: qty, entry: px, notional: notional, opened: a.now()}
	a.order = append(a.order, sig.ID)

	fill := execution.Fill{
		SignalID: sig.ID,
		Ticker:   sig.Ticker,
		Side:     side,
		Qty:      qty.InexactFloat64(),
		Price:    px.InexactFloat64(),
		Fee:      fee.InexactFloat64(),
		PnL:      fee.Neg().InexactFloat64(),
		Reason:   "OPEN",
		Ts:       a.now(),
	}
	a.record(fill)
	return fill, nil
}

// Reduce unwinds fraction (0, 1] of the remaining position at price. A fraction of 1 closes it.
func (a *Account) Reduce(id uuid.UUID, fraction, price float64, reason string) (execution.Fill, error) {
	if fraction <= 0 || fraction > 1 {
		return execution.Fill{}, fmt.Errorf("fraction must be in (0,1], got %v", fraction)
	}
	if price <= 0 {
		return execution.Fill{}, errors.New("price must be positive")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pos, ok := a.positions[id]
	if !ok {
		return execution.Fill{}, ErrUnknownPosition
	}
	frac := decimal.NewFromFloat(fraction)
	closeAll := frac.Equal(one)
	qty := pos.qty.Mul(frac)
	committed := pos.notional.Mul(frac)
	if closeAll {
		qty, committed = pos.qty, pos.notional
	}

	exitSide := pos.side.Opposite()
	px := a.adverse(decimal.NewFromFloat(price), exitSide)
	gross := px.Sub(pos.entry).Mul(qty)
	if pos.side == execution.Sell {
		gross = gross.Neg()
	}
	fee := qty.Mul(px).Mul(a.commission)
	pnl := gross.Sub(fee)

	a.cash = a.cash.Add(committed).Add(pnl)
	a.realizedPnL = a.realizedPnL.Add(pnl)
	if closeAll {
		a.remove(id)
	} else {
		pos.qty = pos.qty.Sub(qty)
		pos.notional = pos.notional.Sub(committed)
	}

	fill := execution.Fill{
		SignalID: id,
		Ticker:   pos.signal.Ticker,
		Side:     exitSide,
		Qty:      qty.InexactFloat64(),
		Price:    px.InexactFloat64(),
		Fee:      fee.InexactFloat64(),
		PnL:      pnl.InexactFloat64(),
		Reason:   reason,
		Ts:       a.now(),
	}
	a.record(fill)
	return fill, nil
}

// Close unwinds the whole position at price.
func (a *Account) Close(id uuid.UUID, price float64, reason string) (execution.Fill, error) {
	return a.Reduce(id, 1, price, reason)
}

// OpenSignals returns the signals behind open positions in opening order.
func (a *Account) OpenSignals() []signal.TradingSignal {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]signal.TradingSignal, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.positions[id].signal)
	}
	return out
}

// OpenCount reports how many positions are open.
func (a *Account) OpenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order)
}

// Snapshot returns a copy of balances, optionally marked using the supplied ticker prices.
func (a *Account) Snapshot(prices map[string]float64) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	positions := make([]PositionSnapshot, 0, len(a.order))
	equity := a.cash
	for _, id := range a.order {
		pos := a.positions[id]
		unrealized := decimal.Zero
		if mark, ok := prices[pos.signal.Ticker]; ok && mark > 0 {
			unrealized = decimal.NewFromFloat(mark).Sub(pos.entry).Mul(pos.qty)
			if pos.side == execution.Sell {
				unrealized = unrealized.Neg()
			}
		}
		equity = equity.Add(pos.notional).Add(unrealized)
		positions = append(positions, PositionSnapshot{
			SignalID:   id,
			Ticker:     pos.signal.Ticker,
			Side:       pos.side,
			Qty:        pos.qty.InexactFloat64(),
			EntryPrice: pos.entry.InexactFloat64(),
			Notional:   pos.notional.InexactFloat64(),
			Unrealized: unrealized.InexactFloat64(),
			OpenedAt:   pos.opened,
		})
	}

	return Snapshot{
		Cash:        a.cash.InexactFloat64(),
		RealizedPnL: a.realizedPnL.InexactFloat64(),
		Equity:      equity.InexactFloat64(),
		Positions:   positions,
	}
}

// AvailableCash reports free cash that can be committed to new signals.
func (a *Account) AvailableCash() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cash.InexactFloat64()
}

// RealizedPnL returns total closed-trade profit and loss net of fees.
func (a *Account) RealizedPnL() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realizedPnL.InexactFloat64()
}

// adverse moves price against the trader: buys pay up, sells give up.
func (a *Account) adverse(price decimal.Decimal, side execution.Side) decimal.Decimal {
	if side == execution.Buy {
		return price.Mul(one.Add(a.slippage))
	}
	return price.Mul(one.Sub(a.slippage))
}

func (a *Account) remove(id uuid.UUID) {
	delete(a.positions, id)
	for i, v := range a.order {
		if v == id {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

func (a *Account) record(fill execution.Fill) {
	if a.recorder != nil {
		a.recorder.Record(fill)
	}
}
