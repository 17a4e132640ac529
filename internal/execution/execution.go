// Package execution defines orders and fills and hosts the order submitter. Nothing is routed to a venue.
package execution

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"licitacion-go/internal/metrics"
)

// Side enumerates order directions used by the executor.
type Side string

const (
	// Buy opens a long or covers a short.
	Buy Side = "BUY"
	// Sell opens a short or exits a long.
	Sell Side = "SELL"
)

// Opposite returns the side that unwinds s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// EntrySide maps a signal direction onto the side that opens it.
func EntrySide(bearish bool) Side {
	if bearish {
		return Sell
	}
	return Buy
}

// Order represents a placement request the executor can process.
type Order struct {
	SignalID uuid.UUID
	Ticker   string
	Side     Side
	Qty      float64
	Price    float64 // limit; 0 for market
}

// Fill is an executed (or simulated) order slice.
type Fill struct {
	SignalID uuid.UUID `json:"signal_id"`
	Ticker   string    `json:"ticker"`
	Side     Side      `json:"side"`
	Qty      float64   `json:"qty"`
	Price    float64   `json:"price"`
	Fee      float64   `json:"fee"`
	PnL      float64   `json:"pnl"`
	Reason   string    `json:"reason,omitempty"`
	Ts       time.Time `json:"ts"`
}

// Executor implements a logger-backed submitter for orders.
type Executor struct{ log zerolog.Logger }

// NewExecutor wraps a zerolog logger for order submissions.
func NewExecutor(log zerolog.Logger) *Executor { return &Executor{log: log} }

// Submit logs the order request and counts it.
func (executor *Executor) Submit(order Order) error {
	metrics.OrdersTotal.WithLabelValues(order.Ticker, string(order.Side)).Inc()
	executor.log.Info().
		Str("signal", order.SignalID.String()).
		Str("ticker", order.Ticker).
		Str("side", string(order.Side)).
		Float64("qty", order.Qty).
		Float64("px", order.Price).
		Msg("submit order (stub)")
	return nil
}
