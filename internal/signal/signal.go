// Package signal standardizes payloads shared between data ingestion, strategy, and orchestration layers.
package signal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MarketSnapshot is an immutable point-in-time read of one instrument's book. Feeds that stream
// partial updates leave HasLast or HasVolume unset for fields the update did not carry.
type MarketSnapshot struct {
	Ticker     string
	Ts         time.Time
	LastPrice  float64
	LastSize   float64
	HasLast    bool
	BidPrice   float64
	BidSize    float64
	OfferPrice float64
	OfferSize  float64
	Volume     float64
	HasVolume  bool
	SpreadBps  float64
	HasSpread  bool
}

// HasPrice reports whether the snapshot carries a usable last price.
func (s MarketSnapshot) HasPrice() bool { return s.LastPrice > 0 }

// SpreadBps computes the bid/offer spread in basis points of the mid. ok is false when either side is missing.
func SpreadBps(bid, offer float64) (bps float64, ok bool) {
	if bid <= 0 || offer <= 0 {
		return 0, false
	}
	mid := (bid + offer) / 2
	return (offer - bid) / mid * 10000, true
}

// VolumeTrend tags the short-term slope of traded volume.
type VolumeTrend string

const (
	TrendIncreasing VolumeTrend = "increasing"
	TrendDecreasing VolumeTrend = "decreasing"
	TrendStable     VolumeTrend = "stable"
	TrendUnknown    VolumeTrend = "unknown"
)

// VolumeMetrics summarizes current volume against its rolling average.
type VolumeMetrics struct {
	AvgVolume     float64     `json:"avg_volume"`
	CurrentVolume float64     `json:"current_volume"`
	PctChange     float64     `json:"pct_change"`
	Trend         VolumeTrend `json:"trend"`
}

// SpreadMetrics summarizes the current bid/offer spread against its rolling history.
type SpreadMetrics struct {
	CurrentBps  float64 `json:"current_bps"`
	AvgBps      float64 `json:"avg_bps"`
	PctIncrease float64 `json:"pct_increase"`
	Percentile  float64 `json:"percentile"` // 0-100
}

// DollarGap captures the divergence between the parallel (MEP) and official exchange rates.
type DollarGap struct {
	Parallel       float64   `json:"parallel"`
	Official       float64   `json:"official"`
	RelativeSpread float64   `json:"relative_spread"`
	Ts             time.Time `json:"ts"`
}

// NewDollarGap derives the relative spread from both rates.
func NewDollarGap(parallel, official float64, ts time.Time) DollarGap {
	gap := DollarGap{Parallel: parallel, Official: official, Ts: ts}
	if official > 0 {
		gap.RelativeSpread = (parallel - official) / official
	}
	return gap
}

// Metadata records the inputs that produced a TradingSignal.
type Metadata struct {
	DaysUntilEvent int           `json:"days_until_event"`
	Volume         VolumeMetrics `json:"volume"`
	Spread         SpreadMetrics `json:"spread"`
	DollarGap      DollarGap     `json:"dollar_gap"`
	AggregateScore float64       `json:"aggregate_score"`
}

// TradingSignal is produced once by the signal engine and never mutated afterwards.
type TradingSignal struct {
	ID         uuid.UUID `json:"id"`
	Ts         time.Time `json:"ts"`
	EventDate  time.Time `json:"event_date"`
	Ticker     string    `json:"ticker"`
	Strength   Strength  `json:"strength"`
	Confidence float64   `json:"confidence"`
	Entry      float64   `json:"entry"`
	Target     float64   `json:"target"`
	Stop       float64   `json:"stop"`
	Reasoning  []string  `json:"reasoning"`
	Metadata   Metadata  `json:"metadata"`
}

// Bearish reports whether the signal asks for a short position.
func (s TradingSignal) Bearish() bool { return s.Strength.Direction() == Bearish }

func (s TradingSignal) String() string {
	side := "LONG"
	if s.Bearish() {
		side = "SHORT"
	}
	return fmt.Sprintf("%s %s @ %.2f | confidence %.1f%% | target %.2f | stop %.2f",
		side, s.Ticker, s.Entry, s.Confidence*100, s.Target, s.Stop)
}

// EventOutcome is the realized result of an auction, known only after it settles.
type EventOutcome struct {
	EventDate   time.Time `json:"event_date"`
	RolloverPct float64   `json:"rollover_pct"` // fraction of maturing debt refinanced, 1.0 == 100%
	Instruments []string  `json:"instruments,omitempty"`
}

// Decision enumerates what to do with an open signal after an auction result.
type Decision string

const (
	DecisionClose        Decision = "CLOSE"
	DecisionHold         Decision = "HOLD"
	DecisionPartialClose Decision = "PARTIAL_CLOSE"
)

// Action pairs an open signal with the decision taken for it.
type Action struct {
	SignalID uuid.UUID     `json:"signal_id"`
	Signal   TradingSignal `json:"signal"`
	Decision Decision      `json:"decision"`
	Fraction float64       `json:"fraction,omitempty"` // share of the position to close; set only for PARTIAL_CLOSE
	Reason   string        `json:"reason"`
}
