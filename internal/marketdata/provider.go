// Package marketdata keeps bounded per-ticker market history and derives the metrics the signal engine reads.
package marketdata

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"licitacion-go/internal/metrics"
	"licitacion-go/internal/signal"
)

// ErrNoData is returned when nothing has been observed yet for the request.
var ErrNoData = errors.New("no market data")

// DefaultHistorySize is the number of samples kept per ticker.
const DefaultHistorySize = 30

// trendLookback is how many recent volumes feed the trend slope; trendMinPoints the fewest usable.
const (
	trendLookback  = 5
	trendMinPoints = 3
	trendBand      = 0.05
)

// series is one ring-buffered history. With a sample interval, values landing in the bucket of
// the newest entry replace it instead of appending.
type series struct {
	ring   *Ring[float64]
	bucket time.Time
}

func newSeries(capacity int) *series {
	return &series{ring: NewRing[float64](capacity)}
}

func (s *series) record(v float64, bucket time.Time, sampled bool) {
	if sampled && s.ring.Len() > 0 && bucket.Equal(s.bucket) {
		s.ring.ReplaceLast(v)
		return
	}
	s.ring.Push(v)
	s.bucket = bucket
}

type tickerHistory struct {
	latest signal.MarketSnapshot
	volume *series
	spread *series
}

// Provider stores the latest snapshot and ring-buffered history per ticker. Feeds write through
// Update and SetDollarRates; reads always reflect the latest completed write.
type Provider struct {
	mu       sync.RWMutex
	capacity int
	interval time.Duration
	now      func() time.Time
	tickers  map[string]*tickerHistory
	gap      *signal.DollarGap
}

// Option configures a Provider.
type Option func(*Provider)

// WithSampleInterval keeps at most one history sample per interval and ticker: updates inside
// the same interval refresh the newest sample. Zero records every update.
func WithSampleInterval(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.interval = d
		}
	}
}

// NewProvider builds a provider whose per-ticker histories hold at most capacity entries.
func NewProvider(capacity int, opts ...Option) *Provider {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	p := &Provider{capacity: capacity, now: time.Now, tickers: make(map[string]*tickerHistory)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Update records a snapshot. Fields the snapshot did not carry keep their last known values, and
// only carried volume and spread reach the history.
func (p *Provider) Update(s signal.MarketSnapshot) {
	if s.Ticker == "" {
		return
	}
	if !s.HasLast && s.LastPrice > 0 {
		s.HasLast = true
	}
	if !s.HasVolume && s.Volume > 0 {
		s.HasVolume = true
	}
	if !s.HasSpread {
		s.SpreadBps, s.HasSpread = signal.SpreadBps(s.BidPrice, s.OfferPrice)
	}
	carriedVolume, carriedSpread := s.HasVolume, s.HasSpread
	quoted := s.HasSpread || s.BidPrice > 0 || s.OfferPrice > 0

	p.mu.Lock()
	h := p.tickers[s.Ticker]
	if h == nil {
		h = &tickerHistory{volume: newSeries(p.capacity), spread: newSeries(p.capacity)}
		p.tickers[s.Ticker] = h
	} else {
		prev := h.latest
		if !s.HasLast {
			s.LastPrice, s.LastSize, s.HasLast = prev.LastPrice, prev.LastSize, prev.HasLast
		}
		if !s.HasVolume {
			s.Volume, s.HasVolume = prev.Volume, prev.HasVolume
		}
		if !quoted {
			s.BidPrice, s.BidSize = prev.BidPrice, prev.BidSize
			s.OfferPrice, s.OfferSize = prev.OfferPrice, prev.OfferSize
			s.SpreadBps, s.HasSpread = prev.SpreadBps, prev.HasSpread
		}
	}
	h.latest = s
	bucket := p.bucket(s.Ts)
	if carriedVolume {
		h.volume.record(s.Volume, bucket, p.interval > 0)
	}
	if carriedSpread {
		h.spread.record(s.SpreadBps, bucket, p.interval > 0)
	}
	p.mu.Unlock()
	metrics.SnapshotsTotal.WithLabelValues(s.Ticker).Inc()
}

func (p *Provider) bucket(ts time.Time) time.Time {
	if p.interval <= 0 {
		return ts
	}
	if ts.IsZero() {
		ts = p.now()
	}
	return ts.Truncate(p.interval)
}

// SetDollarRates replaces the parallel/official exchange rates.
func (p *Provider) SetDollarRates(parallel, official float64, ts time.Time) {
	gap := signal.NewDollarGap(parallel, official, ts)
	p.mu.Lock()
	p.gap = &gap
	p.mu.Unlock()
}

// Tickers lists every ticker observed so far, sorted.
func (p *Provider) Tickers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.tickers))
	for t := range p.tickers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns the latest snapshot for ticker.
func (p *Provider) Snapshot(ticker string) (signal.MarketSnapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := p.tickers[ticker]
	if h == nil {
		return signal.MarketSnapshot{}, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	return h.latest, nil
}

// VolumeMetrics compares the latest volume with the rolling average and tags the recent trend.
func (p *Provider) VolumeMetrics(ticker string) (signal.VolumeMetrics, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := p.tickers[ticker]
	if h == nil || h.volume.ring.Len() == 0 {
		return signal.VolumeMetrics{Trend: signal.TrendUnknown}, nil
	}
	history := h.volume.ring.Values()
	avg := mean(history)
	current := h.latest.Volume
	out := signal.VolumeMetrics{AvgVolume: avg, CurrentVolume: current, Trend: signal.TrendUnknown}
	if avg > 0 {
		out.PctChange = (current - avg) / avg
	}
	recent := h.volume.ring.Tail(trendLookback)
	if len(recent) >= trendMinPoints {
		m := slope(recent)
		switch {
		case m > avg*trendBand:
			out.Trend = signal.TrendIncreasing
		case m < -avg*trendBand:
			out.Trend = signal.TrendDecreasing
		default:
			out.Trend = signal.TrendStable
		}
	}
	return out, nil
}

// SpreadMetrics compares the current spread with its history. Without history the current spread
// is its own average and sits at the 50th percentile.
func (p *Provider) SpreadMetrics(ticker string) (signal.SpreadMetrics, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := p.tickers[ticker]
	if h == nil {
		return signal.SpreadMetrics{}, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}
	var current float64
	if h.latest.HasSpread {
		current = h.latest.SpreadBps
	}
	history := h.spread.ring.Values()
	if len(history) == 0 {
		return signal.SpreadMetrics{CurrentBps: current, AvgBps: current, Percentile: 50}, nil
	}
	avg := mean(history)
	out := signal.SpreadMetrics{CurrentBps: current, AvgBps: avg}
	if avg > 0 {
		out.PctIncrease = (current - avg) / avg
	}
	below := 0
	for _, s := range history {
		if s < current {
			below++
		}
	}
	out.Percentile = float64(below) / float64(len(history)) * 100
	return out, nil
}

// DollarGap returns the latest parallel/official gap.
func (p *Provider) DollarGap() (signal.DollarGap, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.gap == nil {
		return signal.DollarGap{}, fmt.Errorf("dollar rates: %w", ErrNoData)
	}
	return *p.gap, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// slope is the least-squares slope of values against their index.
func slope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
