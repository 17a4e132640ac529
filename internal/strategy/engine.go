// Package strategy turns market metrics around debt auctions into trading signals and post-auction decisions.
package strategy

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"licitacion-go/internal/metrics"
	"licitacion-go/internal/signal"
)

var (
	// ErrDataUnavailable marks a ticker skipped for lack of a snapshot or last price.
	ErrDataUnavailable = errors.New("market data unavailable")
	// ErrProviderFault marks a ticker skipped because a metrics read failed.
	ErrProviderFault = errors.New("metrics provider fault")
)

// MetricsProvider is the read-only view of market metrics the engine consumes.
type MetricsProvider interface {
	Snapshot(ticker string) (signal.MarketSnapshot, error)
	VolumeMetrics(ticker string) (signal.VolumeMetrics, error)
	SpreadMetrics(ticker string) (signal.SpreadMetrics, error)
	DollarGap() (signal.DollarGap, error)
}

// Engine evaluates pre-auction indicators per instrument. It keeps no mutable state.
type Engine struct {
	provider MetricsProvider
	params   Params
	log      zerolog.Logger
}

// NewEngine validates params and wires the provider. A nil engine is returned with any *ConfigError.
func NewEngine(provider MetricsProvider, params Params, log zerolog.Logger) (*Engine, error) {
	if provider == nil {
		return nil, &ConfigError{Field: "provider", Reason: "is required"}
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{provider: provider, params: params, log: log}, nil
}

// Params returns the validated configuration.
func (e *Engine) Params() Params { return e.params }

// DaysUntil floors the distance to the event in whole days; negative once the event has passed.
func DaysUntil(eventDate, now time.Time) int {
	return int(math.Floor(eventDate.Sub(now).Hours() / 24))
}

// InWindow reports whether an event is close enough to analyze.
func (e *Engine) InWindow(eventDate, now time.Time) bool {
	days := DaysUntil(eventDate, now)
	return days >= 0 && days <= e.params.WindowDays
}

// Analyze evaluates every ticker for the given auction date. It always returns a list, possibly
// empty; per-ticker failures are logged and skipped.
func (e *Engine) Analyze(eventDate time.Time, tickers []string, now time.Time) []signal.TradingSignal {
	days := DaysUntil(eventDate, now)
	if days < 0 || days > e.params.WindowDays {
		e.log.Info().Int("days", days).Str("event", eventDate.Format(time.DateOnly)).Msg("outside pre-auction window")
		return []signal.TradingSignal{}
	}
	e.log.Info().Int("days", days).Str("event", eventDate.Format(time.DateOnly)).Int("tickers", len(tickers)).Msg("analyzing pre-auction signals")

	out := make([]signal.TradingSignal, 0, len(tickers))
	for _, ticker := range tickers {
		sig, err := e.analyzeTicker(ticker, eventDate, days, now)
		switch {
		case errors.Is(err, ErrDataUnavailable):
			metrics.TickerFailures.WithLabelValues(ticker, "data_unavailable").Inc()
			e.log.Warn().Str("ticker", ticker).Err(err).Msg("skipping ticker")
			continue
		case err != nil:
			metrics.TickerFailures.WithLabelValues(ticker, "provider_fault").Inc()
			e.log.Error().Str("ticker", ticker).Err(err).Msg("ticker analysis failed")
			continue
		case sig == nil:
			e.log.Debug().Str("ticker", ticker).Msg("no indicators triggered")
			continue
		}
		if sig.Confidence < e.params.MinConfidence {
			metrics.SignalsRejected.WithLabelValues(ticker).Inc()
			e.log.Debug().Str("ticker", ticker).Float64("confidence", sig.Confidence).Msg("signal rejected, low confidence")
			continue
		}
		metrics.SignalsEmitted.WithLabelValues(ticker, sig.Strength.String()).Inc()
		e.log.Info().Str("ticker", ticker).Str("strength", sig.Strength.String()).Float64("confidence", sig.Confidence).Msg(sig.String())
		out = append(out, *sig)
	}
	return out
}

type observation struct {
	name   string
	value  float64
	reason string
}

func (e *Engine) analyzeTicker(ticker string, eventDate time.Time, days int, now time.Time) (sig *signal.TradingSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			sig = nil
			err = fmt.Errorf("%w: panic: %v", ErrProviderFault, r)
		}
	}()

	snap, err := e.provider.Snapshot(ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrDataUnavailable, err)
	}
	if !snap.HasPrice() {
		return nil, fmt.Errorf("%w: no last price", ErrDataUnavailable)
	}
	vol, err := e.provider.VolumeMetrics(ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: volume metrics: %v", ErrProviderFault, err)
	}
	spread, err := e.provider.SpreadMetrics(ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: spread metrics: %v", ErrProviderFault, err)
	}
	gap, err := e.provider.DollarGap()
	if err != nil {
		return nil, fmt.Errorf("%w: dollar gap: %v", ErrProviderFault, err)
	}

	obs := e.observe(vol, spread, gap, days)
	if len(obs) == 0 {
		return nil, nil
	}

	score, confidence := aggregate(obs)
	strength := Classify(score)
	entry := snap.LastPrice
	target, stop := PriceBands(strength, entry)

	reasoning := make([]string, len(obs))
	names := make([]string, len(obs))
	for i, o := range obs {
		reasoning[i] = o.reason
		names[i] = o.name
	}
	e.log.Debug().Str("ticker", ticker).Strs("indicators", names).Float64("score", score).Msg("indicators triggered")
	return &signal.TradingSignal{
		ID:         uuid.New(),
		Ts:         now,
		EventDate:  eventDate,
		Ticker:     ticker,
		Strength:   strength,
		Confidence: confidence,
		Entry:      entry,
		Target:     target,
		Stop:       stop,
		Reasoning:  reasoning,
		Metadata: signal.Metadata{
			DaysUntilEvent: days,
			Volume:         vol,
			Spread:         spread,
			DollarGap:      gap,
			AggregateScore: score,
		},
	}, nil
}

// observe runs the four indicators; only triggered ones are returned.
func (e *Engine) observe(vol signal.VolumeMetrics, spread signal.SpreadMetrics, gap signal.DollarGap, days int) []observation {
	var obs []observation
	if vol.PctChange < -e.params.VolumeDropThreshold {
		obs = append(obs, observation{
			name:  "volume_drop",
			value: VolumeDropContribution,
			reason: fmt.Sprintf("volume down %.1f%% vs average (threshold %.1f%%)",
				math.Abs(vol.PctChange)*100, e.params.VolumeDropThreshold*100),
		})
	}
	if spread.PctIncrease > e.params.SpreadIncreaseThreshold {
		obs = append(obs, observation{
			name:  "spread_widening",
			value: SpreadWidenContribution,
			reason: fmt.Sprintf("spread up %.1f%% vs average (percentile %.0f)",
				spread.PctIncrease*100, spread.Percentile),
		})
	}
	if gap.RelativeSpread > e.params.CurrencyGapThreshold {
		obs = append(obs, observation{
			name:  "currency_gap",
			value: CurrencyGapContribution,
			reason: fmt.Sprintf("MEP/official gap at %.2f%% (threshold %.2f%%)",
				gap.RelativeSpread*100, e.params.CurrencyGapThreshold*100),
		})
	}
	timeFactor := 1 - float64(days)/float64(e.params.WindowDays)
	if timeFactor > TimeProximityTrigger {
		obs = append(obs, observation{
			name:   "time_proximity",
			value:  -timeFactor,
			reason: fmt.Sprintf("auction in %d days (factor %.2f)", days, timeFactor),
		})
	}
	return obs
}

// aggregate returns the mean contribution and the confidence of a non-empty observation set.
func aggregate(obs []observation) (score, confidence float64) {
	var sum float64
	strong := 0
	for _, o := range obs {
		sum += o.value
		if math.Abs(o.value) > StrongContribution {
			strong++
		}
	}
	n := float64(len(obs))
	score = sum / n
	raw := n / IndicatorCount
	confidence = raw * (0.7 + 0.3*float64(strong)/n)
	return score, math.Min(1, math.Max(0, confidence))
}

// Classify maps an aggregate score onto a Strength.
func Classify(score float64) signal.Strength {
	switch {
	case score <= -0.7:
		return signal.StrongBearish
	case score <= -0.3:
		return signal.WeakBearish
	case score >= 0.7:
		return signal.StrongBullish
	case score >= 0.3:
		return signal.WeakBullish
	default:
		return signal.NeutralSignal
	}
}

// PriceBands derives target and stop from the entry. Neutral signals take the long bands.
func PriceBands(strength signal.Strength, entry float64) (target, stop float64) {
	if strength.Direction() == signal.Bearish {
		return entry * BearishTargetFactor, entry * BearishStopFactor
	}
	return entry * BullishTargetFactor, entry * BullishStopFactor
}
