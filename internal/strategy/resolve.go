package strategy

import (
	"fmt"

	"licitacion-go/internal/metrics"
	"licitacion-go/internal/signal"
)

// Rollover breakpoints and the fixed partial-close fraction.
const (
	RolloverExcellent    = 0.95
	RolloverGood         = 0.85
	PartialCloseFraction = 0.5
)

// Resolve maps an auction outcome onto one Action per open signal, preserving input order.
func Resolve(outcome signal.EventOutcome, open []signal.TradingSignal) []signal.Action {
	rollover := outcome.RolloverPct
	actions := make([]signal.Action, 0, len(open))
	for _, sig := range open {
		action := signal.Action{SignalID: sig.ID, Signal: sig}
		bearish := sig.Bearish()
		switch {
		case rollover >= RolloverExcellent:
			if bearish {
				action.Decision = signal.DecisionClose
				action.Reason = fmt.Sprintf("excellent rollover (%.1f%%), close short", rollover*100)
			} else {
				action.Decision = signal.DecisionHold
				action.Reason = fmt.Sprintf("excellent rollover (%.1f%%), hold long", rollover*100)
			}
		case rollover >= RolloverGood:
			if bearish {
				action.Decision = signal.DecisionPartialClose
				action.Fraction = PartialCloseFraction
				action.Reason = fmt.Sprintf("good rollover (%.1f%%), close %.0f%% of short", rollover*100, PartialCloseFraction*100)
			} else {
				action.Decision = signal.DecisionHold
				action.Reason = fmt.Sprintf("acceptable rollover (%.1f%%), hold long", rollover*100)
			}
		default:
			if bearish {
				action.Decision = signal.DecisionHold
				action.Reason = fmt.Sprintf("weak rollover (%.1f%%), hold short", rollover*100)
			} else {
				action.Decision = signal.DecisionClose
				action.Reason = fmt.Sprintf("weak rollover (%.1f%%), close long", rollover*100)
			}
		}
		metrics.ResolverActions.WithLabelValues(string(action.Decision)).Inc()
		actions = append(actions, action)
	}
	return actions
}
