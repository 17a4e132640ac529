package paper

import (
	"sync"

	"github.com/google/uuid"

	"licitacion-go/internal/execution"
)

// Ledger stores paper fills in memory for quick inspection.
type Ledger struct {
	mu    sync.Mutex
	fills []execution.Fill
}

// NewLedger creates an empty ledger optionally pre-sizing storage.
func NewLedger(capacity int) *Ledger {
	if capacity < 0 {
		capacity = 0
	}
	return &Ledger{fills: make([]execution.Fill, 0, capacity)}
}

// Record appends a fill to the ledger.
func (l *Ledger) Record(fill execution.Fill) {
	l.mu.Lock()
	l.fills = append(l.fills, fill)
	l.mu.Unlock()
}

// Snapshot returns a copy of the recorded fills.
func (l *Ledger) Snapshot() []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]execution.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// ForSignal returns the fills of one signal in execution order.
func (l *Ledger) ForSignal(id uuid.UUID) []execution.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []execution.Fill
	for _, f := range l.fills {
		if f.SignalID == id {
			out = append(out, f)
		}
	}
	return out
}

// NetPnL sums realized PnL over every recorded fill.
func (l *Ledger) NetPnL() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0.0
	for _, f := range l.fills {
		total += f.PnL
	}
	return total
}

// Reset clears all stored fills.
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.fills = l.fills[:0]
	l.mu.Unlock()
}
