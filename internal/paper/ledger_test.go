package paper

import (
	"testing"

	"github.com/google/uuid"

	"licitacion-go/internal/execution"
)

func TestLedgerRecordSnapshot(t *testing.T) {
	ledger := NewLedger(2)
	id := uuid.New()
	ledger.Record(execution.Fill{SignalID: id, Ticker: "S17A6", Qty: 1, PnL: -1})
	ledger.Record(execution.Fill{SignalID: uuid.New(), Ticker: "S30A6", Qty: 2, PnL: 3})
	ledger.Record(execution.Fill{SignalID: id, Ticker: "S17A6", Qty: 1, PnL: 10})

	snapshot := ledger.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 fills, got %d", len(snapshot))
	}
	if got := ledger.ForSignal(id); len(got) != 2 || got[1].PnL != 10 {
		t.Fatalf("unexpected fills for signal: %+v", got)
	}
	if ledger.NetPnL() != 12 {
		t.Fatalf("unexpected net pnl %.2f", ledger.NetPnL())
	}

	ledger.Reset()
	if len(ledger.Snapshot()) != 0 {
		t.Fatalf("expected ledger reset")
	}
}
