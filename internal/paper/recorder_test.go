package paper

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"licitacion-go/internal/execution"
	"licitacion-go/internal/signal"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "signals.jsonl")

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	sig := signal.TradingSignal{ID: uuid.New(), Ticker: "S17A6", Strength: signal.StrongBearish, Confidence: 0.925}
	recorder.RecordSignal(sig)
	recorder.Record(execution.Fill{SignalID: sig.ID, Ticker: "S17A6", Side: execution.Sell, Qty: 1, Price: 1000})
	recorder.RecordAction(signal.Action{SignalID: sig.ID, Signal: sig, Decision: signal.DecisionPartialClose, Fraction: 0.5})
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	recorder.RecordSignal(sig) // after close: dropped

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	var entries []JournalEntry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var entry JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("json decode: %v", err)
		}
		entries = append(entries, entry)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 journal lines, got %d", len(entries))
	}
	if entries[0].Kind != KindSignal || entries[0].Signal.Strength != signal.StrongBearish || entries[0].Signal.ID != sig.ID {
		t.Fatalf("unexpected signal entry %+v", entries[0])
	}
	if entries[1].Kind != KindFill || entries[1].Fill.Side != execution.Sell {
		t.Fatalf("unexpected fill entry %+v", entries[1])
	}
	if entries[2].Kind != KindAction || entries[2].Action.Decision != signal.DecisionPartialClose {
		t.Fatalf("unexpected action entry %+v", entries[2])
	}
}
