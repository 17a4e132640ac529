package execution

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestSubmitLogsOrder(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	exec := NewExecutor(logger)
	id := uuid.New()
	err := exec.Submit(Order{SignalID: id, Ticker: "S17A6", Side: Sell, Qty: 10, Price: 101.5})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "S17A6") || !strings.Contains(out, id.String()) {
		t.Fatalf("log does not contain ticker and signal id: %s", out)
	}
}

func TestSides(t *testing.T) {
	if EntrySide(true) != Sell || EntrySide(false) != Buy {
		t.Fatalf("unexpected entry sides")
	}
	if Sell.Opposite() != Buy || Buy.Opposite() != Sell {
		t.Fatalf("unexpected opposite sides")
	}
}
