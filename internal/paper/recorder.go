package paper

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"licitacion-go/internal/execution"
	"licitacion-go/internal/signal"
)

// Journal entry kinds.
const (
	KindSignal = "signal"
	KindFill   = "fill"
	KindAction = "action"
)

// JournalEntry is one line of the JSONL journal.
type JournalEntry struct {
	Kind   string                `json:"kind"`
	Ts     time.Time             `json:"ts"`
	Signal *signal.TradingSignal `json:"signal,omitempty"`
	Fill   *execution.Fill       `json:"fill,omitempty"`
	Action *signal.Action        `json:"action,omitempty"`
}

// JSONLRecorder appends signals, fills, and resolver actions as JSON lines for later analysis.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder creates/opens the target file and returns a recorder.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single fill to the underlying JSONL file.
func (r *JSONLRecorder) Record(fill execution.Fill) {
	r.write(JournalEntry{Kind: KindFill, Ts: fill.Ts, Fill: &fill})
}

// RecordSignal journals an emitted signal.
func (r *JSONLRecorder) RecordSignal(sig signal.TradingSignal) {
	r.write(JournalEntry{Kind: KindSignal, Ts: sig.Ts, Signal: &sig})
}

// RecordAction journals a resolver decision.
func (r *JSONLRecorder) RecordAction(action signal.Action) {
	r.write(JournalEntry{Kind: KindAction, Ts: time.Now().UTC(), Action: &action})
}

func (r *JSONLRecorder) write(entry JournalEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	_ = r.enc.Encode(entry)
}

// Close flushes and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
