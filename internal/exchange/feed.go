// Package exchange hosts the market data connectors that feed the metrics provider.
package exchange

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"licitacion-go/internal/signal"
)

const (
	// ProviderStub emits deterministic synthetic snapshots (useful for tests/offline work).
	ProviderStub = "stub"
	// ProviderPrimary streams book data from the Primary (Matba-Rofex) websocket API.
	ProviderPrimary = "primary"
)

const (
	defaultStubInterval = 500 * time.Millisecond
	defaultMarketID     = "ROFX"
)

// Sink receives snapshots forwarded from a feed.
type Sink interface {
	Update(signal.MarketSnapshot)
}

// Feed represents a pluggable market data stream implementation.
type Feed struct {
	provider     string
	symbols      []string
	log          zerolog.Logger
	stubInterval time.Duration
	primary      PrimaryConfig
	httpClient   *http.Client
	reconnectMin time.Duration
	reconnectMax time.Duration
	mu           sync.RWMutex
}

// PrimaryConfig carries the Primary API endpoints and credentials.
type PrimaryConfig struct {
	RestURL      string
	WSURL        string
	Username     string
	Password     string
	MarketID     string
	SymbolPrefix string // e.g. "MERV - XMEV"
	Settlement   string // e.g. "24hs"
}

// Option configures Feed construction parameters.
type Option func(*Feed)

// WithStubInterval overrides the cadence of the synthetic feed.
func WithStubInterval(d time.Duration) Option {
	return func(f *Feed) {
		if d > 0 {
			f.stubInterval = d
		}
	}
}

// WithPrimaryConfig injects endpoints and credentials for the Primary feed.
func WithPrimaryConfig(cfg PrimaryConfig) Option {
	return func(f *Feed) {
		cfg.RestURL = strings.TrimSuffix(cfg.RestURL, "/")
		if cfg.MarketID == "" {
			cfg.MarketID = defaultMarketID
		}
		f.primary = cfg
	}
}

// WithHTTPClient replaces the client used for REST authentication.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Feed) {
		if c != nil {
			f.httpClient = c
		}
	}
}

// NewFeed constructs a feed backed by the requested provider.
func NewFeed(provider string, tickers []string, log zerolog.Logger, opts ...Option) *Feed {
	if provider == "" {
		provider = ProviderStub
	}
	f := &Feed{
		provider:     strings.ToLower(provider),
		log:          log,
		stubInterval: defaultStubInterval,
		primary:      PrimaryConfig{MarketID: defaultMarketID},
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		reconnectMin: time.Second,
		reconnectMax: 30 * time.Second,
	}
	f.SetSymbols(tickers)
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetSymbols replaces the tracked ticker list (deduplicated, sorted for determinism).
func (f *Feed) SetSymbols(tickers []string) {
	unique := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		t = sanitizeTicker(t)
		if t == "" {
			continue
		}
		unique[t] = struct{}{}
	}
	out := make([]string, 0, len(unique))
	for t := range unique {
		out = append(out, t)
	}
	sort.Strings(out)

	f.mu.Lock()
	f.symbols = out
	f.mu.Unlock()
}

func (f *Feed) snapshotSymbols() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, len(f.symbols))
	copy(out, f.symbols)
	return out
}

// Run pushes snapshots onto the provided channel until the context is canceled.
func (f *Feed) Run(ctx context.Context, out chan<- signal.MarketSnapshot) error {
	switch f.provider {
	case ProviderPrimary:
		return f.runPrimary(ctx, out)
	default:
		return f.runStub(ctx, out)
	}
}

// Forward drains snapshots into sink until in is closed or ctx ends.
func Forward(ctx context.Context, in <-chan signal.MarketSnapshot, sink Sink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-in:
			if !ok {
				return nil
			}
			sink.Update(s)
		}
	}
}

// runStub walks every ticker towards an auction-like regime: prices drift lower, volume decays,
// and spreads widen.
func (f *Feed) runStub(ctx context.Context, out chan<- signal.MarketSnapshot) error {
	ticker := time.NewTicker(f.stubInterval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ts := <-ticker.C:
			for i, sym := range f.snapshotSymbols() {
				snap := stubSnapshot(sym, i, step, ts)
				select {
				case out <- snap:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			step++
		}
	}
}

func stubSnapshot(ticker string, index, step int, ts time.Time) signal.MarketSnapshot {
	base := 100000.0 * (1 + 0.01*float64(index))
	price := base * (1 - 0.0005*float64(step))
	volume := 150000.0
	for i := 0; i < step; i++ {
		volume *= 0.97
	}
	half := 0.002 * (1 + 0.05*float64(step))
	return signal.MarketSnapshot{
		Ticker:     ticker,
		Ts:         ts,
		LastPrice:  price,
		LastSize:   100,
		HasLast:    true,
		BidPrice:   price * (1 - half),
		BidSize:    1000,
		OfferPrice: price * (1 + half),
		OfferSize:  1000,
		Volume:     volume,
		HasVolume:  true,
	}
}
