package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultDollarBaseURL  = "https://dolarapi.com"
	defaultOfficialPath   = "/v1/dolares/oficial"
	defaultParallelPath   = "/v1/dolares/bolsa"
	defaultDollarInterval = time.Minute
)

// RateSink receives parallel/official exchange rate pairs.
type RateSink interface {
	SetDollarRates(parallel, official float64, ts time.Time)
}

type dollarQuote struct {
	Buy       float64 `json:"compra"`
	Sell      float64 `json:"venta"`
	UpdatedAt string  `json:"fechaActualizacion"`
}

// DollarConfig describes where the official and parallel (MEP) quotes are polled from.
type DollarConfig struct {
	BaseURL          string
	OfficialPath     string
	ParallelPath     string
	PollInterval     time.Duration
	FallbackOfficial float64
	FallbackParallel float64
}

// DollarPoller periodically refreshes the MEP/official gap inputs.
type DollarPoller struct {
	cfg    DollarConfig
	sink   RateSink
	client *http.Client
	log    zerolog.Logger
}

// NewDollarPoller builds a poller. When fallbacks are configured the sink is seeded immediately so the
// gap is available before the first successful poll.
func NewDollarPoller(cfg DollarConfig, sink RateSink, log zerolog.Logger) *DollarPoller {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultDollarBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.OfficialPath == "" {
		cfg.OfficialPath = defaultOfficialPath
	}
	if cfg.ParallelPath == "" {
		cfg.ParallelPath = defaultParallelPath
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultDollarInterval
	}
	if cfg.FallbackOfficial > 0 && cfg.FallbackParallel > 0 {
		sink.SetDollarRates(cfg.FallbackParallel, cfg.FallbackOfficial, time.Now().UTC())
	}
	return &DollarPoller{
		cfg:    cfg,
		sink:   sink,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// Run polls until ctx is canceled; failed polls are logged and retried on the next tick.
func (d *DollarPoller) Run(ctx context.Context) error {
	if err := d.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		d.log.Warn().Err(err).Msg("initial dollar poll failed")
	}
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.log.Warn().Err(err).Msg("dollar poll failed")
			}
		}
	}
}

// Poll fetches both quotes once and pushes them to the sink.
func (d *DollarPoller) Poll(ctx context.Context) error {
	official, err := d.fetch(ctx, d.cfg.OfficialPath)
	if err != nil {
		return fmt.Errorf("official quote: %w", err)
	}
	parallel, err := d.fetch(ctx, d.cfg.ParallelPath)
	if err != nil {
		return fmt.Errorf("parallel quote: %w", err)
	}
	ts := time.Now().UTC()
	if parsed, err := time.Parse(time.RFC3339, parallel.UpdatedAt); err == nil {
		ts = parsed.UTC()
	}
	d.sink.SetDollarRates(parallel.Sell, official.Sell, ts)
	d.log.Debug().Float64("official", official.Sell).Float64("parallel", parallel.Sell).Msg("dollar rates updated")
	return nil
}

func (d *DollarPoller) fetch(ctx context.Context, path string) (*dollarQuote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "licitacion-go/1.0")
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var quote dollarQuote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if quote.Sell <= 0 {
		return nil, fmt.Errorf("quote missing sell price")
	}
	return &quote, nil
}
