// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"licitacion-go/internal/strategy"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	Mode        string `yaml:"mode"` // paper|live
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
	LogFile     string `yaml:"log_file"`
}

// Detection holds the signal engine knobs and the instrument universe.
type Detection struct {
	WindowDays              int      `yaml:"window_days"`
	VolumeDropThreshold     float64  `yaml:"volume_drop_threshold"`
	SpreadIncreaseThreshold float64  `yaml:"spread_increase_threshold"`
	CurrencyGapThreshold    float64  `yaml:"currency_gap_threshold"`
	MinConfidenceScore      float64  `yaml:"min_confidence_score"`
	Lecaps                  []string `yaml:"lecaps"`
	CER                     []string `yaml:"cer"`
	Linked                  []string `yaml:"linked"`
	MarketOpen              string   `yaml:"market_open"`  // HH:MM local
	MarketClose             string   `yaml:"market_close"` // HH:MM local
	UTCOffsetHours          int      `yaml:"utc_offset_hours"`
}

// Params converts the section into engine parameters. The engine validates them again.
func (d Detection) Params() strategy.Params {
	return strategy.Params{
		WindowDays:              d.WindowDays,
		VolumeDropThreshold:     d.VolumeDropThreshold,
		SpreadIncreaseThreshold: d.SpreadIncreaseThreshold,
		CurrencyGapThreshold:    d.CurrencyGapThreshold,
		MinConfidence:           d.MinConfidenceScore,
	}
}

// Instruments returns every configured ticker, LECAPs first.
func (d Detection) Instruments() []string {
	out := make([]string, 0, len(d.Lecaps)+len(d.CER)+len(d.Linked))
	out = append(out, d.Lecaps...)
	out = append(out, d.CER...)
	out = append(out, d.Linked...)
	return out
}

// Trading captures paper-trading account settings and execution cost assumptions.
type Trading struct {
	InitialCapital  float64 `yaml:"initial_capital"`
	PositionSizePct float64 `yaml:"position_size_pct"`
	MaxPositions    int     `yaml:"max_positions"`
	CommissionPct   float64 `yaml:"commission_pct"`
	SlippagePct     float64 `yaml:"slippage_pct"`
	JournalPath     string  `yaml:"journal_path"`
}

// Market describes the market data connectivity parameters.
type Market struct {
	Provider       string `yaml:"provider"` // stub|primary
	WSURL          string `yaml:"ws_url"`
	RestURL        string `yaml:"rest_url"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	Account        string `yaml:"account"`
	MarketID       string `yaml:"market_id"`
	SymbolPrefix   string `yaml:"symbol_prefix"`
	Settlement     string `yaml:"settlement"`
	StubIntervalMs int    `yaml:"stub_interval_ms"`
	HistorySize    int    `yaml:"history_size"`

	// SampleIntervalMinutes buckets live frames into one history sample per interval.
	SampleIntervalMinutes int `yaml:"sample_interval_minutes"`
}

// Dollar configures the official/parallel exchange rate poller.
type Dollar struct {
	BaseURL          string  `yaml:"base_url"`
	OfficialPath     string  `yaml:"official_path"`
	ParallelPath     string  `yaml:"parallel_path"`
	PollIntervalMs   int     `yaml:"poll_interval_ms"`
	FallbackOfficial float64 `yaml:"fallback_official"`
	FallbackParallel float64 `yaml:"fallback_parallel"`
}

// Event is a manually configured auction date.
type Event struct {
	Date          string   `yaml:"date"` // YYYY-MM-DD
	Title         string   `yaml:"title"`
	Instruments   []string `yaml:"instruments"`
	MaturitiesARS float64  `yaml:"maturities_ars"`
}

// Calendar configures where auction dates come from.
type Calendar struct {
	URL          string  `yaml:"url"`
	HorizonDays  int     `yaml:"horizon_days"`
	RefreshHours int     `yaml:"refresh_hours"`
	FetchDetails bool    `yaml:"fetch_details"` // follow each announcement for hours and maturities
	Events       []Event `yaml:"events"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Detection Detection `yaml:"detection"`
	Trading   Trading   `yaml:"trading"`
	Market    Market    `yaml:"market"`
	Dollar    Dollar    `yaml:"dollar"`
	Calendar  Calendar  `yaml:"calendar"`
}

// Load reads a YAML file from disk and hydrates a Config struct. Environment variables
// (optionally sourced from a .env file in the working directory) are expanded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// LoadAndValidate loads the file, fills defaults, and validates the result.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
