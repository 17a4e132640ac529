package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default values mirror the desk's historical settings.
const (
	DefaultWindowDays              = 3
	DefaultVolumeDropThreshold     = 0.30
	DefaultSpreadIncreaseThreshold = 0.15
	DefaultCurrencyGapThreshold    = 0.015
	DefaultMinConfidenceScore      = 0.75
	DefaultMarketOpen              = "11:00"
	DefaultMarketClose             = "18:00"
	DefaultUTCOffsetHours          = -3

	DefaultInitialCapital  = 50000
	DefaultPositionSizePct = 0.15
	DefaultMaxPositions    = 3
	DefaultCommissionPct   = 0.001
	DefaultSlippagePct     = 0.0015

	DefaultHistorySize    = 30
	DefaultSampleInterval = 60 // minutes, one sample per detection cycle
	DefaultHorizonDays    = 14
	DefaultRefreshHours   = 24
	DefaultPollIntervalMs = 60000
	DefaultMetricsAddr    = ":9090"
)

const (
	ModePaper = "paper"
	ModeLive  = "live"
)

var defaultLecaps = []string{"S17A6", "S30A6", "S29Y6", "S30J6"}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "licitacion-go"
	}
	if c.App.Mode == "" {
		c.App.Mode = ModePaper
	}
	c.App.Mode = strings.ToLower(c.App.Mode)
	if c.App.MetricsAddr == "" {
		c.App.MetricsAddr = DefaultMetricsAddr
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	d := &c.Detection
	if d.WindowDays == 0 {
		d.WindowDays = DefaultWindowDays
	}
	if d.VolumeDropThreshold == 0 {
		d.VolumeDropThreshold = DefaultVolumeDropThreshold
	}
	if d.SpreadIncreaseThreshold == 0 {
		d.SpreadIncreaseThreshold = DefaultSpreadIncreaseThreshold
	}
	if d.CurrencyGapThreshold == 0 {
		d.CurrencyGapThreshold = DefaultCurrencyGapThreshold
	}
	if d.MinConfidenceScore == 0 {
		d.MinConfidenceScore = DefaultMinConfidenceScore
	}
	if len(d.Lecaps) == 0 {
		d.Lecaps = append([]string(nil), defaultLecaps...)
	}
	if d.MarketOpen == "" {
		d.MarketOpen = DefaultMarketOpen
	}
	if d.MarketClose == "" {
		d.MarketClose = DefaultMarketClose
	}
	if d.UTCOffsetHours == 0 {
		d.UTCOffsetHours = DefaultUTCOffsetHours
	}

	t := &c.Trading
	if t.InitialCapital == 0 {
		t.InitialCapital = DefaultInitialCapital
	}
	if t.PositionSizePct == 0 {
		t.PositionSizePct = DefaultPositionSizePct
	}
	if t.MaxPositions == 0 {
		t.MaxPositions = DefaultMaxPositions
	}
	if t.CommissionPct == 0 {
		t.CommissionPct = DefaultCommissionPct
	}
	if t.SlippagePct == 0 {
		t.SlippagePct = DefaultSlippagePct
	}

	if c.Market.Provider == "" {
		c.Market.Provider = "stub"
	}
	if c.Market.HistorySize == 0 {
		c.Market.HistorySize = DefaultHistorySize
	}
	if c.Market.SampleIntervalMinutes == 0 {
		c.Market.SampleIntervalMinutes = DefaultSampleInterval
	}
	if c.Dollar.PollIntervalMs == 0 {
		c.Dollar.PollIntervalMs = DefaultPollIntervalMs
	}
	if c.Calendar.HorizonDays == 0 {
		c.Calendar.HorizonDays = DefaultHorizonDays
	}
	if c.Calendar.RefreshHours == 0 {
		c.Calendar.RefreshHours = DefaultRefreshHours
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.App.Mode {
	case ModePaper, ModeLive:
	default:
		add("app.mode must be %q or %q, got %q", ModePaper, ModeLive, c.App.Mode)
	}
	if err := c.Detection.Params().Validate(); err != nil {
		add("detection: %w", err)
	}
	open, errOpen := ParseClock(c.Detection.MarketOpen)
	if errOpen != nil {
		add("detection.market_open: %w", errOpen)
	}
	closeAt, errClose := ParseClock(c.Detection.MarketClose)
	if errClose != nil {
		add("detection.market_close: %w", errClose)
	}
	if errOpen == nil && errClose == nil && closeAt <= open {
		add("detection.market_close must be after market_open")
	}
	if c.Detection.UTCOffsetHours < -12 || c.Detection.UTCOffsetHours > 14 {
		add("detection.utc_offset_hours out of range: %d", c.Detection.UTCOffsetHours)
	}
	if c.Trading.InitialCapital <= 0 {
		add("trading.initial_capital must be > 0")
	}
	if c.Trading.PositionSizePct <= 0 || c.Trading.PositionSizePct > 1 {
		add("trading.position_size_pct must be in (0, 1]")
	}
	if c.Trading.MaxPositions <= 0 {
		add("trading.max_positions must be > 0")
	}
	if c.Trading.CommissionPct < 0 || c.Trading.SlippagePct < 0 {
		add("trading costs must be >= 0")
	}
	switch strings.ToLower(c.Market.Provider) {
	case "stub":
	case "primary":
		if c.Market.WSURL == "" {
			add("market.ws_url is required for the primary provider")
		}
	default:
		add("market.provider must be stub or primary, got %q", c.Market.Provider)
	}
	if c.Market.HistorySize <= 0 {
		add("market.history_size must be > 0")
	}
	if c.Calendar.HorizonDays <= 0 {
		add("calendar.horizon_days must be > 0")
	}
	for i, ev := range c.Calendar.Events {
		if _, err := time.Parse("2006-01-02", ev.Date); err != nil {
			add("calendar.events[%d].date: %w", i, err)
		}
	}
	return errors.Join(errs...)
}

// Location returns the fixed zone the market hours are expressed in.
func (d Detection) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", d.UTCOffsetHours), d.UTCOffsetHours*3600)
}

// ParseClock converts "HH:MM" into an offset from midnight.
func ParseClock(value string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", value)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
