package runner

import (
	"context"
	"time"
)

const defaultTick = time.Minute

// DetectionDue reports whether t falls on a weekday hour between market open and close, inclusive.
func (r *Runner) DetectionDue(t time.Time) bool {
	local := t.In(r.cfg.Location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	hour := time.Duration(local.Hour()) * time.Hour
	return hour >= r.cfg.MarketOpen.Truncate(time.Hour) && hour <= r.cfg.MarketClose
}

// InMarketHours reports whether t is inside the trading session.
func (r *Runner) InMarketHours(t time.Time) bool {
	local := t.In(r.cfg.Location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	offset := sinceMidnight(local)
	return offset >= r.cfg.MarketOpen && offset < r.cfg.MarketClose
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

// Run checks the clock every tick (one minute unless overridden). The first tick of every detection
// hour runs a cycle, and the calendar is forced stale once a day at CalendarRefreshAt. Cycle errors are
// logged and never stop the loop.
func (r *Runner) Run(ctx context.Context, tick time.Duration) error {
	if tick <= 0 {
		tick = defaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var lastHour, lastRefreshDay string
	r.log.Info().Dur("tick", tick).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			lastHour, lastRefreshDay = r.step(ctx, r.now(), lastHour, lastRefreshDay)
		}
	}
}

// step performs the work due at now and returns the updated hour and day markers.
func (r *Runner) step(ctx context.Context, now time.Time, lastHour, lastRefreshDay string) (string, string) {
	local := now.In(r.cfg.Location)
	day := local.Format("2006-01-02")
	if sinceMidnight(local) >= r.cfg.CalendarRefreshAt && day != lastRefreshDay {
		lastRefreshDay = day
		r.ForceRefresh()
		if err := r.RefreshCalendar(ctx); err != nil {
			r.log.Error().Err(err).Msg("daily calendar refresh failed")
		}
	}
	hour := local.Format("2006-01-02T15")
	if r.DetectionDue(now) && hour != lastHour {
		lastHour = hour
		if _, err := r.RunCycle(ctx); err != nil {
			r.log.Error().Err(err).Msg("detection cycle failed")
		}
	}
	return lastHour, lastRefreshDay
}
