// Package calendar discovers upcoming Treasury auction dates.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Event is one scheduled auction.
type Event struct {
	Date          time.Time `json:"date"`
	Title         string    `json:"title"`
	Instruments   []string  `json:"instruments,omitempty"`
	MaturitiesARS float64   `json:"maturities_ars,omitempty"`
	URL           string    `json:"url,omitempty"`
	Opens         string    `json:"opens,omitempty"`  // HH:MM, when the auction window opens
	Closes        string    `json:"closes,omitempty"` // HH:MM
}

// Source lists the auctions falling within horizonDays of now, ascending by date.
type Source interface {
	UpcomingEvents(ctx context.Context, now time.Time, horizonDays int) ([]Event, error)
}

// Upcoming reports whether date lies in [now, now+horizonDays].
func Upcoming(date, now time.Time, horizonDays int) bool {
	cutoff := now.Add(time.Duration(horizonDays) * 24 * time.Hour)
	return !date.Before(now) && !date.After(cutoff)
}

// Static serves a fixed list of events, typically from configuration.
type Static struct {
	events []Event
}

// NewStatic copies events into a Static source.
func NewStatic(events []Event) *Static {
	out := make([]Event, len(events))
	copy(out, events)
	return &Static{events: out}
}

// ParseDate reads a YYYY-MM-DD date at midnight in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse event date %q: %w", value, err)
	}
	return t, nil
}

// UpcomingEvents implements Source.
func (s *Static) UpcomingEvents(_ context.Context, now time.Time, horizonDays int) ([]Event, error) {
	var out []Event
	for _, ev := range s.events {
		if Upcoming(ev.Date, now, horizonDays) {
			out = append(out, ev)
		}
	}
	sortEvents(out)
	return out, nil
}

// Merge combines event lists, collapsing entries on the same calendar day. The first list to
// mention a day wins for scalar fields; instruments are unioned.
func Merge(lists ...[]Event) []Event {
	byDay := make(map[string]int)
	var out []Event
	for _, list := range lists {
		for _, ev := range list {
			key := ev.Date.Format("2006-01-02")
			idx, ok := byDay[key]
			if !ok {
				ev.Instruments = uniqueSorted(ev.Instruments)
				byDay[key] = len(out)
				out = append(out, ev)
				continue
			}
			merged := &out[idx]
			merged.Instruments = uniqueSorted(append(append([]string(nil), merged.Instruments...), ev.Instruments...))
			if merged.MaturitiesARS == 0 {
				merged.MaturitiesARS = ev.MaturitiesARS
			}
			if merged.URL == "" {
				merged.URL = ev.URL
			}
			if merged.Title == "" {
				merged.Title = ev.Title
			}
		}
	}
	sortEvents(out)
	return out
}

// Multi queries several sources and merges their answers. A failing source is skipped as long as
// another one answered.
type Multi struct {
	sources []Source
}

// NewMulti builds a Multi over sources in priority order.
func NewMulti(sources ...Source) *Multi {
	return &Multi{sources: sources}
}

// UpcomingEvents implements Source.
func (m *Multi) UpcomingEvents(ctx context.Context, now time.Time, horizonDays int) ([]Event, error) {
	var (
		lists    [][]Event
		firstErr error
	)
	for _, src := range m.sources {
		events, err := src.UpcomingEvents(ctx, now, horizonDays)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		lists = append(lists, events)
	}
	if len(lists) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return Merge(lists...), nil
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
}

func uniqueSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
