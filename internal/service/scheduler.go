package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	sh "smart_heating"
	"smart_heating/internal/logger"
)

// parseClock parses a local wall-clock "HH:MM" string into minutes since
// midnight. The whole string must be consumed; "07:30xyz" is not a time.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// dayMatches reports whether a schedule day field covers the given weekday.
// Accepts "all", full names ("Monday") and three-letter abbreviations ("mon"),
// case-insensitive.
func dayMatches(day string, wd time.Weekday) bool {
	d := strings.ToLower(strings.TrimSpace(day))
	if d == "all" {
		return true
	}
	full := strings.ToLower(wd.String())
	return d == full || d == full[:3]
}

// entryActiveAt reports whether now falls inside the entry's [start, end)
// window. A window whose end precedes its start wraps past midnight and is
// tested as two segments: [start, 24:00) against today and [00:00, end)
// against yesterday's weekday rolling into today.
func entryActiveAt(e *sh.ScheduleEntry, now time.Time) bool {
	if !e.Enabled {
		return false
	}
	start, err := parseClock(e.StartTime)
	if err != nil {
		return false
	}
	end, err := parseClock(e.EndTime)
	if err != nil {
		return false
	}
	nowMin := now.Hour()*60 + now.Minute()
	today := now.Weekday()

	if start < end {
		return dayMatches(e.Day, today) && nowMin >= start && nowMin < end
	}
	if start == end {
		return false
	}
	// Wraps midnight.
	if dayMatches(e.Day, today) && nowMin >= start {
		return true
	}
	yesterday := (today + 6) % 7
	return dayMatches(e.Day, yesterday) && nowMin < end
}

// ActiveEntry returns the schedule entry governing now, or nil. When several
// entries match the same instant, an exact weekday beats "all"; remaining ties
// go to the latest start time.
func ActiveEntry(entries []sh.ScheduleEntry, now time.Time) *sh.ScheduleEntry {
	var best *sh.ScheduleEntry
	bestStart := -1
	bestExact := false
	for i := range entries {
		e := &entries[i]
		if !entryActiveAt(e, now) {
			continue
		}
		exact := !strings.EqualFold(strings.TrimSpace(e.Day), "all")
		start, _ := parseClock(e.StartTime)
		switch {
		case best == nil:
		case exact && !bestExact:
		case exact == bestExact && start > bestStart:
		default:
			continue
		}
		best, bestStart, bestExact = e, start, exact
	}
	return best
}

// Scheduler re-evaluates schedules on a fixed cadence and nudges the
// orchestrator whenever any area's active entry changes, so a window boundary
// takes effect within one scheduler tick instead of waiting for the slower
// orchestration drift.
type Scheduler struct {
	store    *Store
	interval time.Duration
	refresh  func(areaID string)
	log      *logger.Logger

	active map[string]string // area id -> active entry id ("" for none)
}

func NewScheduler(store *Store, interval time.Duration, refresh func(areaID string), log *logger.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		interval: interval,
		refresh:  refresh,
		log:      log,
		active:   make(map[string]string),
	}
}

// Run blocks until ctx is done, evaluating every interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.evaluate(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.evaluate(now)
		}
	}
}

func (s *Scheduler) evaluate(now time.Time) {
	s.store.WithAll(func(a *sh.Area) {
		id := ""
		if e := ActiveEntry(a.Schedules, now); e != nil {
			id = e.ID
		}
		prev, seen := s.active[a.ID]
		s.active[a.ID] = id
		if seen && prev != id {
			s.log.Debugw("schedule_boundary", "area", a.ID, "entry", id)
			s.refresh(a.ID)
		}
	})
}
