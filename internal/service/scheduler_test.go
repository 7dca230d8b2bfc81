package service

import (
	"testing"
	"time"

	sh "smart_heating"
)

// monday is a reference Monday at midnight local time.
var monday = time.Date(2025, 1, 6, 0, 0, 0, 0, time.Local)

func at(day time.Time, hour, min int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, day.Location())
}

func entry(id, day, start, end string) sh.ScheduleEntry {
	return sh.ScheduleEntry{
		ID:          id,
		Day:         day,
		StartTime:   start,
		EndTime:     end,
		Temperature: floatPtr(21),
		Enabled:     true,
	}
}

func TestParseClock(t *testing.T) {
	valid := map[string]int{
		"07:30": 450,
		"7:30":  450,
		"00:00": 0,
		"23:59": 23*60 + 59,
		" 8:15": 8*60 + 15,
	}
	for s, want := range valid {
		got, err := parseClock(s)
		if err != nil {
			t.Fatalf("parseClock(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("parseClock(%q) = %d, want %d", s, got, want)
		}
	}

	// The whole string must be a time; partial matches are not accepted.
	invalid := []string{"07:30xyz", "7:5:59", "24:00", "07:60", "0730", "7", ""}
	for _, s := range invalid {
		if _, err := parseClock(s); err == nil {
			t.Fatalf("parseClock(%q) should be rejected", s)
		}
	}
}

func TestActiveEntry_MidnightCrossing(t *testing.T) {
	entries := []sh.ScheduleEntry{entry("night", "all", "23:00", "07:00")}

	if got := ActiveEntry(entries, at(monday, 23, 30)); got == nil || got.ID != "night" {
		t.Fatalf("23:30 should be inside 23:00-07:00, got %v", got)
	}
	tuesday := monday.AddDate(0, 0, 1)
	if got := ActiveEntry(entries, at(tuesday, 6, 30)); got == nil || got.ID != "night" {
		t.Fatalf("06:30 next day should be inside 23:00-07:00, got %v", got)
	}
	if got := ActiveEntry(entries, at(monday, 12, 0)); got != nil {
		t.Fatalf("12:00 should be outside 23:00-07:00, got %q", got.ID)
	}
}

func TestActiveEntry_MidnightCrossingDaySpecific(t *testing.T) {
	// A Monday 23:00-07:00 entry rolls into Tuesday morning but must not
	// cover Tuesday evening.
	entries := []sh.ScheduleEntry{entry("mon-night", "monday", "23:00", "07:00")}
	tuesday := monday.AddDate(0, 0, 1)

	if got := ActiveEntry(entries, at(monday, 23, 30)); got == nil {
		t.Fatal("Monday 23:30 should match")
	}
	if got := ActiveEntry(entries, at(tuesday, 6, 30)); got == nil {
		t.Fatal("Tuesday 06:30 should match via Monday rollover")
	}
	if got := ActiveEntry(entries, at(tuesday, 23, 30)); got != nil {
		t.Fatalf("Tuesday 23:30 must not match a Monday entry, got %q", got.ID)
	}
}

func TestActiveEntry_DayFormats(t *testing.T) {
	cases := []string{"monday", "Monday", "MON", "mon", "all", "ALL"}
	for _, day := range cases {
		entries := []sh.ScheduleEntry{entry("e", day, "08:00", "10:00")}
		if got := ActiveEntry(entries, at(monday, 9, 0)); got == nil {
			t.Fatalf("day %q should match a Monday", day)
		}
	}
	entries := []sh.ScheduleEntry{entry("e", "tuesday", "08:00", "10:00")}
	if got := ActiveEntry(entries, at(monday, 9, 0)); got != nil {
		t.Fatal("tuesday entry must not match a Monday")
	}
}

func TestActiveEntry_ExactDayBeatsAll(t *testing.T) {
	entries := []sh.ScheduleEntry{
		entry("generic", "all", "06:00", "12:00"),
		entry("specific", "monday", "08:00", "10:00"),
	}
	got := ActiveEntry(entries, at(monday, 9, 0))
	if got == nil || got.ID != "specific" {
		t.Fatalf("exact weekday should beat \"all\", got %v", got)
	}
}

func TestActiveEntry_TieGoesToLatestStart(t *testing.T) {
	entries := []sh.ScheduleEntry{
		entry("early", "monday", "06:00", "12:00"),
		entry("late", "monday", "08:00", "12:00"),
	}
	got := ActiveEntry(entries, at(monday, 9, 0))
	if got == nil || got.ID != "late" {
		t.Fatalf("latest start should win the tie, got %v", got)
	}
}

func TestActiveEntry_IgnoresDisabledAndMalformed(t *testing.T) {
	disabled := entry("off", "all", "00:00", "23:59")
	disabled.Enabled = false
	malformed := entry("bad", "all", "25:99", "26:00")
	if got := ActiveEntry([]sh.ScheduleEntry{disabled, malformed}, at(monday, 9, 0)); got != nil {
		t.Fatalf("disabled/malformed entries must never match, got %q", got.ID)
	}
}

func TestScheduler_RefreshOnBoundary(t *testing.T) {
	area := sh.NewArea("living", "Living Room")
	area.Schedules = []sh.ScheduleEntry{entry("morning", "all", "08:00", "10:00")}
	store, _ := newTestStore(t, area)

	var refreshed []string
	s := NewScheduler(store, time.Minute, func(areaID string) {
		refreshed = append(refreshed, areaID)
	}, logNop())

	s.evaluate(at(monday, 7, 59)) // first sight, no refresh
	s.evaluate(at(monday, 8, 0))  // boundary crossed
	s.evaluate(at(monday, 8, 1))  // unchanged
	s.evaluate(at(monday, 10, 0)) // window ended

	if len(refreshed) != 2 {
		t.Fatalf("expected 2 refreshes (enter, leave), got %d: %v", len(refreshed), refreshed)
	}
	if refreshed[0] != "living" || refreshed[1] != "living" {
		t.Fatalf("unexpected refresh targets: %v", refreshed)
	}
}
