package lesson

import (
	"testing"
	"time"

	"classping/internal/clock"
	"classping/internal/schedule"
)

func kyiv(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Kyiv")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

func TestPlanOccurrencesOffset(t *testing.T) {
	loc := kyiv(t)
	s := schedule.Schedule{ID: 3, TeacherID: 1, Weekday: 1, StartTime: "14:00", Active: true}
	rule := schedule.NotifyRule{ID: 7, ScheduleID: 3, Enabled: true, OffsetMinutes: 10}
	// Sunday 2026-01-11 10:00 Kyiv.
	now := time.Date(2026, 1, 11, 10, 0, 0, 0, loc)

	plans, err := planOccurrences(rule, s, 3, loc, now)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plans) != 3 {
		t.Fatalf("expected 3 plans, got %d", len(plans))
	}

	wantDates := []time.Time{
		time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC),
	}
	for i, p := range plans {
		if !p.Date.Equal(wantDates[i]) {
			t.Fatalf("plan %d: expected date %s, got %s", i, wantDates[i], p.Date)
		}
		// 14:00 Kyiv is 12:00 UTC in January; notify 10 minutes earlier.
		if p.StartAt.Hour() != 12 || p.StartAt.Minute() != 0 {
			t.Fatalf("plan %d: expected start 12:00 UTC, got %s", i, p.StartAt)
		}
		if got := p.StartAt.Sub(p.NotifyAt); got != 10*time.Minute {
			t.Fatalf("plan %d: expected notify 10m before start, got %s", i, got)
		}
		local := p.NotifyAt.In(loc)
		if local.Hour() != 13 || local.Minute() != 50 {
			t.Fatalf("plan %d: expected notify 13:50 local, got %s", i, local)
		}
	}
}

func TestPlanOccurrencesIdempotent(t *testing.T) {
	loc := kyiv(t)
	s := schedule.Schedule{ID: 3, TeacherID: 1, Weekday: 4, StartTime: "16:45", Active: true}
	rule := schedule.NotifyRule{ID: 7, ScheduleID: 3, Enabled: true, OffsetMinutes: 30}
	now := time.Date(2026, 3, 4, 9, 30, 0, 0, loc)

	a, err := planOccurrences(rule, s, 5, loc, now)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	b, err := planOccurrences(rule, s, 5, loc, now)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("plan count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Key != b[i].Key || !a[i].StartAt.Equal(b[i].StartAt) || !a[i].NotifyAt.Equal(b[i].NotifyAt) {
			t.Fatalf("plan %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestPlanOccurrencesExplicitNotifyClock(t *testing.T) {
	loc := kyiv(t)
	notify := "08:30"
	s := schedule.Schedule{ID: 3, TeacherID: 1, Weekday: 1, StartTime: "14:00", Active: true}
	rule := schedule.NotifyRule{ID: 7, ScheduleID: 3, Enabled: true, OffsetMinutes: 10, NotifyTime: &notify}
	now := time.Date(2026, 1, 11, 10, 0, 0, 0, loc)

	plans, err := planOccurrences(rule, s, 2, loc, now)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	for i, p := range plans {
		local := p.NotifyAt.In(loc)
		if local.Hour() != 8 || local.Minute() != 30 {
			t.Fatalf("plan %d: expected notify 08:30 local, got %s", i, local)
		}
		if !clock.LocalDate(p.NotifyAt, loc).Equal(p.Date) {
			t.Fatalf("plan %d: notify clock landed on wrong date", i)
		}
	}
}

func TestPlanOccurrencesBadClock(t *testing.T) {
	loc := kyiv(t)
	s := schedule.Schedule{ID: 3, TeacherID: 1, Weekday: 1, StartTime: "half past", Active: true}
	rule := schedule.NotifyRule{ID: 7, ScheduleID: 3}
	if _, err := planOccurrences(rule, s, 1, loc, time.Now()); err == nil {
		t.Fatalf("expected bad start time to error")
	}
}

func TestIdempotencyKey(t *testing.T) {
	date := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	if got := idempotencyKey(7, date); got != "notify_rule_7_20260112" {
		t.Fatalf("expected notify_rule_7_20260112, got %s", got)
	}
	if got := keyPrefix(7); got != "notify_rule_7_%" {
		t.Fatalf("expected notify_rule_7_%%, got %s", got)
	}
}

func TestIsoWeekday(t *testing.T) {
	cases := map[time.Weekday]int{
		time.Monday:   1,
		time.Friday:   5,
		time.Saturday: 6,
		time.Sunday:   7,
	}
	for in, want := range cases {
		if got := isoWeekday(in); got != want {
			t.Fatalf("expected %v to map to %d, got %d", in, want, got)
		}
	}
}
