// Package clock converts local lesson wall-clock rules into UTC instants.
// All schedule times are wall clocks in one configured IANA zone; everything
// stored or compared is UTC.
package clock

import (
	"fmt"
	"log"
	"time"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
	Second int
}

// Parse reads "HH:MM" or "HH:MM:SS".
func Parse(s string) (Clock, error) {
	var c Clock
	switch n, err := fmt.Sscanf(s, "%d:%d:%d", &c.Hour, &c.Minute, &c.Second); {
	case err == nil && n == 3:
	case n == 2:
		c.Second = 0
	default:
		return Clock{}, fmt.Errorf("invalid clock %q", s)
	}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 || c.Second < 0 || c.Second > 59 {
		return Clock{}, fmt.Errorf("clock %q out of range", s)
	}
	return c, nil
}

// String renders the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Zone loads an IANA location, falling back to UTC when the name is empty or unknown.
func Zone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("clock: unknown zone %q, using UTC: %v", name, err)
		return time.UTC
	}
	return loc
}

// Combine attaches a wall clock to the calendar date carried by d and returns
// the UTC instant. d's own zone is ignored; only its year/month/day are used.
func Combine(d time.Time, c Clock, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour, c.Minute, c.Second, 0, loc).UTC()
}

// LocalDate returns t's calendar date in loc, normalized to midnight UTC so it
// can be handed to a DATE column or compared by day.
func LocalDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextWeekly returns n UTC instants for a weekly local-time rule, starting
// from the next occurrence of the target weekday. weekday is 0=Monday..6=Sunday.
// When the target day is today, today is kept only if includeToday is set and
// the target time has not passed yet; otherwise the first instant is next week.
// Subsequent instants step exactly 7*24h in UTC.
func NextWeekly(weekday, hour, minute, n int, includeToday bool, loc *time.Location, now time.Time) []time.Time {
	if n <= 0 {
		return nil
	}
	nowLocal := now.In(loc)
	first := time.Date(nowLocal.Year(), nowLocal.Month(), nowLocal.Day(), hour, minute, 0, 0, loc)

	daysAhead := (weekday - mondayIndex(nowLocal.Weekday())) % 7
	if daysAhead < 0 {
		daysAhead += 7
	}
	if daysAhead == 0 && !(includeToday && first.After(nowLocal)) {
		daysAhead = 7
	}
	first = first.AddDate(0, 0, daysAhead)

	out := make([]time.Time, 0, n)
	cur := first.UTC()
	for i := 0; i < n; i++ {
		out = append(out, cur)
		cur = cur.Add(7 * 24 * time.Hour)
	}
	return out
}

// mondayIndex maps Go's Sunday-first weekday onto the Monday-first convention.
func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}
