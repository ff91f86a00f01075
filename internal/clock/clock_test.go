package clock

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := map[string]Clock{
		"14:30":    {Hour: 14, Minute: 30},
		"09:05:30": {Hour: 9, Minute: 5, Second: 30},
		"00:00":    {},
		"23:59:59": {Hour: 23, Minute: 59, Second: 59},
	}
	for input, expect := range cases {
		c, err := Parse(input)
		if err != nil {
			t.Fatalf("expected %q to parse, got %v", input, err)
		}
		if c != expect {
			t.Fatalf("expected %q to give %+v, got %+v", input, expect, c)
		}
	}
	for _, input := range []string{"", "25:00", "14:61", "noon", "14", "14:"} {
		if _, err := Parse(input); err == nil {
			t.Fatalf("expected %q to fail", input)
		}
	}
}

func TestCombine(t *testing.T) {
	kyiv := Zone("Europe/Kyiv")
	date := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	got := Combine(date, Clock{Hour: 14, Minute: 0}, kyiv)
	// January: Kyiv is UTC+2.
	want := time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}

	// July: UTC+3.
	date = time.Date(2026, 7, 13, 0, 0, 0, 0, time.UTC)
	got = Combine(date, Clock{Hour: 14, Minute: 0}, kyiv)
	want = time.Date(2026, 7, 13, 11, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestLocalDateCrossesMidnight(t *testing.T) {
	kyiv := Zone("Europe/Kyiv")
	// 23:30 UTC is already the next day in Kyiv.
	instant := time.Date(2026, 1, 12, 23, 30, 0, 0, time.UTC)
	got := LocalDate(instant, kyiv)
	want := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextWeeklyTodayBoundary(t *testing.T) {
	kyiv := Zone("Europe/Kyiv")
	// Monday 2026-01-12 14:00 Kyiv.
	now := time.Date(2026, 1, 12, 14, 0, 0, 0, kyiv)

	// Target one minute ahead of now: today must be included.
	got := NextWeekly(0, 14, 1, 1, true, kyiv, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 instant, got %d", len(got))
	}
	if d := LocalDate(got[0], kyiv); !d.Equal(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected today, got %s", d)
	}

	// Target one minute behind now: today must be skipped.
	got = NextWeekly(0, 13, 59, 1, true, kyiv, now)
	if d := LocalDate(got[0], kyiv); !d.Equal(time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next Monday, got %s", d)
	}

	// includeToday off: future time today still rolls a week.
	got = NextWeekly(0, 14, 1, 1, false, kyiv, now)
	if d := LocalDate(got[0], kyiv); !d.Equal(time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next Monday with includeToday off, got %s", d)
	}
}

func TestNextWeeklyFromSunday(t *testing.T) {
	kyiv := Zone("Europe/Kyiv")
	// Sunday 2026-01-11 10:00 Kyiv; target Monday 14:00, three weeks.
	now := time.Date(2026, 1, 11, 10, 0, 0, 0, kyiv)
	got := NextWeekly(0, 14, 0, 3, true, kyiv, now)
	if len(got) != 3 {
		t.Fatalf("expected 3 instants, got %d", len(got))
	}
	mondays := []time.Time{
		time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 19, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 26, 0, 0, 0, 0, time.UTC),
	}
	for i, instant := range got {
		if d := LocalDate(instant, kyiv); !d.Equal(mondays[i]) {
			t.Fatalf("instant %d: expected %s, got %s", i, mondays[i], d)
		}
		// 14:00 Kyiv in January is 12:00 UTC.
		if instant.Hour() != 12 || instant.Minute() != 0 {
			t.Fatalf("instant %d: expected 12:00 UTC, got %s", i, instant)
		}
	}
}

func TestNextWeeklyDeterministic(t *testing.T) {
	kyiv := Zone("Europe/Kyiv")
	now := time.Date(2026, 3, 4, 9, 30, 0, 0, kyiv)
	a := NextWeekly(4, 16, 45, 5, true, kyiv, now)
	b := NextWeekly(4, 16, 45, 5, true, kyiv, now)
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("instant %d differs between runs: %s vs %s", i, a[i], b[i])
		}
	}
	for i := 1; i < len(a); i++ {
		if a[i].Sub(a[i-1]) != 7*24*time.Hour {
			t.Fatalf("expected exact 7*24h UTC step, got %s", a[i].Sub(a[i-1]))
		}
	}
}

func TestZoneFallsBackToUTC(t *testing.T) {
	if loc := Zone(""); loc != time.UTC {
		t.Fatalf("expected UTC for empty name, got %v", loc)
	}
	if loc := Zone("Nowhere/Unknown"); loc != time.UTC {
		t.Fatalf("expected UTC fallback for unknown zone, got %v", loc)
	}
}
