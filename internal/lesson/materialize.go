package lesson

import (
	"context"
	"fmt"
	"log"
	"time"

	"classping/internal/clock"
	"classping/internal/schedule"
)

// Materializer turns notify rules into stored occurrences for a rolling
// horizon, idempotently.
type Materializer struct {
	occ     *Repository
	sched   *schedule.Repository
	loc     *time.Location
	horizon int
}

// NewMaterializer creates a materializer; horizon is the number of weekly
// instances kept ahead (52 when zero).
func NewMaterializer(occ *Repository, sched *schedule.Repository, loc *time.Location, horizon int) *Materializer {
	if horizon <= 0 {
		horizon = 52
	}
	return &Materializer{occ: occ, sched: sched, loc: loc, horizon: horizon}
}

// plan is one computed occurrence slot.
type plan struct {
	Date     time.Time
	StartAt  time.Time
	NotifyAt time.Time
	Key      string
}

// idempotencyKey scopes an occurrence to its notify rule and local date.
func idempotencyKey(ruleID int64, date time.Time) string {
	return fmt.Sprintf("notify_rule_%d_%s", ruleID, date.Format("20060102"))
}

// keyPrefix is the LIKE pattern matching every key of a rule.
func keyPrefix(ruleID int64) string {
	return fmt.Sprintf("notify_rule_%d_%%", ruleID)
}

// planOccurrences computes the occurrence slots for a rule. Start instants
// come from the lesson's own start clock so the calendar date is right even
// when the prompt fires earlier; the notify instant is start minus the offset,
// or the rule's explicit clock on the same local date.
func planOccurrences(rule schedule.NotifyRule, s schedule.Schedule, horizon int, loc *time.Location, now time.Time) ([]plan, error) {
	startClock, err := clock.Parse(s.StartTime)
	if err != nil {
		return nil, fmt.Errorf("schedule %d start time: %w", s.ID, err)
	}
	var notifyClock *clock.Clock
	if rule.NotifyTime != nil && *rule.NotifyTime != "" {
		c, err := clock.Parse(*rule.NotifyTime)
		if err != nil {
			return nil, fmt.Errorf("rule %d notify time: %w", rule.ID, err)
		}
		notifyClock = &c
	}

	instants := clock.NextWeekly(s.Weekday-1, startClock.Hour, startClock.Minute, horizon, true, loc, now)
	out := make([]plan, 0, len(instants))
	for _, startAt := range instants {
		date := clock.LocalDate(startAt, loc)
		notifyAt := startAt.Add(-time.Duration(rule.OffsetMinutes) * time.Minute)
		if notifyClock != nil {
			notifyAt = clock.Combine(date, *notifyClock, loc)
		}
		out = append(out, plan{
			Date:     date,
			StartAt:  startAt,
			NotifyAt: notifyAt,
			Key:      idempotencyKey(rule.ID, date),
		})
	}
	return out, nil
}

// EnsureRule materializes the horizon for one notify rule. Existing rows are
// refreshed in place (and reset to PLANNED); missing ones are inserted.
// Returns how many were created and refreshed.
func (m *Materializer) EnsureRule(ctx context.Context, rule schedule.NotifyRule) (created, refreshed int, err error) {
	s, err := m.sched.GetSchedule(ctx, rule.ScheduleID)
	if err != nil {
		return 0, 0, err
	}
	if s == nil || !s.Active {
		log.Printf("materialize: rule %d has no active schedule, skipping", rule.ID)
		return 0, 0, nil
	}
	teacher, err := m.sched.GetTeacher(ctx, s.TeacherID)
	if err != nil {
		return 0, 0, err
	}
	var chatID *int64
	if teacher != nil {
		chatID = teacher.ChatID
	}

	plans, err := planOccurrences(rule, *s, m.horizon, m.loc, time.Now().UTC())
	if err != nil {
		return 0, 0, err
	}
	prefix := keyPrefix(rule.ID)
	for _, p := range plans {
		existing, err := m.occ.FindByRuleKey(ctx, s.ID, p.Date, prefix)
		if err != nil {
			return created, refreshed, err
		}
		if existing != nil {
			if err := m.occ.Refresh(ctx, existing.ID, p.StartAt, p.NotifyAt, chatID); err != nil {
				return created, refreshed, err
			}
			refreshed++
			continue
		}
		key := p.Key
		_, err = m.occ.Insert(ctx, Occurrence{
			ScheduleID:     s.ID,
			Date:           p.Date,
			ClubID:         s.ClubID,
			TeacherID:      s.TeacherID,
			StartAt:        p.StartAt,
			NotifyAt:       p.NotifyAt,
			TeacherChatID:  chatID,
			IdempotencyKey: &key,
		})
		if err != nil {
			return created, refreshed, err
		}
		created++
	}
	return created, refreshed, nil
}

// EnsureAll refills the horizon for every enabled rule. A rule whose farthest
// occurrence already reaches a year out is left alone. One rule failing does
// not stop the rest.
func (m *Materializer) EnsureAll(ctx context.Context) (created int, err error) {
	rules, err := m.sched.ListEnabledRules(ctx)
	if err != nil {
		return 0, err
	}
	today := clock.LocalDate(time.Now().UTC(), m.loc)
	yearOut := today.AddDate(0, 0, 365)
	for _, rule := range rules {
		last, err := m.occ.LastFutureDate(ctx, rule.ScheduleID, today)
		if err != nil {
			log.Printf("materialize: rule %d horizon check failed: %v", rule.ID, err)
			continue
		}
		if last != nil && !last.Before(yearOut) {
			continue
		}
		c, _, err := m.EnsureRule(ctx, rule)
		if err != nil {
			log.Printf("materialize: rule %d failed: %v", rule.ID, err)
			continue
		}
		created += c
	}
	return created, nil
}

// EnsureToday materializes rules whose schedule runs on today's weekday.
// Weekends are skipped, mirroring the program's operating days.
func (m *Materializer) EnsureToday(ctx context.Context) (created int, err error) {
	nowLocal := time.Now().In(m.loc)
	weekday := isoWeekday(nowLocal.Weekday())
	if weekday > 5 {
		log.Printf("materialize: weekend (weekday %d), nothing to generate", weekday)
		return 0, nil
	}
	schedules, err := m.sched.ListActiveByWeekday(ctx, weekday)
	if err != nil {
		return 0, err
	}
	for _, s := range schedules {
		rule, err := m.sched.GetRuleBySchedule(ctx, s.ID)
		if err != nil {
			log.Printf("materialize: schedule %d rule lookup failed: %v", s.ID, err)
			continue
		}
		if rule == nil || !rule.Enabled {
			continue
		}
		c, _, err := m.EnsureRule(ctx, *rule)
		if err != nil {
			log.Printf("materialize: rule %d failed: %v", rule.ID, err)
			continue
		}
		created += c
	}
	return created, nil
}

// isoWeekday maps Go's weekday onto 1=Monday..7=Sunday.
func isoWeekday(w time.Weekday) int {
	if w == time.Sunday {
		return 7
	}
	return int(w)
}
