package lesson

import (
	"context"
	"log"
	"time"

	"classping/internal/clock"
	"classping/internal/metrics"
	"classping/internal/schedule"
)

const staleSkipReason = "older than 1 day"

// Cleanup maintains the occurrence table: it terminalizes stale prompts,
// removes rows invalidated by schedule edits, and refills the horizon.
type Cleanup struct {
	occ        *Repository
	sched      *schedule.Repository
	mat        *Materializer
	loc        *time.Location
	staleAfter time.Duration
	drift      time.Duration
}

// NewCleanup creates the maintenance service. staleAfter defaults to 24h and
// drift to one minute.
func NewCleanup(occ *Repository, sched *schedule.Repository, mat *Materializer, loc *time.Location, staleAfter, drift time.Duration) *Cleanup {
	if staleAfter <= 0 {
		staleAfter = 24 * time.Hour
	}
	if drift <= 0 {
		drift = time.Minute
	}
	return &Cleanup{occ: occ, sched: sched, mat: mat, loc: loc, staleAfter: staleAfter, drift: drift}
}

// DailySweep skips PLANNED occurrences whose notify time is older than the
// stale window; they will never be dispatched.
func (c *Cleanup) DailySweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-c.staleAfter)
	n, err := c.occ.SweepStalePlanned(ctx, cutoff, staleSkipReason)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("cleanup: skipped %d stale occurrences", n)
		metrics.CleanupSwept.Add(float64(n))
	}
	return n, nil
}

// WeeklySweep runs the three-step maintenance pass: drop unsent past rows,
// drop future rows that drifted from their schedule, refill the horizon.
func (c *Cleanup) WeeklySweep(ctx context.Context) error {
	today := clock.LocalDate(time.Now().UTC(), c.loc)

	deleted, err := c.occ.DeletePastUnsent(ctx, today)
	if err != nil {
		return err
	}
	if deleted > 0 {
		log.Printf("cleanup: deleted %d past unsent occurrences", deleted)
		metrics.CleanupDeleted.Add(float64(deleted))
	}

	stale, err := c.sweepDrifted(ctx, today)
	if err != nil {
		return err
	}
	if stale > 0 {
		log.Printf("cleanup: deleted %d drifted future occurrences", stale)
		metrics.CleanupDeleted.Add(float64(stale))
	}

	created, err := c.mat.EnsureAll(ctx)
	if err != nil {
		return err
	}
	if created > 0 {
		log.Printf("cleanup: refilled horizon with %d occurrences", created)
	}
	return nil
}

// sweepDrifted deletes future PLANNED occurrences whose stored start no longer
// matches the schedule's current slot. Rows with attendance are never touched;
// the repository query excludes them.
func (c *Cleanup) sweepDrifted(ctx context.Context, today time.Time) (int64, error) {
	schedules, err := c.sched.ListSchedules(ctx, true)
	if err != nil {
		return 0, err
	}
	var deleted int64
	for _, s := range schedules {
		startClock, err := clock.Parse(s.StartTime)
		if err != nil {
			log.Printf("cleanup: schedule %d has bad start time %q: %v", s.ID, s.StartTime, err)
			continue
		}
		occs, err := c.occ.FutureUnmarked(ctx, s.ID, today)
		if err != nil {
			log.Printf("cleanup: schedule %d future lookup failed: %v", s.ID, err)
			continue
		}
		for _, o := range occs {
			expected := clock.Combine(o.Date, startClock, c.loc)
			if !driftExceeds(o.StartAt, expected, c.drift) {
				continue
			}
			if err := c.occ.Delete(ctx, o.ID); err != nil {
				log.Printf("cleanup: delete occurrence %s failed: %v", o.ID, err)
				continue
			}
			deleted++
		}
	}
	return deleted, nil
}

// driftExceeds reports whether two instants differ by more than the tolerance.
func driftExceeds(a, b time.Time, tolerance time.Duration) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d > tolerance
}
