package bot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"classping/internal/attendance"
	"classping/internal/chat"
	"classping/internal/lesson"
	"classping/internal/metrics"
	"classping/internal/schedule"
)

// Dispatcher polls for due occurrences and delivers attendance prompts.
type Dispatcher struct {
	occ      *lesson.Repository
	sched    *schedule.Repository
	att      *attendance.Service
	client   *chat.Client
	interval time.Duration
	batch    int
	style    string
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(occ *lesson.Repository, sched *schedule.Repository, att *attendance.Service, client *chat.Client, interval time.Duration, batch int, style string) *Dispatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batch <= 0 {
		batch = 30
	}
	if style == "" {
		style = StyleList
	}
	return &Dispatcher{occ: occ, sched: sched, att: att, client: client, interval: interval, batch: batch, style: style}
}

// Run polls until the context ends, waiting twice as long after a failed
// cycle to ease pressure on the database.
func (d *Dispatcher) Run(ctx context.Context) {
	log.Printf("dispatcher: polling every %s", d.interval)
	for {
		wait := d.interval
		if err := d.RunCycle(ctx, time.Now().UTC()); err != nil {
			log.Printf("dispatcher: cycle failed: %v", err)
			wait = 2 * d.interval
		}
		select {
		case <-ctx.Done():
			log.Printf("dispatcher: stopped")
			return
		case <-time.After(wait):
		}
	}
}

// RunCycle claims one batch of due occurrences and processes them inside a
// single transaction. The row locks hold until commit, so an overlapping
// cycle cannot double-send; one occurrence failing never aborts the batch.
func (d *Dispatcher) RunCycle(ctx context.Context, now time.Time) error {
	tx, err := d.occ.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dispatch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	due, err := d.occ.ClaimDue(ctx, tx, now, d.batch)
	if err != nil {
		return fmt.Errorf("claim due occurrences: %w", err)
	}
	for i := range due {
		if err := d.process(ctx, tx, &due[i], now); err != nil {
			log.Printf("dispatcher: occurrence %s: %v", due[i].ID, err)
		}
	}
	return tx.Commit()
}

func (d *Dispatcher) process(ctx context.Context, tx *sql.Tx, o *lesson.Occurrence, now time.Time) error {
	if o.TeacherChatID == nil {
		// Stays PLANNED until the teacher record gets a chat handle.
		return fmt.Errorf("no chat handle for teacher %d", o.TeacherID)
	}
	roster, err := d.att.Roster(ctx, o.ID)
	if err != nil {
		return err
	}
	if len(roster) == 0 {
		metrics.DispatchSkipped.Inc()
		log.Printf("dispatcher: occurrence %s has no students enrolled, skipping", o.ID)
		return d.occ.MarkSkipped(ctx, tx, o.ID, "no students enrolled")
	}
	prompt, err := LoadPrompt(ctx, d.sched, o)
	if err != nil {
		return err
	}
	text, kb := RenderPrompt(prompt, roster, d.style)

	msgID, err := d.client.SendMessage(ctx, *o.TeacherChatID, text, kb)
	if err != nil {
		metrics.DispatchFailed.Inc()
		if dbErr := d.occ.RecordSendFailure(ctx, tx, o.ID, err.Error()); dbErr != nil {
			return dbErr
		}
		return fmt.Errorf("send: %w", err)
	}
	metrics.DispatchSent.Inc()
	payload, _ := json.Marshal(map[string]int64{"message_id": msgID})
	return d.occ.MarkSent(ctx, tx, o.ID, now, payload)
}
