package lesson

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const occurrenceColumns = `id, schedule_id, date, club_id, teacher_id, status, start_at, notify_at,
	sent_at, completed_at, teacher_chat_id, send_attempts, last_error, idempotency_key, payload, created_at`

// Repository persists lesson occurrences in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle for transaction control.
func (r *Repository) DB() *sql.DB {
	return r.db
}

func scanOccurrence(row interface{ Scan(...any) error }) (Occurrence, error) {
	var o Occurrence
	err := row.Scan(&o.ID, &o.ScheduleID, &o.Date, &o.ClubID, &o.TeacherID, &o.Status,
		&o.StartAt, &o.NotifyAt, &o.SentAt, &o.CompletedAt, &o.TeacherChatID,
		&o.SendAttempts, &o.LastError, &o.IdempotencyKey, &o.Payload, &o.CreatedAt)
	return o, err
}

// Get returns a single occurrence by id, nil when absent.
func (r *Repository) Get(ctx context.Context, id string) (*Occurrence, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+occurrenceColumns+`
		FROM lesson_occurrences WHERE id = $1
	`, id)
	o, err := scanOccurrence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// FindByRuleKey looks up the occurrence owned by a notify rule on a date, via
// the rule-scoped idempotency-key prefix.
func (r *Repository) FindByRuleKey(ctx context.Context, scheduleID int64, date time.Time, keyPrefix string) (*Occurrence, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+occurrenceColumns+`
		FROM lesson_occurrences
		WHERE schedule_id = $1 AND date = $2 AND idempotency_key LIKE $3
		LIMIT 1
	`, scheduleID, date, keyPrefix)
	o, err := scanOccurrence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// Insert writes a new occurrence.
func (r *Repository) Insert(ctx context.Context, o Occurrence) (Occurrence, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusPlanned
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO lesson_occurrences
			(id, schedule_id, date, club_id, teacher_id, status, start_at, notify_at,
			 teacher_chat_id, send_attempts, last_error, idempotency_key, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at
	`, o.ID, o.ScheduleID, o.Date, o.ClubID, o.TeacherID, o.Status, o.StartAt, o.NotifyAt,
		o.TeacherChatID, o.SendAttempts, o.LastError, o.IdempotencyKey, o.Payload)
	if err := row.Scan(&o.CreatedAt); err != nil {
		return Occurrence{}, err
	}
	return o, nil
}

// Refresh overwrites the recomputed fields of an existing occurrence and
// resets it to PLANNED, clearing send/completion markers so a reschedule
// propagates without losing the row.
func (r *Repository) Refresh(ctx context.Context, id string, startAt, notifyAt time.Time, teacherChatID *int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE lesson_occurrences
		SET start_at = $2, notify_at = $3, teacher_chat_id = $4,
			status = $5, sent_at = NULL, completed_at = NULL,
			send_attempts = 0, last_error = NULL
		WHERE id = $1
	`, id, startAt, notifyAt, teacherChatID, StatusPlanned)
	return err
}

// ResetToPlanned puts an occurrence back to PLANNED, clearing send and
// completion markers. Used by the admin surface to re-arm a prompt.
func (r *Repository) ResetToPlanned(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lesson_occurrences
		SET status = $2, sent_at = NULL, completed_at = NULL
		WHERE id = $1
	`, id, StatusPlanned)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("occurrence not found")
	}
	return nil
}

// ClaimDue selects due, unsent PLANNED occurrences oldest-notify-first under
// non-blocking row locks. Rows locked by a concurrent poller are skipped, so
// overlapping cycles never double-claim. Must run inside tx; the locks hold
// until commit.
func (r *Repository) ClaimDue(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]Occurrence, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := tx.QueryContext(ctx, `
		SELECT `+occurrenceColumns+`
		FROM lesson_occurrences
		WHERE status = $1 AND notify_at <= $2 AND sent_at IS NULL
		ORDER BY notify_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, StatusPlanned, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MarkSent records a successful send inside the dispatch transaction. The
// payload keeps the delivered message id for later inspection.
func (r *Repository) MarkSent(ctx context.Context, tx *sql.Tx, id string, sentAt time.Time, payload []byte) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE lesson_occurrences SET status = $2, sent_at = $3, payload = $4 WHERE id = $1
	`, id, StatusSent, sentAt, payload)
	return err
}

// MarkSkipped terminalizes an occurrence with a reason inside the dispatch transaction.
func (r *Repository) MarkSkipped(ctx context.Context, tx *sql.Tx, id, reason string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE lesson_occurrences SET status = $2, last_error = $3 WHERE id = $1
	`, id, StatusSkipped, reason)
	return err
}

// RecordSendFailure keeps the occurrence PLANNED for retry and notes the error.
func (r *Repository) RecordSendFailure(ctx context.Context, tx *sql.Tx, id, errText string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE lesson_occurrences
		SET send_attempts = send_attempts + 1, last_error = $2
		WHERE id = $1
	`, id, errText)
	return err
}

// MarkCompleted finalizes an occurrence.
func (r *Repository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE lesson_occurrences SET status = $2, completed_at = $3 WHERE id = $1
	`, id, StatusCompleted, at)
	return err
}

// CancelFuture cancels PLANNED occurrences of a schedule dated fromDate or
// later. Used when a schedule is deactivated.
func (r *Repository) CancelFuture(ctx context.Context, scheduleID int64, fromDate time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lesson_occurrences SET status = $3
		WHERE schedule_id = $1 AND date >= $2 AND status = $4
	`, scheduleID, fromDate, StatusCancelled, StatusPlanned)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RestoreFuture puts future CANCELLED occurrences of a schedule back to
// PLANNED. Used when a schedule is reactivated.
func (r *Repository) RestoreFuture(ctx context.Context, scheduleID int64, fromDate time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lesson_occurrences SET status = $3
		WHERE schedule_id = $1 AND date >= $2 AND status = $4
	`, scheduleID, fromDate, StatusPlanned, StatusCancelled)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SweepStalePlanned skips PLANNED occurrences whose notify time fell behind
// the cutoff, recording the reason.
func (r *Repository) SweepStalePlanned(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lesson_occurrences SET status = $2, last_error = $3
		WHERE status = $1 AND notify_at < $4
	`, StatusPlanned, StatusSkipped, reason, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeletePastUnsent removes PLANNED occurrences dated before today that carry
// no attendance marks and no conducted-lesson record.
func (r *Repository) DeletePastUnsent(ctx context.Context, today time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM lesson_occurrences o
		WHERE o.status = $1 AND o.date < $2
			AND NOT EXISTS (SELECT 1 FROM attendance_marks m WHERE m.occurrence_id = o.id)
			AND NOT EXISTS (SELECT 1 FROM conducted_lessons c WHERE c.occurrence_id = o.id)
	`, StatusPlanned, today)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FutureUnmarked returns future PLANNED occurrences of a schedule that have no
// attendance marks; candidates for stale-drift deletion.
func (r *Repository) FutureUnmarked(ctx context.Context, scheduleID int64, fromDate time.Time) ([]Occurrence, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+occurrenceColumns+`
		FROM lesson_occurrences o
		WHERE o.schedule_id = $1 AND o.date >= $2 AND o.status = $3
			AND NOT EXISTS (SELECT 1 FROM attendance_marks m WHERE m.occurrence_id = o.id)
		ORDER BY o.date
	`, scheduleID, fromDate, StatusPlanned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Delete removes one occurrence.
func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM lesson_occurrences WHERE id = $1`, id)
	return err
}

// LastFutureDate returns the farthest future occurrence date of a schedule,
// nil when none exist.
func (r *Repository) LastFutureDate(ctx context.Context, scheduleID int64, fromDate time.Time) (*time.Time, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT MAX(date) FROM lesson_occurrences WHERE schedule_id = $1 AND date >= $2
	`, scheduleID, fromDate)
	var d *time.Time
	if err := row.Scan(&d); err != nil {
		return nil, err
	}
	return d, nil
}

// List returns occurrences with basic filters.
func (r *Repository) List(ctx context.Context, scheduleID int64, status string, from, to *time.Time, limit, offset int) ([]Occurrence, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + occurrenceColumns + ` FROM lesson_occurrences`
	args := []any{}
	clauses := []string{}
	if scheduleID > 0 {
		clauses = append(clauses, "schedule_id = $"+itoa(len(args)+1))
		args = append(args, scheduleID)
	}
	if status != "" {
		clauses = append(clauses, "status = $"+itoa(len(args)+1))
		args = append(args, status)
	}
	if from != nil {
		clauses = append(clauses, "date >= $"+itoa(len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		clauses = append(clauses, "date <= $"+itoa(len(args)+1))
		args = append(args, *to)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY notify_at DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
