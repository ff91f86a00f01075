// Package attendance records per-student marks against lesson occurrences and
// drives the toggle/finish state machine behind the chat prompts.
package attendance

import (
	"context"
	"database/sql"
	"time"
)

// Mark statuses. A missing mark renders and finalizes as PRESENT.
const (
	StatusPresent = "PRESENT"
	StatusAbsent  = "ABSENT"
)

// Flip returns the mark to write when a control showing knownStatus is
// tapped. The client-known status flips, so stale taps converge instead of
// fighting the stored row.
func Flip(knownStatus string) string {
	if knownStatus == "present" {
		return StatusAbsent
	}
	return StatusPresent
}

// Mark is one (occurrence, student) attendance row. StudentName is joined in
// on reads for rendering and summaries.
type Mark struct {
	ID           int64     `json:"id"`
	OccurrenceID string    `json:"occurrence_id"`
	StudentID    int64     `json:"student_id"`
	StudentName  string    `json:"student_name,omitempty"`
	Status       string    `json:"status"`
	MarkedBy     *int64    `json:"marked_by,omitempty"`
	MarkedAt     time.Time `json:"marked_at"`
}

// Repository persists attendance marks in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Upsert writes a mark, converging on the unique (occurrence, student)
// constraint so duplicate taps are safe.
func (r *Repository) Upsert(ctx context.Context, occurrenceID string, studentID int64, status string, markedBy *int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_marks (occurrence_id, student_id, status, marked_by, marked_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT ON CONSTRAINT attendance_occurrence_student_unique DO UPDATE SET
			status = EXCLUDED.status,
			marked_by = EXCLUDED.marked_by,
			marked_at = NOW()
	`, occurrenceID, studentID, status, markedBy)
	return err
}

// FillDefaults inserts a PRESENT mark for every listed student that has none
// yet; existing marks win the conflict.
func (r *Repository) FillDefaults(ctx context.Context, occurrenceID string, studentIDs []int64, markedBy *int64) error {
	for _, id := range studentIDs {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO attendance_marks (occurrence_id, student_id, status, marked_by, marked_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT ON CONSTRAINT attendance_occurrence_student_unique DO NOTHING
		`, occurrenceID, id, StatusPresent, markedBy)
		if err != nil {
			return err
		}
	}
	return nil
}

// StampMarkedBy records who closed the session on every mark of an occurrence.
func (r *Repository) StampMarkedBy(ctx context.Context, occurrenceID string, markedBy int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE attendance_marks SET marked_by = $2 WHERE occurrence_id = $1
	`, occurrenceID, markedBy)
	return err
}

// ListByOccurrence returns the marks of an occurrence with student names.
func (r *Repository) ListByOccurrence(ctx context.Context, occurrenceID string) ([]Mark, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.occurrence_id, m.student_id, st.full_name, m.status, m.marked_by, m.marked_at
		FROM attendance_marks m
		JOIN students st ON st.id = m.student_id
		WHERE m.occurrence_id = $1
		ORDER BY st.full_name
	`, occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Mark
	for rows.Next() {
		var m Mark
		if err := rows.Scan(&m.ID, &m.OccurrenceID, &m.StudentID, &m.StudentName, &m.Status, &m.MarkedBy, &m.MarkedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MapByOccurrence returns student id → status for an occurrence.
func (r *Repository) MapByOccurrence(ctx context.Context, occurrenceID string) (map[int64]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id, status FROM attendance_marks WHERE occurrence_id = $1
	`, occurrenceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, err
		}
		out[id] = status
	}
	return out, rows.Err()
}

// Counts returns total/present/absent for an occurrence.
func (r *Repository) Counts(ctx context.Context, occurrenceID string) (total, present, absent int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = $2 THEN 1 ELSE 0 END), 0)
		FROM attendance_marks WHERE occurrence_id = $1
	`, occurrenceID, StatusPresent)
	if err := row.Scan(&total, &present); err != nil {
		return 0, 0, 0, err
	}
	return total, present, total - present, nil
}
