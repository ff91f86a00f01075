// Package payroll derives conducted-lesson and compensation records from
// finalized occurrences and the teacher pay rates in force on the lesson date.
package payroll

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Pay rate bases.
const (
	RatePerLesson  = "PER_LESSON"
	RatePerPresent = "PER_PRESENT"
)

// Compensation record bases.
const (
	BasisAuto   = "AUTO"
	BasisManual = "MANUAL"
)

// PayRate is a teacher's rate definition over a validity window. A nil
// ActiveTo means open-ended.
type PayRate struct {
	ID         int64      `json:"id"`
	TeacherID  int64      `json:"teacher_id"`
	RateType   string     `json:"rate_type"`
	Amount     float64    `json:"amount"`
	ActiveFrom time.Time  `json:"active_from"`
	ActiveTo   *time.Time `json:"active_to,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ConductedLesson is the per-occurrence attendance rollup written at
// finalization and refreshed on later corrections.
type ConductedLesson struct {
	ID                     int64      `json:"id"`
	OccurrenceID           string     `json:"occurrence_id"`
	TeacherID              int64      `json:"teacher_id"`
	ClubID                 *int64     `json:"club_id,omitempty"`
	LessonDate             time.Time  `json:"lesson_date"`
	DurationMin            *int       `json:"duration_min,omitempty"`
	TotalStudents          int        `json:"total_students"`
	PresentStudents        int        `json:"present_students"`
	AbsentStudents         int        `json:"absent_students"`
	Notes                  *string    `json:"notes,omitempty"`
	CompensationCalculated bool       `json:"compensation_calculated"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              *time.Time `json:"updated_at,omitempty"`
}

// CompensationRecord is one payout line for a teacher, either derived
// automatically from an occurrence or entered manually.
type CompensationRecord struct {
	ID           int64     `json:"id"`
	TeacherID    int64     `json:"teacher_id"`
	OccurrenceID string    `json:"occurrence_id"`
	Basis        string    `json:"basis"`
	Amount       float64   `json:"amount"`
	Note         *string   `json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Repository persists payroll data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ActiveRate returns the rate whose validity window contains date, newest
// active_from first when windows overlap. Nil when no rate applies.
func (r *Repository) ActiveRate(ctx context.Context, teacherID int64, date time.Time) (*PayRate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, teacher_id, rate_type, amount, active_from, active_to, created_at
		FROM pay_rates
		WHERE teacher_id = $1 AND active_from <= $2 AND (active_to IS NULL OR active_to >= $2)
		ORDER BY active_from DESC
		LIMIT 1
	`, teacherID, date)
	var p PayRate
	if err := row.Scan(&p.ID, &p.TeacherID, &p.RateType, &p.Amount, &p.ActiveFrom, &p.ActiveTo, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// InsertRate writes a new rate definition.
func (r *Repository) InsertRate(ctx context.Context, p PayRate) (PayRate, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO pay_rates (teacher_id, rate_type, amount, active_from, active_to)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.TeacherID, p.RateType, p.Amount, p.ActiveFrom, p.ActiveTo)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return PayRate{}, err
	}
	return p, nil
}

// ListRates returns a teacher's rates, newest window first.
func (r *Repository) ListRates(ctx context.Context, teacherID int64) ([]PayRate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, teacher_id, rate_type, amount, active_from, active_to, created_at
		FROM pay_rates
		WHERE teacher_id = $1
		ORDER BY active_from DESC
	`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PayRate
	for rows.Next() {
		var p PayRate
		if err := rows.Scan(&p.ID, &p.TeacherID, &p.RateType, &p.Amount, &p.ActiveFrom, &p.ActiveTo, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkCounts tallies an occurrence's attendance marks.
func (r *Repository) MarkCounts(ctx context.Context, occurrenceID string) (total, present, absent int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'PRESENT' THEN 1 ELSE 0 END), 0)
		FROM attendance_marks WHERE occurrence_id = $1
	`, occurrenceID)
	if err := row.Scan(&total, &present); err != nil {
		return 0, 0, 0, err
	}
	return total, present, total - present, nil
}

// ClubDuration returns a club's lesson length in minutes, nil for an
// unknown or unset club.
func (r *Repository) ClubDuration(ctx context.Context, clubID *int64) (*int, error) {
	if clubID == nil {
		return nil, nil
	}
	row := r.db.QueryRowContext(ctx, `SELECT duration_min FROM clubs WHERE id = $1`, *clubID)
	var d int
	if err := row.Scan(&d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// UpsertConducted creates or refreshes the rollup row for an occurrence.
func (r *Repository) UpsertConducted(ctx context.Context, c ConductedLesson) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conducted_lessons
			(occurrence_id, teacher_id, club_id, lesson_date, duration_min,
			 total_students, present_students, absent_students, compensation_calculated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (occurrence_id) DO UPDATE SET
			total_students = EXCLUDED.total_students,
			present_students = EXCLUDED.present_students,
			absent_students = EXCLUDED.absent_students,
			compensation_calculated = EXCLUDED.compensation_calculated,
			updated_at = NOW()
	`, c.OccurrenceID, c.TeacherID, c.ClubID, c.LessonDate, c.DurationMin,
		c.TotalStudents, c.PresentStudents, c.AbsentStudents, c.CompensationCalculated)
	return err
}

// GetConducted returns the rollup for an occurrence, nil when none exists.
func (r *Repository) GetConducted(ctx context.Context, occurrenceID string) (*ConductedLesson, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, occurrence_id, teacher_id, club_id, lesson_date, duration_min,
			total_students, present_students, absent_students, notes,
			compensation_calculated, created_at, updated_at
		FROM conducted_lessons WHERE occurrence_id = $1
	`, occurrenceID)
	var c ConductedLesson
	err := row.Scan(&c.ID, &c.OccurrenceID, &c.TeacherID, &c.ClubID, &c.LessonDate, &c.DurationMin,
		&c.TotalStudents, &c.PresentStudents, &c.AbsentStudents, &c.Notes,
		&c.CompensationCalculated, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListConducted returns rollups with basic filters.
func (r *Repository) ListConducted(ctx context.Context, teacherID int64, from, to *time.Time, limit, offset int) ([]ConductedLesson, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, occurrence_id, teacher_id, club_id, lesson_date, duration_min,
		total_students, present_students, absent_students, notes,
		compensation_calculated, created_at, updated_at FROM conducted_lessons`
	args := []any{}
	clauses := []string{}
	if teacherID > 0 {
		clauses = append(clauses, "teacher_id = $"+itoa(len(args)+1))
		args = append(args, teacherID)
	}
	if from != nil {
		clauses = append(clauses, "lesson_date >= $"+itoa(len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		clauses = append(clauses, "lesson_date <= $"+itoa(len(args)+1))
		args = append(args, *to)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY lesson_date DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ConductedLesson
	for rows.Next() {
		var c ConductedLesson
		err := rows.Scan(&c.ID, &c.OccurrenceID, &c.TeacherID, &c.ClubID, &c.LessonDate, &c.DurationMin,
			&c.TotalStudents, &c.PresentStudents, &c.AbsentStudents, &c.Notes,
			&c.CompensationCalculated, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// HasAutoCompensation reports whether an AUTO record exists for an occurrence.
func (r *Repository) HasAutoCompensation(ctx context.Context, occurrenceID string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM compensation_records WHERE occurrence_id = $1 AND basis = 'AUTO'
		)
	`, occurrenceID)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// InsertAutoCompensation writes the derived payout line. The partial unique
// index keeps at most one AUTO record per occurrence even under concurrent
// finalizations; the loser of the race is a no-op.
func (r *Repository) InsertAutoCompensation(ctx context.Context, c CompensationRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO compensation_records (teacher_id, occurrence_id, basis, amount, note)
		VALUES ($1, $2, 'AUTO', $3, $4)
		ON CONFLICT (occurrence_id) WHERE basis = 'AUTO' DO NOTHING
	`, c.TeacherID, c.OccurrenceID, c.Amount, c.Note)
	return err
}

// InsertManualCompensation writes an operator-entered payout line.
func (r *Repository) InsertManualCompensation(ctx context.Context, c CompensationRecord) (CompensationRecord, error) {
	c.Basis = BasisManual
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO compensation_records (teacher_id, occurrence_id, basis, amount, note)
		VALUES ($1, $2, 'MANUAL', $3, $4)
		RETURNING id, created_at
	`, c.TeacherID, c.OccurrenceID, c.Amount, c.Note)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return CompensationRecord{}, err
	}
	return c, nil
}

// ListCompensations returns payout lines with basic filters.
func (r *Repository) ListCompensations(ctx context.Context, teacherID int64, from, to *time.Time, limit, offset int) ([]CompensationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, teacher_id, occurrence_id, basis, amount, note, created_at FROM compensation_records`
	args := []any{}
	clauses := []string{}
	if teacherID > 0 {
		clauses = append(clauses, "teacher_id = $"+itoa(len(args)+1))
		args = append(args, teacherID)
	}
	if from != nil {
		clauses = append(clauses, "created_at >= $"+itoa(len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		clauses = append(clauses, "created_at <= $"+itoa(len(args)+1))
		args = append(args, *to)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CompensationRecord
	for rows.Next() {
		var c CompensationRecord
		if err := rows.Scan(&c.ID, &c.TeacherID, &c.OccurrenceID, &c.Basis, &c.Amount, &c.Note, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
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
