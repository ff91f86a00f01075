// Package schedule holds the recurring-lesson entities the engine reads:
// clubs, teachers, students, weekly schedules, enrollment, and the per-schedule
// notify rules that drive occurrence materialization.
package schedule

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Club is a lesson subject/group container.
type Club struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DurationMin int       `json:"duration_min"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Teacher runs lessons and receives attendance prompts on ChatID.
type Teacher struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	ChatID    *int64    `json:"chat_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Student is an enrollable participant.
type Student struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Schedule is a weekly recurring lesson: weekday 1=Monday..7=Sunday,
// StartTime a local wall clock "HH:MM".
type Schedule struct {
	ID        int64     `json:"id"`
	ClubID    *int64    `json:"club_id,omitempty"`
	TeacherID int64     `json:"teacher_id"`
	Weekday   int       `json:"weekday"`
	StartTime string    `json:"start_time"`
	GroupName string    `json:"group_name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// NotifyRule configures when a schedule's attendance prompt fires: either
// OffsetMinutes before the lesson start, or at an explicit NotifyTime clock.
type NotifyRule struct {
	ID            int64      `json:"id"`
	ScheduleID    int64      `json:"schedule_id"`
	Enabled       bool       `json:"enabled"`
	OffsetMinutes int        `json:"offset_minutes"`
	NotifyTime    *string    `json:"notify_time,omitempty"`
	Message       *string    `json:"message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Repository persists scheduling entities in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetSchedule returns a schedule by id, nil when absent.
func (r *Repository) GetSchedule(ctx context.Context, id int64) (*Schedule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, club_id, teacher_id, weekday, start_time, group_name, active, created_at
		FROM schedules WHERE id = $1
	`, id)
	var s Schedule
	if err := row.Scan(&s.ID, &s.ClubID, &s.TeacherID, &s.Weekday, &s.StartTime, &s.GroupName, &s.Active, &s.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ListSchedules returns schedules, optionally only active ones.
func (r *Repository) ListSchedules(ctx context.Context, activeOnly bool) ([]Schedule, error) {
	query := `
		SELECT id, club_id, teacher_id, weekday, start_time, group_name, active, created_at
		FROM schedules`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY weekday, start_time`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.ClubID, &s.TeacherID, &s.Weekday, &s.StartTime, &s.GroupName, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListActiveByWeekday returns active schedules on a given weekday (1=Monday..7=Sunday).
func (r *Repository) ListActiveByWeekday(ctx context.Context, weekday int) ([]Schedule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, club_id, teacher_id, weekday, start_time, group_name, active, created_at
		FROM schedules WHERE active = TRUE AND weekday = $1
		ORDER BY start_time
	`, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.ClubID, &s.TeacherID, &s.Weekday, &s.StartTime, &s.GroupName, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateSchedule inserts a schedule and returns it with id and created_at set.
func (r *Repository) CreateSchedule(ctx context.Context, s Schedule) (Schedule, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO schedules (club_id, teacher_id, weekday, start_time, group_name, active)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, s.ClubID, s.TeacherID, s.Weekday, s.StartTime, s.GroupName, s.Active)
	if err := row.Scan(&s.ID, &s.CreatedAt); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// SetScheduleActive flips the active flag.
func (r *Repository) SetScheduleActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE schedules SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("schedule not found")
	}
	return nil
}

// UpdateScheduleTime changes the weekly slot; occurrence drift is reconciled
// by the weekly sweep.
func (r *Repository) UpdateScheduleTime(ctx context.Context, id int64, weekday int, startTime string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules SET weekday = $2, start_time = $3 WHERE id = $1
	`, id, weekday, startTime)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.New("schedule not found")
	}
	return nil
}

// EnrolledStudents returns the active students enrolled on a schedule.
func (r *Repository) EnrolledStudents(ctx context.Context, scheduleID int64) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT st.id, st.full_name, st.active, st.created_at
		FROM schedule_students ss
		JOIN students st ON st.id = ss.student_id
		WHERE ss.schedule_id = $1 AND st.active = TRUE
		ORDER BY st.full_name
	`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.FullName, &st.Active, &st.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Enroll adds a student to a schedule; repeated enrollment is a no-op.
func (r *Repository) Enroll(ctx context.Context, scheduleID, studentID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedule_students (schedule_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT (schedule_id, student_id) DO NOTHING
	`, scheduleID, studentID)
	return err
}

// Unenroll removes a student from a schedule.
func (r *Repository) Unenroll(ctx context.Context, scheduleID, studentID int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM schedule_students WHERE schedule_id = $1 AND student_id = $2
	`, scheduleID, studentID)
	return err
}

// GetTeacher returns a teacher by id, nil when absent.
func (r *Repository) GetTeacher(ctx context.Context, id int64) (*Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, full_name, chat_id, active, created_at FROM teachers WHERE id = $1
	`, id)
	var t Teacher
	if err := row.Scan(&t.ID, &t.FullName, &t.ChatID, &t.Active, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// CreateTeacher inserts a teacher.
func (r *Repository) CreateTeacher(ctx context.Context, fullName string, chatID *int64) (Teacher, error) {
	t := Teacher{FullName: fullName, ChatID: chatID, Active: true}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO teachers (full_name, chat_id) VALUES ($1, $2)
		RETURNING id, created_at
	`, fullName, chatID)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

// GetClub returns a club by id, nil when absent.
func (r *Repository) GetClub(ctx context.Context, id int64) (*Club, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, duration_min, active, created_at FROM clubs WHERE id = $1
	`, id)
	var c Club
	if err := row.Scan(&c.ID, &c.Name, &c.DurationMin, &c.Active, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// CreateClub inserts a club.
func (r *Repository) CreateClub(ctx context.Context, name string, durationMin int) (Club, error) {
	c := Club{Name: name, DurationMin: durationMin, Active: true}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO clubs (name, duration_min) VALUES ($1, $2)
		RETURNING id, created_at
	`, name, durationMin)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return Club{}, err
	}
	return c, nil
}

// CreateStudent inserts a student.
func (r *Repository) CreateStudent(ctx context.Context, fullName string) (Student, error) {
	st := Student{FullName: fullName, Active: true}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (full_name) VALUES ($1)
		RETURNING id, created_at
	`, fullName)
	if err := row.Scan(&st.ID, &st.CreatedAt); err != nil {
		return Student{}, err
	}
	return st, nil
}

// GetRule returns a notify rule by id, nil when absent.
func (r *Repository) GetRule(ctx context.Context, id int64) (*NotifyRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, schedule_id, enabled, offset_minutes, notify_time, message, created_at, updated_at
		FROM notify_rules WHERE id = $1
	`, id)
	return scanRule(row)
}

// GetRuleBySchedule returns the notify rule for a schedule, nil when absent.
func (r *Repository) GetRuleBySchedule(ctx context.Context, scheduleID int64) (*NotifyRule, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, schedule_id, enabled, offset_minutes, notify_time, message, created_at, updated_at
		FROM notify_rules WHERE schedule_id = $1
	`, scheduleID)
	return scanRule(row)
}

// ListEnabledRules returns every enabled notify rule.
func (r *Repository) ListEnabledRules(ctx context.Context) ([]NotifyRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, schedule_id, enabled, offset_minutes, notify_time, message, created_at, updated_at
		FROM notify_rules WHERE enabled = TRUE
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []NotifyRule
	for rows.Next() {
		var n NotifyRule
		if err := rows.Scan(&n.ID, &n.ScheduleID, &n.Enabled, &n.OffsetMinutes, &n.NotifyTime, &n.Message, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpsertRule creates or updates the notify rule for a schedule.
func (r *Repository) UpsertRule(ctx context.Context, n NotifyRule) (NotifyRule, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO notify_rules (schedule_id, enabled, offset_minutes, notify_time, message)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (schedule_id) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			offset_minutes = EXCLUDED.offset_minutes,
			notify_time = EXCLUDED.notify_time,
			message = EXCLUDED.message,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, n.ScheduleID, n.Enabled, n.OffsetMinutes, n.NotifyTime, n.Message)
	if err := row.Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return NotifyRule{}, err
	}
	return n, nil
}

func scanRule(row *sql.Row) (*NotifyRule, error) {
	var n NotifyRule
	if err := row.Scan(&n.ID, &n.ScheduleID, &n.Enabled, &n.OffsetMinutes, &n.NotifyTime, &n.Message, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}
