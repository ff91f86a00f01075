package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classping/internal/lesson"
	"classping/internal/payroll"
	"classping/internal/schedule"
)

// ErrOccurrenceNotFound is returned when an interaction references an
// occurrence that no longer exists.
var ErrOccurrenceNotFound = errors.New("occurrence not found")

// Summary is the result of finalizing an occurrence.
type Summary struct {
	Total       int      `json:"total"`
	Present     int      `json:"present"`
	Absent      int      `json:"absent"`
	AbsentNames []string `json:"absent_names,omitempty"`
}

// RosterEntry is one student row in the attendance prompt. Absent is true
// only when an explicit ABSENT mark exists; no mark renders as present.
type RosterEntry struct {
	StudentID int64  `json:"student_id"`
	Name      string `json:"name"`
	Absent    bool   `json:"absent"`
}

// Service coordinates mark writes, finalization and the derived records
// that follow from them.
type Service struct {
	marks *Repository
	occ   *lesson.Repository
	sched *schedule.Repository
	pay   *payroll.Service
}

// NewService creates a service backed by the mark, occurrence and schedule
// repositories plus the payroll calculator.
func NewService(marks *Repository, occ *lesson.Repository, sched *schedule.Repository, pay *payroll.Service) *Service {
	return &Service{marks: marks, occ: occ, sched: sched, pay: pay}
}

// Toggle flips a student's mark relative to the status the tapping client
// believed was current, and upserts the result. Post-completion toggles
// trigger a recalculation of the derived records.
func (s *Service) Toggle(ctx context.Context, occurrenceID string, studentID int64, knownStatus string, actor *int64) (string, error) {
	occ, err := s.occ.Get(ctx, occurrenceID)
	if err != nil {
		return "", err
	}
	if occ == nil {
		return "", ErrOccurrenceNotFound
	}
	next := Flip(knownStatus)
	if err := s.marks.Upsert(ctx, occurrenceID, studentID, next, actor); err != nil {
		return "", err
	}
	if occ.Status == lesson.StatusCompleted {
		if err := s.pay.Recalculate(ctx, occ); err != nil {
			return "", fmt.Errorf("recalculate after toggle: %w", err)
		}
	}
	return next, nil
}

// SetMark writes an explicit status for a student, for corrections made
// outside the chat flow.
func (s *Service) SetMark(ctx context.Context, occurrenceID string, studentID int64, status string, actor *int64) error {
	if status != StatusPresent && status != StatusAbsent {
		return errors.New("status must be PRESENT or ABSENT")
	}
	occ, err := s.occ.Get(ctx, occurrenceID)
	if err != nil {
		return err
	}
	if occ == nil {
		return ErrOccurrenceNotFound
	}
	if err := s.marks.Upsert(ctx, occurrenceID, studentID, status, actor); err != nil {
		return err
	}
	if occ.Status == lesson.StatusCompleted {
		return s.pay.Recalculate(ctx, occ)
	}
	return nil
}

// Finish closes the attendance session: every enrolled student without a
// mark gets a default PRESENT one, the occurrence moves to COMPLETED and
// the derived records are computed. Repeated finishes converge on the same
// state and keep the original completion time.
func (s *Service) Finish(ctx context.Context, occurrenceID string, actor int64) (Summary, error) {
	occ, err := s.occ.Get(ctx, occurrenceID)
	if err != nil {
		return Summary{}, err
	}
	if occ == nil {
		return Summary{}, ErrOccurrenceNotFound
	}

	students, err := s.sched.EnrolledStudents(ctx, occ.ScheduleID)
	if err != nil {
		return Summary{}, err
	}
	ids := make([]int64, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	if err := s.marks.FillDefaults(ctx, occurrenceID, ids, &actor); err != nil {
		return Summary{}, err
	}
	if err := s.marks.StampMarkedBy(ctx, occurrenceID, actor); err != nil {
		return Summary{}, err
	}
	if occ.Status != lesson.StatusCompleted {
		if err := s.occ.MarkCompleted(ctx, occurrenceID, time.Now().UTC()); err != nil {
			return Summary{}, err
		}
	}
	if err := s.pay.Finalize(ctx, occ); err != nil {
		return Summary{}, fmt.Errorf("finalize derived records: %w", err)
	}
	return s.Summarize(ctx, occurrenceID)
}

// Summarize computes the present/absent totals and absent names for an
// occurrence from its stored marks.
func (s *Service) Summarize(ctx context.Context, occurrenceID string) (Summary, error) {
	marks, err := s.marks.ListByOccurrence(ctx, occurrenceID)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{Total: len(marks)}
	for _, m := range marks {
		if m.Status == StatusAbsent {
			sum.Absent++
			sum.AbsentNames = append(sum.AbsentNames, m.StudentName)
		} else {
			sum.Present++
		}
	}
	return sum, nil
}

// Roster returns the enrolled students of an occurrence with their current
// rendered state.
func (s *Service) Roster(ctx context.Context, occurrenceID string) ([]RosterEntry, error) {
	occ, err := s.occ.Get(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if occ == nil {
		return nil, ErrOccurrenceNotFound
	}
	students, err := s.sched.EnrolledStudents(ctx, occ.ScheduleID)
	if err != nil {
		return nil, err
	}
	marks, err := s.marks.MapByOccurrence(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	out := make([]RosterEntry, 0, len(students))
	for _, st := range students {
		out = append(out, RosterEntry{
			StudentID: st.ID,
			Name:      st.FullName,
			Absent:    marks[st.ID] == StatusAbsent,
		})
	}
	return out, nil
}

// Marks lists the stored marks of an occurrence with student names.
func (s *Service) Marks(ctx context.Context, occurrenceID string) ([]Mark, error) {
	return s.marks.ListByOccurrence(ctx, occurrenceID)
}
