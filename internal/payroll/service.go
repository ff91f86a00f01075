package payroll

import (
	"context"
	"errors"
	"fmt"
	"log"

	"classping/internal/lesson"
)

// Service computes derived records for finalized occurrences.
type Service struct {
	repo *Repository
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Finalize writes the attendance rollup for an occurrence and, when a pay
// rate applies, the derived compensation. Safe to call repeatedly.
func (s *Service) Finalize(ctx context.Context, occ *lesson.Occurrence) error {
	return s.derive(ctx, occ)
}

// Recalculate refreshes the rollup after post-finalization mark edits.
// Occurrences that were never finalized are left alone.
func (s *Service) Recalculate(ctx context.Context, occ *lesson.Occurrence) error {
	existing, err := s.repo.GetConducted(ctx, occ.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	return s.derive(ctx, occ)
}

func (s *Service) derive(ctx context.Context, occ *lesson.Occurrence) error {
	total, present, absent, err := s.repo.MarkCounts(ctx, occ.ID)
	if err != nil {
		return err
	}
	duration, err := s.repo.ClubDuration(ctx, occ.ClubID)
	if err != nil {
		return err
	}
	err = s.repo.UpsertConducted(ctx, ConductedLesson{
		OccurrenceID:           occ.ID,
		TeacherID:              occ.TeacherID,
		ClubID:                 occ.ClubID,
		LessonDate:             occ.StartAt,
		DurationMin:            duration,
		TotalStudents:          total,
		PresentStudents:        present,
		AbsentStudents:         absent,
		CompensationCalculated: present > 0,
	})
	if err != nil {
		return err
	}
	return s.ensureCompensation(ctx, occ, present)
}

// ensureCompensation writes at most one AUTO record per occurrence. The
// amount is fixed at first write; later mark edits do not reprice it.
func (s *Service) ensureCompensation(ctx context.Context, occ *lesson.Occurrence, present int) error {
	exists, err := s.repo.HasAutoCompensation(ctx, occ.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	rate, err := s.repo.ActiveRate(ctx, occ.TeacherID, occ.Date)
	if err != nil {
		return err
	}
	amount, skip := compensationAmount(rate, present)
	if skip != "" {
		log.Printf("payroll: occurrence %s: %s, skipping compensation", occ.ID, skip)
		return nil
	}
	return s.repo.InsertAutoCompensation(ctx, CompensationRecord{
		TeacherID:    occ.TeacherID,
		OccurrenceID: occ.ID,
		Basis:        BasisAuto,
		Amount:       amount,
	})
}

// compensationAmount prices a finalized occurrence, or returns a skip
// reason when no record should be written.
func compensationAmount(rate *PayRate, present int) (float64, string) {
	if rate == nil {
		return 0, "no active pay rate"
	}
	if present <= 0 {
		return 0, "no students present"
	}
	var amount float64
	switch rate.RateType {
	case RatePerLesson:
		amount = rate.Amount
	case RatePerPresent:
		amount = rate.Amount * float64(present)
	default:
		return 0, fmt.Sprintf("unknown rate type %q", rate.RateType)
	}
	if amount <= 0 {
		return 0, "non-positive amount"
	}
	return amount, ""
}

// CreateRate validates and stores a new pay rate definition.
func (s *Service) CreateRate(ctx context.Context, p PayRate) (PayRate, error) {
	if p.RateType != RatePerLesson && p.RateType != RatePerPresent {
		return PayRate{}, errors.New("rate_type must be PER_LESSON or PER_PRESENT")
	}
	if p.Amount <= 0 {
		return PayRate{}, errors.New("amount must be positive")
	}
	if p.ActiveTo != nil && p.ActiveTo.Before(p.ActiveFrom) {
		return PayRate{}, errors.New("active_to before active_from")
	}
	return s.repo.InsertRate(ctx, p)
}

// CreateManual stores an operator-entered payout line.
func (s *Service) CreateManual(ctx context.Context, teacherID int64, occurrenceID string, amount float64, note *string) (CompensationRecord, error) {
	if amount <= 0 {
		return CompensationRecord{}, errors.New("amount must be positive")
	}
	return s.repo.InsertManualCompensation(ctx, CompensationRecord{
		TeacherID:    teacherID,
		OccurrenceID: occurrenceID,
		Amount:       amount,
		Note:         note,
	})
}
