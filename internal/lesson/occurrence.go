// Package lesson materializes and maintains concrete lesson occurrences from
// weekly schedules and their notify rules.
package lesson

import "time"

// Occurrence statuses. PLANNED is initial; COMPLETED, SKIPPED and CANCELLED
// are terminal.
const (
	StatusPlanned   = "PLANNED"
	StatusSent      = "SENT"
	StatusCompleted = "COMPLETED"
	StatusSkipped   = "SKIPPED"
	StatusCancelled = "CANCELLED"
)

// Occurrence is one dated instance of a recurring lesson.
type Occurrence struct {
	ID             string     `json:"id"`
	ScheduleID     int64      `json:"schedule_id"`
	Date           time.Time  `json:"date"`
	ClubID         *int64     `json:"club_id,omitempty"`
	TeacherID      int64      `json:"teacher_id"`
	Status         string     `json:"status"`
	StartAt        time.Time  `json:"start_at"`
	NotifyAt       time.Time  `json:"notify_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TeacherChatID  *int64     `json:"teacher_chat_id,omitempty"`
	SendAttempts   int        `json:"send_attempts"`
	LastError      *string    `json:"last_error,omitempty"`
	IdempotencyKey *string    `json:"idempotency_key,omitempty"`
	Payload        []byte     `json:"payload,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
