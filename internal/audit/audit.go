// Package audit records entity changes on a side channel. Writes are
// observable in logs and metrics but can never fail the operation being
// audited, so Record returns nothing.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"

	"classping/internal/metrics"
)

// Entry describes one recorded change.
type Entry struct {
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Details    any
}

// Recorder writes entries to the audit log.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a recorder.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record writes one entry, swallowing failures after logging and counting
// them.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	var details []byte
	if e.Details != nil {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			log.Printf("audit: marshal details for %s %s: %v", e.Action, e.EntityType, err)
			metrics.AuditFailures.Inc()
			details = nil
		}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (actor, action, entity_type, entity_id, details)
		VALUES ($1, $2, $3, $4, $5)
	`, e.Actor, e.Action, e.EntityType, e.EntityID, details)
	if err != nil {
		log.Printf("audit: record %s %s/%s: %v", e.Action, e.EntityType, e.EntityID, err)
		metrics.AuditFailures.Inc()
	}
}
