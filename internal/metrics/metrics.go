// Package metrics defines the prometheus counters shared by the api and
// worker binaries; both expose them through promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchSent counts attendance prompts delivered.
	DispatchSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classping_dispatch_sent_total",
		Help: "Attendance prompts sent.",
	})

	// DispatchSkipped counts occurrences terminalized without a send.
	DispatchSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classping_dispatch_skipped_total",
		Help: "Occurrences skipped at dispatch time.",
	})

	// DispatchFailed counts send attempts that will be retried.
	DispatchFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classping_dispatch_failed_total",
		Help: "Send attempts that failed and stayed planned.",
	})

	// InteractionToggles counts attendance toggles applied.
	InteractionToggles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classping_interaction_toggles_total",
		Help: "Attendance toggle interactions applied.",
	})

	// InteractionFinishes counts finalized occurrences.
	InteractionFinishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classping_interaction_finishes_total",
		Help: "Attendance sessions finalized.",
	})

	// InteractionDuplicates counts inbound events absorbed by the seen-store.
	InteractionDuplicates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classping_interaction_duplicates_total",
		Help: "Duplicate inbound interaction events dropped.",
	})

	// CleanupSwept counts occurrences skipped by the daily sweep.
	CleanupSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classping_cleanup_swept_total",
		Help: "Stale planned occurrences marked skipped.",
	})

	// CleanupDeleted counts occurrences removed by the weekly sweep.
	CleanupDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classping_cleanup_deleted_total",
		Help: "Occurrences deleted by maintenance.",
	})

	// AuditFailures counts audit writes that could not be recorded.
	AuditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classping_audit_failures_total",
		Help: "Audit log writes that failed.",
	})
)
