// ABOUTME: Structured audit trail for gateway authorization decisions
// ABOUTME: One record per terminal request state, never containing token material

package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal state of one gateway request.
type Outcome string

const (
	OutcomeForwarded Outcome = "forwarded"
	OutcomeRejected  Outcome = "rejected"
)

// Entry is one audit record. Subject and Tenant come from the resolved
// capability and are empty when resolution itself failed. Raw tokens and
// the signing secret never appear in an Entry.
type Entry struct {
	ID        string
	Time      time.Time
	RequestID string
	Subject   string
	Tenant    string
	Operation string
	Outcome   Outcome
	Reason    string
	Status    int
}

// Recorder writes one entry per terminal request state to the structured
// log, and to the SQLite store when one is configured. A nil store means
// log-only auditing.
type Recorder struct {
	logger *slog.Logger
	store  *SQLiteStore
}

// NewRecorder creates a recorder over the given logger and optional store.
func NewRecorder(logger *slog.Logger, store *SQLiteStore) *Recorder {
	return &Recorder{logger: logger.With("component", "audit"), store: store}
}

// Record stamps and emits an entry. Store failures are logged, not
// propagated: audit persistence must never turn an authorized request
// into a failure.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	r.logger.Info("request decision",
		"outcome", string(e.Outcome),
		"reason", e.Reason,
		"subject", e.Subject,
		"tenant", e.Tenant,
		"operation", e.Operation,
		"status", e.Status,
		"request_id", e.RequestID,
	)

	if r.store == nil {
		return
	}
	if err := r.store.Insert(ctx, e); err != nil {
		r.logger.Error("persisting audit entry", "error", err, "request_id", e.RequestID)
	}
}
