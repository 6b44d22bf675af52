// Package ledger is the idempotency backbone of the pipeline: an append-only
// record of which (marker, recipient) pairs have already been dispatched.
//
// Polling observes the same transition more than once and LISTEN/NOTIFY is
// at-least-once, so duplicate input is the expected steady state. The
// uniqueness constraint on (marker_id, user_id) is the only concurrency
// control the pipeline needs; mutual exclusion as a conditional insert, no
// locks.
//
// Rows are never deleted by this subsystem; they double as the audit trail.
// Any backfill or replay tooling must write through TryClaim, never raw SQL,
// or "has this marker fired" stops being trustworthy.
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scorepredictor/live-data/internal/metrics"
)

// Ledger persists dedup markers in Postgres.
type Ledger struct {
	pool *pgxpool.Pool
}

// New creates a ledger over the shared pool.
func New(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// TryClaim records that markerID is being sent to userID. Returns false when
// the pair was already claimed; the caller skips that recipient. Claims are
// per recipient, not global: a send succeeding for user A and failing for
// user B must not block a later claim for B while still refusing to
// re-notify A.
func (l *Ledger) TryClaim(ctx context.Context, markerID, kind, userID string) (bool, error) {
	tag, err := l.pool.Exec(ctx, "claim_marker", markerID, kind, userID)
	if err != nil {
		metrics.LedgerClaims.WithLabelValues("error").Inc()
		return false, fmt.Errorf("claim marker %s for %s: %w", markerID, userID, err)
	}
	if tag.RowsAffected() == 0 {
		metrics.LedgerClaims.WithLabelValues("duplicate").Inc()
		return false, nil
	}
	metrics.LedgerClaims.WithLabelValues("claimed").Inc()
	return true, nil
}

// MarkerExists reports whether any recipient has ever been claimed for the
// marker. The classifier uses this to reconstruct prior match state when a
// change arrives without its old record.
func (l *Ledger) MarkerExists(ctx context.Context, markerID string) (bool, error) {
	var exists bool
	if err := l.pool.QueryRow(ctx, "marker_exists", markerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("marker exists %s: %w", markerID, err)
	}
	return exists, nil
}
