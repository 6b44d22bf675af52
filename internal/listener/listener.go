// Package listener provides a Postgres LISTEN/NOTIFY consumer for score
// changes written outside this process. It holds a dedicated pgx connection
// (not from the pool) listening on the `score_updated` channel.
//
// The trigger payload is {"new": row, "old": row}; but `old` is dropped
// when the combined payload would exceed the pg_notify size cap, so the
// classifier's ledger-based reconstruction must handle its absence.
// Delivery is at-least-once; the dedup ledger absorbs redeliveries,
// including changes the poller already handled in-process.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/scorepredictor/live-data/internal/score"
)

const (
	channel          = "score_updated"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// scoreRow mirrors the score_records columns as row_to_json renders them.
type scoreRow struct {
	ExternalID   int    `json:"external_id"`
	Gameweek     int    `json:"gameweek"`
	FixtureIndex int    `json:"fixture_index"`
	HomeScore    int    `json:"home_score"`
	AwayScore    int    `json:"away_score"`
	Status       string `json:"status"`
	Minute       int    `json:"minute"`
}

// ChangeEvent is the JSON payload from pg_notify('score_updated', ...).
type ChangeEvent struct {
	New scoreRow  `json:"new"`
	Old *scoreRow `json:"old"`
}

// Fixtures resolves fixture metadata for event payloads.
type Fixtures interface {
	FixtureByExternalID(ctx context.Context, externalID int) (*score.Fixture, error)
}

// Handler receives each decoded change. old is nil when the trigger dropped
// the old record.
type Handler func(ctx context.Context, fixture score.Fixture, old *score.Record, latest score.Record)

// Start opens a dedicated connection and listens on the score_updated
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, fixtures Fixtures, handle Handler, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, fixtures, handle, logger)
		if ctx.Err() != nil {
			logger.Info("Score listener stopped (context cancelled)")
			return
		}

		logger.Error("Score listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, fixtures Fixtures, handle Handler, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Score listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var change ChangeEvent
		if err := json.Unmarshal([]byte(notification.Payload), &change); err != nil {
			logger.Warn("Failed to parse score event",
				"payload", notification.Payload, "error", err)
			continue
		}

		// Different fixtures are independent; process off the listen loop.
		go handleChange(ctx, fixtures, handle, change, logger)
	}
}

func handleChange(ctx context.Context, fixtures Fixtures, handle Handler, change ChangeEvent, logger *slog.Logger) {
	fixture, err := fixtures.FixtureByExternalID(ctx, change.New.ExternalID)
	if err != nil {
		logger.Warn("fixture lookup failed for score event",
			"external_id", change.New.ExternalID, "error", err)
		return
	}
	if fixture == nil {
		logger.Warn("score event for unknown fixture", "external_id", change.New.ExternalID)
		return
	}

	latest := toRecord(change.New)
	var old *score.Record
	if change.Old != nil {
		r := toRecord(*change.Old)
		if r.Equal(latest) {
			return // no observable change
		}
		old = &r
	}

	handle(ctx, *fixture, old, latest)
}

func toRecord(row scoreRow) score.Record {
	return score.Record{
		ExternalID:   row.ExternalID,
		Gameweek:     row.Gameweek,
		FixtureIndex: row.FixtureIndex,
		HomeScore:    row.HomeScore,
		AwayScore:    row.AwayScore,
		Status:       row.Status,
		Minute:       row.Minute,
	}
}
