// Package db provides a pgxpool-based connection pool with prepared statement
// registration, embedded goose migrations, and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scorepredictor/live-data/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the pipeline uses.
// Prepared statements eliminate parse overhead on every poll tick.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Fixtures
		"pollable_fixtures": `
			SELECT f.id, f.external_id, f.gameweek, f.fixture_index,
			       f.home_team, f.away_team, f.kickoff_at,
			       COALESCE(s.status, 'SCHEDULED')
			FROM fixtures f
			LEFT JOIN score_records s ON s.external_id = f.external_id
			WHERE COALESCE(s.status, 'SCHEDULED') <> 'FINISHED'
			  AND (f.kickoff_at IS NULL OR f.kickoff_at <= NOW())
			ORDER BY f.gameweek, f.fixture_index`,
		"upsert_fixture": `
			INSERT INTO fixtures (
				external_id, gameweek, fixture_index, home_team, away_team, kickoff_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (external_id) DO UPDATE SET
				gameweek      = EXCLUDED.gameweek,
				fixture_index = EXCLUDED.fixture_index,
				home_team     = EXCLUDED.home_team,
				away_team     = EXCLUDED.away_team,
				kickoff_at    = EXCLUDED.kickoff_at
			RETURNING (xmax = 0)`,
		"fixture_by_external_id": `
			SELECT id, external_id, gameweek, fixture_index,
			       home_team, away_team, kickoff_at
			FROM fixtures WHERE external_id = $1`,
		"unfinished_in_gameweek": `
			SELECT COUNT(*)
			FROM fixtures f
			LEFT JOIN score_records s ON s.external_id = f.external_id
			WHERE f.gameweek = $1
			  AND COALESCE(s.status, 'SCHEDULED') <> 'FINISHED'`,
		"upcoming_gameweek": `
			SELECT gameweek FROM fixtures
			WHERE kickoff_at > NOW()
			ORDER BY kickoff_at
			LIMIT 1`,
		"next_unannounced_gameweek": `
			SELECT f.gameweek, MIN(f.kickoff_at)
			FROM fixtures f
			WHERE f.kickoff_at > NOW()
			  AND NOT EXISTS (
				SELECT 1 FROM dedup_markers m
				WHERE m.marker_id = 'new-gameweek:gw:' || f.gameweek
			  )
			GROUP BY f.gameweek
			ORDER BY f.gameweek
			LIMIT 1`,

		// Score records
		"score_by_external_id": `
			SELECT external_id, gameweek, fixture_index, home_score, away_score,
			       status, minute, updated_at
			FROM score_records WHERE external_id = $1`,
		"upsert_score": `
			INSERT INTO score_records (
				external_id, gameweek, fixture_index, home_score, away_score,
				status, minute, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
			ON CONFLICT (external_id) DO UPDATE SET
				gameweek = EXCLUDED.gameweek,
				fixture_index = EXCLUDED.fixture_index,
				home_score = EXCLUDED.home_score,
				away_score = EXCLUDED.away_score,
				status = EXCLUDED.status,
				minute = EXCLUDED.minute,
				updated_at = NOW()`,

		// Dedup ledger
		"claim_marker": `
			INSERT INTO dedup_markers (marker_id, kind, user_id, sent_at)
			VALUES ($1, $2, $3, NOW())
			ON CONFLICT (marker_id, user_id) DO NOTHING`,
		"marker_exists": `
			SELECT EXISTS (
				SELECT 1 FROM dedup_markers WHERE marker_id = $1
			)`,

		// Recipients
		"picks_for_fixture": `
			SELECT DISTINCT user_id FROM picks
			WHERE fixture_external_id = $1`,
		"picks_for_gameweek": `
			SELECT DISTINCT user_id FROM picks
			WHERE gameweek = $1`,
		"all_user_ids": `
			SELECT id FROM users`,
		"users_without_pick_in_gameweek": `
			SELECT COUNT(*) FROM users u
			WHERE NOT EXISTS (
				SELECT 1 FROM picks p
				WHERE p.user_id = u.id AND p.gameweek = $1
			)`,
		"exclusions_for_kind": `
			SELECT user_id FROM recipient_exclusions
			WHERE kind = $1 OR kind = '*'`,

		// Subscriptions
		"active_subscriptions_for_user": `
			SELECT endpoint_id, user_id, platform, is_active,
			       is_subscribed_remotely, last_checked_at
			FROM subscriptions WHERE user_id = $1 AND is_active = true`,
		"active_subscriptions_for_users": `
			SELECT endpoint_id, user_id, platform, is_active,
			       is_subscribed_remotely, last_checked_at
			FROM subscriptions WHERE user_id = ANY($1) AND is_active = true`,
		"all_active_subscriptions": `
			SELECT endpoint_id, user_id, platform, is_active,
			       is_subscribed_remotely, last_checked_at
			FROM subscriptions WHERE is_active = true`,
		"users_with_active_subscription": `
			SELECT DISTINCT user_id FROM subscriptions WHERE is_active = true`,
		"insert_subscription": `
			INSERT INTO subscriptions (
				endpoint_id, user_id, platform, is_active,
				is_subscribed_remotely, last_checked_at
			) VALUES ($1, $2, $3, true, $4, NOW())`,
		"deactivate_subscription": `
			UPDATE subscriptions
			SET is_active = false, last_checked_at = NOW()
			WHERE endpoint_id = $1`,
		"mark_subscription_checked": `
			UPDATE subscriptions
			SET is_subscribed_remotely = $2, last_checked_at = NOW()
			WHERE endpoint_id = $1`,

		// Preferences
		"preferences_for_users": `
			SELECT user_id, kind, enabled FROM notification_preferences
			WHERE user_id = ANY($1)`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
