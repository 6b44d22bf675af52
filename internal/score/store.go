package score

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store reads and writes score records and the fixture schedule.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a score store over the shared pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Get returns the score record for an external match id, or nil if none
// has been written yet.
func (s *Store) Get(ctx context.Context, externalID int) (*Record, error) {
	var r Record
	err := s.pool.QueryRow(ctx, "score_by_external_id", externalID).Scan(
		&r.ExternalID, &r.Gameweek, &r.FixtureIndex,
		&r.HomeScore, &r.AwayScore, &r.Status, &r.Minute, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get score %d: %w", externalID, err)
	}
	return &r, nil
}

// Upsert writes the new state for a fixture and returns the previously
// stored record (nil on first write). The caller feeds (old, new) into the
// classifier; the dedup ledger makes it harmless that the score_updated
// trigger delivers the same change a second time via LISTEN/NOTIFY.
func (s *Store) Upsert(ctx context.Context, r Record) (*Record, error) {
	old, err := s.Get(ctx, r.ExternalID)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, "upsert_score",
		r.ExternalID, r.Gameweek, r.FixtureIndex,
		r.HomeScore, r.AwayScore, r.Status, r.Minute,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert score %d: %w", r.ExternalID, err)
	}
	return old, nil
}

// PollableFixtures returns fixtures eligible for a poll tick: kickoff has
// passed (or is unrecorded; polled anyway as a conservative default) and
// the last known status is not FINISHED.
func (s *Store) PollableFixtures(ctx context.Context) ([]Fixture, error) {
	rows, err := s.pool.Query(ctx, "pollable_fixtures")
	if err != nil {
		return nil, fmt.Errorf("pollable fixtures: %w", err)
	}
	defer rows.Close()

	var fixtures []Fixture
	for rows.Next() {
		var f Fixture
		if err := rows.Scan(
			&f.ID, &f.ExternalID, &f.Gameweek, &f.FixtureIndex,
			&f.HomeTeam, &f.AwayTeam, &f.KickoffAt, &f.LastStatus,
		); err != nil {
			return nil, fmt.Errorf("scan fixture: %w", err)
		}
		fixtures = append(fixtures, f)
	}
	return fixtures, rows.Err()
}

// FixtureByExternalID returns the fixture row for a provider match id.
func (s *Store) FixtureByExternalID(ctx context.Context, externalID int) (*Fixture, error) {
	var f Fixture
	err := s.pool.QueryRow(ctx, "fixture_by_external_id", externalID).Scan(
		&f.ID, &f.ExternalID, &f.Gameweek, &f.FixtureIndex,
		&f.HomeTeam, &f.AwayTeam, &f.KickoffAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fixture %d: %w", externalID, err)
	}
	return &f, nil
}

// UpsertFixture writes one fixture schedule row. Reports whether the row
// was newly inserted rather than updated.
func (s *Store) UpsertFixture(ctx context.Context, f Fixture) (bool, error) {
	var inserted bool
	err := s.pool.QueryRow(ctx, "upsert_fixture",
		f.ExternalID, f.Gameweek, f.FixtureIndex,
		f.HomeTeam, f.AwayTeam, f.KickoffAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert fixture %d: %w", f.ExternalID, err)
	}
	return inserted, nil
}

// UnfinishedInGameweek counts fixtures in a gameweek not yet FINISHED.
func (s *Store) UnfinishedInGameweek(ctx context.Context, gameweek int) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "unfinished_in_gameweek", gameweek).Scan(&n); err != nil {
		return 0, fmt.Errorf("unfinished in gameweek %d: %w", gameweek, err)
	}
	return n, nil
}
