package recipient

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PickStore reads pick ownership from the predictions tables.
type PickStore struct {
	pool *pgxpool.Pool
}

// NewPickStore creates a pgx-backed prediction store.
func NewPickStore(pool *pgxpool.Pool) *PickStore {
	return &PickStore{pool: pool}
}

// PicksFor returns the users holding a pick against a fixture.
func (s *PickStore) PicksFor(ctx context.Context, fixtureExternalID int) ([]string, error) {
	return scanUserIDs(s.pool, ctx, "picks_for_fixture", fixtureExternalID)
}

// PicksForGameweek returns the users holding any pick in a gameweek.
func (s *PickStore) PicksForGameweek(ctx context.Context, gameweek int) ([]string, error) {
	return scanUserIDs(s.pool, ctx, "picks_for_gameweek", gameweek)
}

// UsersWithoutPick counts registered users missing a pick for the gameweek.
// Zero means everyone has submitted.
func (s *PickStore) UsersWithoutPick(ctx context.Context, gameweek int) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "users_without_pick_in_gameweek", gameweek).Scan(&n); err != nil {
		return 0, fmt.Errorf("users without pick gw %d: %w", gameweek, err)
	}
	return n, nil
}

// ExclusionStore reads the recipient_exclusions table.
type ExclusionStore struct {
	pool *pgxpool.Pool
}

// NewExclusionStore creates a pgx-backed exclusion reader.
func NewExclusionStore(pool *pgxpool.Pool) *ExclusionStore {
	return &ExclusionStore{pool: pool}
}

// ExcludedFor returns the users excluded from a kind, including wildcard
// rows.
func (s *ExclusionStore) ExcludedFor(ctx context.Context, kind string) (map[string]bool, error) {
	users, err := scanUserIDs(s.pool, ctx, "exclusions_for_kind", kind)
	if err != nil {
		return nil, err
	}
	excluded := make(map[string]bool, len(users))
	for _, u := range users {
		excluded[u] = true
	}
	return excluded, nil
}

func scanUserIDs(pool *pgxpool.Pool, ctx context.Context, stmt string, arg any) ([]string, error) {
	rows, err := pool.Query(ctx, stmt, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stmt, err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
