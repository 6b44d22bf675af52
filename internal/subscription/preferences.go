package subscription

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PreferenceStore reads per-user per-kind opt-outs. Absent rows mean
// enabled; preferences are an opt-out model.
type PreferenceStore struct {
	pool *pgxpool.Pool
}

// NewPreferenceStore creates a pgx-backed preference reader.
func NewPreferenceStore(pool *pgxpool.Pool) *PreferenceStore {
	return &PreferenceStore{pool: pool}
}

// PreferencesFor returns kind→enabled maps for a batch of users. Users with
// no rows are simply absent from the result.
func (s *PreferenceStore) PreferencesFor(ctx context.Context, userIDs []string) (map[string]map[string]bool, error) {
	rows, err := s.pool.Query(ctx, "preferences_for_users", userIDs)
	if err != nil {
		return nil, fmt.Errorf("preferences for users: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]map[string]bool)
	for rows.Next() {
		var userID, kind string
		var enabled bool
		if err := rows.Scan(&userID, &kind, &enabled); err != nil {
			return nil, fmt.Errorf("scan preference: %w", err)
		}
		if prefs[userID] == nil {
			prefs[userID] = make(map[string]bool)
		}
		prefs[userID][kind] = enabled
	}
	return prefs, rows.Err()
}
