// Package subscription owns push endpoint registrations and the validator
// that reconciles local "active" state against the delivery transport.
package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Subscription is one registered push endpoint. The registration flow writes
// new rows; the validator is the sole writer of is_active,
// is_subscribed_remotely, and last_checked_at thereafter.
type Subscription struct {
	EndpointID           string
	UserID               string
	Platform             string
	IsActive             bool
	IsSubscribedRemotely bool
	LastCheckedAt        time.Time
}

// Store reads and writes subscription rows.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a subscription store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ActiveForUser returns a user's active endpoints.
func (s *Store) ActiveForUser(ctx context.Context, userID string) ([]Subscription, error) {
	return s.scan(ctx, "active_subscriptions_for_user", userID)
}

// ActiveForUsers returns active endpoints for a batch of users in one query.
func (s *Store) ActiveForUsers(ctx context.Context, userIDs []string) ([]Subscription, error) {
	return s.scan(ctx, "active_subscriptions_for_users", userIDs)
}

// AllActive returns every active endpoint. Used by the revalidation sweep.
func (s *Store) AllActive(ctx context.Context) ([]Subscription, error) {
	return s.scan(ctx, "all_active_subscriptions")
}

// UsersWithActiveSubscription returns the broadcast base set.
func (s *Store) UsersWithActiveSubscription(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "users_with_active_subscription")
	if err != nil {
		return nil, fmt.Errorf("users with active subscription: %w", err)
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

// Insert registers a new endpoint as active.
func (s *Store) Insert(ctx context.Context, sub Subscription) error {
	_, err := s.pool.Exec(ctx, "insert_subscription",
		sub.EndpointID, sub.UserID, sub.Platform, sub.IsSubscribedRemotely)
	if err != nil {
		return fmt.Errorf("insert subscription %s: %w", sub.EndpointID, err)
	}
	return nil
}

// Deactivate flips is_active off. Permanent until the endpoint re-registers.
func (s *Store) Deactivate(ctx context.Context, endpointID string) error {
	_, err := s.pool.Exec(ctx, "deactivate_subscription", endpointID)
	if err != nil {
		return fmt.Errorf("deactivate %s: %w", endpointID, err)
	}
	return nil
}

// MarkChecked stamps the remote state observed by the validator.
func (s *Store) MarkChecked(ctx context.Context, endpointID string, subscribedRemotely bool) error {
	_, err := s.pool.Exec(ctx, "mark_subscription_checked", endpointID, subscribedRemotely)
	if err != nil {
		return fmt.Errorf("mark checked %s: %w", endpointID, err)
	}
	return nil
}

func (s *Store) scan(ctx context.Context, stmt string, args ...any) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stmt, err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(
			&sub.EndpointID, &sub.UserID, &sub.Platform,
			&sub.IsActive, &sub.IsSubscribedRemotely, &sub.LastCheckedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
