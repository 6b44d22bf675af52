// Package recipient resolves which users an event fans out to.
//
// Fixture-scoped kinds go to users holding a pick against the fixture,
// gameweek-scoped kinds to anyone with a pick in the gameweek, and broadcast
// kinds to every user with an active subscription; the caller supplies that
// base set since subscriptions are not this package's concern.
//
// Per-user exceptions live in the recipient_exclusions table, not in code.
package recipient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scorepredictor/live-data/internal/event"
)

// PredictionStore is the external pick-ownership collaborator, read-only.
type PredictionStore interface {
	PicksFor(ctx context.Context, fixtureExternalID int) ([]string, error)
	PicksForGameweek(ctx context.Context, gameweek int) ([]string, error)
}

// Exclusions reads the data-driven exclusion table. kind "*" rows apply to
// every kind.
type Exclusions interface {
	ExcludedFor(ctx context.Context, kind string) (map[string]bool, error)
}

// Resolver computes recipient sets per event.
type Resolver struct {
	picks      PredictionStore
	exclusions Exclusions
	logger     *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(picks PredictionStore, exclusions Exclusions, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{picks: picks, exclusions: exclusions, logger: logger}
}

// Resolve returns the recipient set for a fixture- or gameweek-scoped event.
// Broadcast kinds must go through ResolveBroadcast instead.
func (r *Resolver) Resolve(ctx context.Context, ev event.Event) ([]string, error) {
	var users []string
	var err error

	switch {
	case event.FixtureScoped(ev.Kind):
		users, err = r.picks.PicksFor(ctx, ev.ExternalID)
	case ev.Kind == event.KindGWResults:
		users, err = r.picks.PicksForGameweek(ctx, ev.Gameweek)
	default:
		return nil, fmt.Errorf("kind %s is broadcast-scoped, use ResolveBroadcast", ev.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ev.Kind, err)
	}

	return r.filter(ctx, ev, users)
}

// ResolveBroadcast filters a caller-supplied base set (users with an active
// subscription) for a broadcast event. For chat messages the author is
// always removed; a hard rule, not a preference.
func (r *Resolver) ResolveBroadcast(ctx context.Context, ev event.Event, base []string) ([]string, error) {
	return r.filter(ctx, ev, base)
}

func (r *Resolver) filter(ctx context.Context, ev event.Event, users []string) ([]string, error) {
	excluded, err := r.exclusions.ExcludedFor(ctx, ev.Kind)
	if err != nil {
		return nil, fmt.Errorf("load exclusions for %s: %w", ev.Kind, err)
	}

	seen := make(map[string]bool, len(users))
	result := make([]string, 0, len(users))
	for _, u := range users {
		if seen[u] || excluded[u] {
			continue
		}
		if ev.Kind == event.KindChatMessage && u == ev.AuthorID {
			continue
		}
		seen[u] = true
		result = append(result, u)
	}
	return result, nil
}
