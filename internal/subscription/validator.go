package subscription

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/push"
)

// Subscriptions is the slice of the store the validator needs.
type Subscriptions interface {
	ActiveForUser(ctx context.Context, userID string) ([]Subscription, error)
	ActiveForUsers(ctx context.Context, userIDs []string) ([]Subscription, error)
	AllActive(ctx context.Context) ([]Subscription, error)
	Deactivate(ctx context.Context, endpointID string) error
	MarkChecked(ctx context.Context, endpointID string, subscribedRemotely bool) error
}

// Preferences reads per-user opt-outs in one batch call.
type Preferences interface {
	PreferencesFor(ctx context.Context, userIDs []string) (map[string]map[string]bool, error)
}

// StatusChecker is the slice of the delivery transport the validator needs.
type StatusChecker interface {
	Status(ctx context.Context, endpointID string) (push.EndpointStatus, error)
}

// Validator decides which endpoints an event may be delivered to, and
// reconciles local active state against the transport's answer. Fail-open
// for ambiguous transport states ("still initializing", unreachable),
// fail-closed only on explicit rejection.
type Validator struct {
	subs      Subscriptions
	prefs     Preferences
	transport StatusChecker
	logger    *slog.Logger
}

// NewValidator creates a validator.
func NewValidator(subs Subscriptions, prefs Preferences, transport StatusChecker, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{subs: subs, prefs: prefs, transport: transport, logger: logger}
}

// Eligible returns the deliverable endpoints for one user and kind.
func (v *Validator) Eligible(ctx context.Context, userID, kind string) ([]Subscription, error) {
	byUser, err := v.EligibleBatch(ctx, []string{userID}, kind)
	if err != nil {
		return nil, err
	}
	return byUser[userID], nil
}

// EligibleBatch resolves endpoints for a fan-out in bulk: one preference
// read, one subscription query, and one remote status check per endpoint;
// never one round-trip per (user, event) pair.
//
// The preference check runs first and short-circuits: a user opted out of
// the kind costs no transport calls at all.
func (v *Validator) EligibleBatch(ctx context.Context, userIDs []string, kind string) (map[string][]Subscription, error) {
	if len(userIDs) == 0 {
		return map[string][]Subscription{}, nil
	}

	prefs, err := v.prefs.PreferencesFor(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	prefKey := event.PreferenceKey(kind)
	wanted := make([]string, 0, len(userIDs))
	for _, u := range userIDs {
		if enabled, ok := prefs[u][prefKey]; ok && !enabled {
			continue // opted out, default is enabled when absent
		}
		wanted = append(wanted, u)
	}
	if len(wanted) == 0 {
		return map[string][]Subscription{}, nil
	}

	subs, err := v.subs.ActiveForUsers(ctx, wanted)
	if err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}

	result := make(map[string][]Subscription)
	for _, sub := range subs {
		ok, err := v.checkEndpoint(ctx, sub)
		if err != nil {
			return nil, err
		}
		if ok {
			result[sub.UserID] = append(result[sub.UserID], sub)
		}
	}
	return result, nil
}

// ValidateAll sweeps every active endpoint against the transport. Run
// periodically so endpoints dropped out-of-band stop receiving fan-out.
func (v *Validator) ValidateAll(ctx context.Context) (checked, deactivated int, err error) {
	subs, err := v.subs.AllActive(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list active subscriptions: %w", err)
	}

	for _, sub := range subs {
		ok, cerr := v.checkEndpoint(ctx, sub)
		if cerr != nil {
			return checked, deactivated, cerr
		}
		checked++
		if !ok {
			deactivated++
		}
	}
	return checked, deactivated, nil
}

// checkEndpoint asks the transport about one endpoint and reconciles local
// state. Returns whether the endpoint is eligible for delivery.
func (v *Validator) checkEndpoint(ctx context.Context, sub Subscription) (bool, error) {
	status, err := v.transport.Status(ctx, sub.EndpointID)
	if err != nil {
		// Unreachable transport is ambiguous, not a rejection.
		v.logger.Warn("transport status check failed, keeping endpoint",
			"endpoint_id", sub.EndpointID, "error", err)
		return true, nil
	}

	rejected := status.Invalid ||
		(status.Deliverable != nil && !*status.Deliverable)
	if rejected {
		if err := v.subs.Deactivate(ctx, sub.EndpointID); err != nil {
			return false, fmt.Errorf("deactivate %s: %w", sub.EndpointID, err)
		}
		v.logger.Info("endpoint rejected by transport, deactivated",
			"endpoint_id", sub.EndpointID, "user_id", sub.UserID)
		return false, nil
	}

	subscribed := status.Deliverable != nil && *status.Deliverable
	if err := v.subs.MarkChecked(ctx, sub.EndpointID, subscribed); err != nil {
		v.logger.Warn("mark checked failed", "endpoint_id", sub.EndpointID, "error", err)
	}
	return true, nil
}
