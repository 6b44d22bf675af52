package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/metrics"
	"github.com/scorepredictor/live-data/internal/push"
	"github.com/scorepredictor/live-data/internal/subscription"
)

// Ledger claims dedup markers per recipient.
type Ledger interface {
	TryClaim(ctx context.Context, markerID, kind, userID string) (bool, error)
}

// Resolver computes recipient sets.
type Resolver interface {
	Resolve(ctx context.Context, ev event.Event) ([]string, error)
	ResolveBroadcast(ctx context.Context, ev event.Event, base []string) ([]string, error)
}

// Validator filters recipients down to deliverable endpoints.
type Validator interface {
	EligibleBatch(ctx context.Context, userIDs []string, kind string) (map[string][]subscription.Subscription, error)
}

// Sender is the slice of the delivery transport the dispatcher needs.
type Sender interface {
	Send(ctx context.Context, endpointID string, msg push.Message) error
}

// Broadcasters supplies the base set for broadcast kinds and deactivation
// on send-time rejection.
type Broadcasters interface {
	UsersWithActiveSubscription(ctx context.Context) ([]string, error)
	Deactivate(ctx context.Context, endpointID string) error
}

// Dispatcher fans one event out to its recipients.
//
// The ledger claim happens before the send attempt completes, and a failed
// send never rolls the claim back: the design trades "never double-notify"
// for "may rarely under-notify" during transport outages.
type Dispatcher struct {
	ledger    Ledger
	resolver  Resolver
	validator Validator
	sender    Sender
	subs      Broadcasters
	workers   int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. workers bounds concurrent outbound
// sends; timeout caps each individual send.
func NewDispatcher(ledger Ledger, resolver Resolver, validator Validator, sender Sender, subs Broadcasters, workers int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ledger:    ledger,
		resolver:  resolver,
		validator: validator,
		sender:    sender,
		subs:      subs,
		workers:   workers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Dispatch delivers one event: resolve → claim → validate → send.
// Per-recipient failures are logged and counted, never propagated; one
// recipient failing must not starve the rest of the fan-out.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Event) error {
	recipients, err := d.resolveRecipients(ctx, ev)
	if err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	// Claim per recipient. An already-claimed pair means this recipient was
	// handled by an earlier delivery of the same change.
	claimed := make([]string, 0, len(recipients))
	for _, userID := range recipients {
		ok, cerr := d.ledger.TryClaim(ctx, ev.MarkerID, ev.Kind, userID)
		if cerr != nil {
			d.logger.Warn("ledger claim failed, skipping recipient",
				"marker", ev.MarkerID, "user_id", userID, "error", cerr)
			continue
		}
		if ok {
			claimed = append(claimed, userID)
		}
	}
	if len(claimed) == 0 {
		return nil
	}

	eligible, err := d.validator.EligibleBatch(ctx, claimed, ev.Kind)
	if err != nil {
		return fmt.Errorf("validate recipients for %s: %w", ev.MarkerID, err)
	}

	msg := Compose(ev)

	g := new(errgroup.Group)
	g.SetLimit(d.workers)
	sent := 0
	for userID, subs := range eligible {
		for _, sub := range subs {
			sub := sub
			userID := userID
			sent++
			g.Go(func() error {
				d.send(ctx, ev, userID, sub.EndpointID, msg)
				return nil
			})
		}
	}
	_ = g.Wait()

	d.logger.Info("event dispatched",
		"kind", ev.Kind, "marker", ev.MarkerID,
		"resolved", len(recipients), "claimed", len(claimed), "endpoints", sent)
	return nil
}

func (d *Dispatcher) resolveRecipients(ctx context.Context, ev event.Event) ([]string, error) {
	if !event.Broadcast(ev.Kind) {
		users, err := d.resolver.Resolve(ctx, ev)
		if err != nil {
			return nil, fmt.Errorf("resolve recipients for %s: %w", ev.MarkerID, err)
		}
		return users, nil
	}

	base, err := d.subs.UsersWithActiveSubscription(ctx)
	if err != nil {
		return nil, fmt.Errorf("broadcast base for %s: %w", ev.MarkerID, err)
	}
	users, err := d.resolver.ResolveBroadcast(ctx, ev, base)
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast for %s: %w", ev.MarkerID, err)
	}
	return users, nil
}

// send delivers to one endpoint with a bounded timeout. Failures are final:
// the dedup claim has already been consumed, so there is no inline retry.
func (d *Dispatcher) send(ctx context.Context, ev event.Event, userID, endpointID string, msg push.Message) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.sender.Send(sendCtx, endpointID, msg)
	switch {
	case err == nil:
		metrics.PushSends.WithLabelValues(ev.Kind, "sent").Inc()
	case errors.Is(err, push.ErrRejected):
		metrics.PushSends.WithLabelValues(ev.Kind, "rejected").Inc()
		d.logger.Info("endpoint rejected at send, deactivating",
			"endpoint_id", endpointID, "user_id", userID)
		if derr := d.subs.Deactivate(ctx, endpointID); derr != nil {
			d.logger.Warn("deactivate failed", "endpoint_id", endpointID, "error", derr)
		}
	default:
		metrics.PushSends.WithLabelValues(ev.Kind, "failed").Inc()
		d.logger.Warn("send failed",
			"kind", ev.Kind, "marker", ev.MarkerID,
			"endpoint_id", endpointID, "user_id", userID, "error", err)
	}
}
