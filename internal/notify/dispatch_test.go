package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/push"
	"github.com/scorepredictor/live-data/internal/subscription"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

// memLedger mirrors the claim semantics of the database ledger: first
// (marker, user) claim wins, repeats return false.
type memLedger struct {
	mu      sync.Mutex
	claims  map[string]bool
	failFor map[string]error
}

func newMemLedger() *memLedger {
	return &memLedger{claims: make(map[string]bool), failFor: make(map[string]error)}
}

func (l *memLedger) TryClaim(_ context.Context, markerID, _, userID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failFor[userID]; err != nil {
		return false, err
	}
	key := markerID + "|" + userID
	if l.claims[key] {
		return false, nil
	}
	l.claims[key] = true
	return true, nil
}

func (l *memLedger) rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.claims)
}

type fakeResolver struct {
	users          []string
	broadcastCalls int
	resolveCalls   int
}

func (r *fakeResolver) Resolve(_ context.Context, _ event.Event) ([]string, error) {
	r.resolveCalls++
	return r.users, nil
}

func (r *fakeResolver) ResolveBroadcast(_ context.Context, ev event.Event, base []string) ([]string, error) {
	r.broadcastCalls++
	out := make([]string, 0, len(base))
	for _, u := range base {
		if ev.Kind == event.KindChatMessage && u == ev.AuthorID {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// passValidator returns one endpoint per user, except users in optedOut.
type passValidator struct {
	optedOut map[string]bool
	batches  [][]string
}

func (v *passValidator) EligibleBatch(_ context.Context, userIDs []string, _ string) (map[string][]subscription.Subscription, error) {
	v.batches = append(v.batches, userIDs)
	out := make(map[string][]subscription.Subscription)
	for _, u := range userIDs {
		if v.optedOut[u] {
			continue
		}
		out[u] = []subscription.Subscription{{EndpointID: "ep-" + u, UserID: u, IsActive: true}}
	}
	return out, nil
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error
}

func (s *fakeSender) Send(_ context.Context, endpointID string, _ push.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[endpointID]; err != nil {
		return err
	}
	s.sent = append(s.sent, endpointID)
	return nil
}

func (s *fakeSender) endpoints() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

type fakeSubs struct {
	active      []string
	deactivated []string
	mu          sync.Mutex
}

func (s *fakeSubs) UsersWithActiveSubscription(_ context.Context) ([]string, error) {
	return s.active, nil
}

func (s *fakeSubs) Deactivate(_ context.Context, endpointID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deactivated = append(s.deactivated, endpointID)
	return nil
}

func goalEvent() event.Event {
	return event.Event{
		Kind:       event.KindGoal,
		MarkerID:   "goal:419:1-0",
		ExternalID: 419,
		Gameweek:   7,
		HomeTeam:   "Arsenal",
		AwayTeam:   "Spurs",
		HomeScore:  1,
	}
}

func newTestDispatcher(ledger Ledger, resolver Resolver, validator Validator, sender Sender, subs Broadcasters) *Dispatcher {
	return NewDispatcher(ledger, resolver, validator, sender, subs, 4, time.Second, nil)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestDispatch_FanOut(t *testing.T) {
	ledger := newMemLedger()
	sender := &fakeSender{}
	d := newTestDispatcher(ledger,
		&fakeResolver{users: []string{"alice", "bob", "carol"}},
		&passValidator{}, sender, &fakeSubs{})

	require.NoError(t, d.Dispatch(context.Background(), goalEvent()))
	assert.ElementsMatch(t, []string{"ep-alice", "ep-bob", "ep-carol"}, sender.endpoints())
	assert.Equal(t, 3, ledger.rows())
}

func TestDispatch_RedeliveryIsAbsorbed(t *testing.T) {
	// The same event dispatched twice must not reach anyone twice.
	ledger := newMemLedger()
	sender := &fakeSender{}
	d := newTestDispatcher(ledger,
		&fakeResolver{users: []string{"alice", "bob"}},
		&passValidator{}, sender, &fakeSubs{})

	ctx := context.Background()
	require.NoError(t, d.Dispatch(ctx, goalEvent()))
	require.NoError(t, d.Dispatch(ctx, goalEvent()))

	assert.Len(t, sender.endpoints(), 2)
	assert.Equal(t, 2, ledger.rows())
}

func TestDispatch_PartialClaimReplay(t *testing.T) {
	// alice was claimed by an earlier delivery; the replay must still reach
	// bob without re-notifying alice.
	ledger := newMemLedger()
	_, err := ledger.TryClaim(context.Background(), "goal:419:1-0", event.KindGoal, "alice")
	require.NoError(t, err)

	sender := &fakeSender{}
	validator := &passValidator{}
	d := newTestDispatcher(ledger,
		&fakeResolver{users: []string{"alice", "bob"}},
		validator, sender, &fakeSubs{})

	require.NoError(t, d.Dispatch(context.Background(), goalEvent()))

	assert.Equal(t, []string{"ep-bob"}, sender.endpoints())
	require.Len(t, validator.batches, 1)
	assert.Equal(t, []string{"bob"}, validator.batches[0])
}

func TestDispatch_ClaimErrorIsolatesRecipient(t *testing.T) {
	// A ledger failure for one recipient skips that recipient only. The
	// claim was not recorded, so a later replay can still reach them.
	ledger := newMemLedger()
	ledger.failFor["bob"] = errors.New("connection reset")

	sender := &fakeSender{}
	d := newTestDispatcher(ledger,
		&fakeResolver{users: []string{"alice", "bob"}},
		&passValidator{}, sender, &fakeSubs{})

	require.NoError(t, d.Dispatch(context.Background(), goalEvent()))
	assert.Equal(t, []string{"ep-alice"}, sender.endpoints())
	assert.Equal(t, 1, ledger.rows())
}

func TestDispatch_SendFailureDoesNotFailDispatch(t *testing.T) {
	// Claims are consumed before the send attempt. A transport failure is
	// final for that recipient, and the rest of the fan-out proceeds.
	ledger := newMemLedger()
	sender := &fakeSender{failFor: map[string]error{"ep-bob": errors.New("timeout")}}
	d := newTestDispatcher(ledger,
		&fakeResolver{users: []string{"alice", "bob", "carol"}},
		&passValidator{}, sender, &fakeSubs{})

	require.NoError(t, d.Dispatch(context.Background(), goalEvent()))
	assert.ElementsMatch(t, []string{"ep-alice", "ep-carol"}, sender.endpoints())
	assert.Equal(t, 3, ledger.rows())

	// Replay after the outage: bob's claim is already spent.
	require.NoError(t, d.Dispatch(context.Background(), goalEvent()))
	assert.ElementsMatch(t, []string{"ep-alice", "ep-carol"}, sender.endpoints())
}

func TestDispatch_RejectedEndpointIsDeactivated(t *testing.T) {
	ledger := newMemLedger()
	sender := &fakeSender{failFor: map[string]error{"ep-alice": push.ErrRejected}}
	subs := &fakeSubs{}
	d := newTestDispatcher(ledger,
		&fakeResolver{users: []string{"alice"}},
		&passValidator{}, sender, subs)

	require.NoError(t, d.Dispatch(context.Background(), goalEvent()))
	assert.Equal(t, []string{"ep-alice"}, subs.deactivated)
}

func TestDispatch_OptedOutRecipientGetsNothing(t *testing.T) {
	// Kickoff with two pick holders, one opted out of score updates:
	// exactly one send, and the opt-out still consumes a ledger claim so a
	// later opt-in does not replay old events.
	ledger := newMemLedger()
	sender := &fakeSender{}
	d := newTestDispatcher(ledger,
		&fakeResolver{users: []string{"alice", "bob"}},
		&passValidator{optedOut: map[string]bool{"bob": true}},
		sender, &fakeSubs{})

	ev := event.Event{Kind: event.KindKickoff, MarkerID: "kickoff:419", ExternalID: 419, Gameweek: 7}
	require.NoError(t, d.Dispatch(context.Background(), ev))

	assert.Equal(t, []string{"ep-alice"}, sender.endpoints())
	assert.Equal(t, 2, ledger.rows())
}

func TestDispatch_BroadcastExcludesChatAuthor(t *testing.T) {
	ledger := newMemLedger()
	sender := &fakeSender{}
	resolver := &fakeResolver{}
	subs := &fakeSubs{active: []string{"alice", "bob", "carol"}}
	d := newTestDispatcher(ledger, resolver, &passValidator{}, sender, subs)

	ev := event.Event{
		Kind:     event.KindChatMessage,
		MarkerID: "chat-message:7:msg-1",
		Gameweek: 7,
		AuthorID: "bob",
		Preview:  "who is captaining Haaland?",
	}
	require.NoError(t, d.Dispatch(context.Background(), ev))

	assert.ElementsMatch(t, []string{"ep-alice", "ep-carol"}, sender.endpoints())
	assert.Equal(t, 1, resolver.broadcastCalls)
	assert.Zero(t, resolver.resolveCalls)
}

func TestDispatch_NoRecipientsIsNoop(t *testing.T) {
	ledger := newMemLedger()
	sender := &fakeSender{}
	d := newTestDispatcher(ledger, &fakeResolver{}, &passValidator{}, sender, &fakeSubs{})

	require.NoError(t, d.Dispatch(context.Background(), goalEvent()))
	assert.Empty(t, sender.endpoints())
	assert.Zero(t, ledger.rows())
}
