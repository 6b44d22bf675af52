package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/score"
)

type fakeClassifier struct {
	events []event.Event
	err    error
}

func (c *fakeClassifier) Classify(_ context.Context, _ score.Fixture, _ *score.Record, _ score.Record) ([]event.Event, error) {
	return c.events, c.err
}

type fakeCounter struct {
	unfinished int
	calls      int
}

func (c *fakeCounter) UnfinishedInGameweek(_ context.Context, _ int) (int, error) {
	c.calls++
	return c.unfinished, nil
}

func fullTimeEvent() event.Event {
	return event.Event{
		Kind:       event.KindFullTime,
		MarkerID:   "full-time:419",
		ExternalID: 419,
		Gameweek:   7,
	}
}

func TestHandle_DispatchesEachEvent(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(newMemLedger(), &fakeResolver{users: []string{"alice"}}, &passValidator{}, sender, &fakeSubs{})

	classifier := &fakeClassifier{events: []event.Event{
		{Kind: event.KindGoal, MarkerID: "goal:419:1-0", ExternalID: 419, Gameweek: 7},
		{Kind: event.KindGoal, MarkerID: "goal:419:2-0", ExternalID: 419, Gameweek: 7},
	}}
	counter := &fakeCounter{unfinished: 3}
	p := NewPipeline(classifier, counter, d, nil)

	p.Handle(context.Background(), score.Fixture{ExternalID: 419}, nil, score.Record{ExternalID: 419, Gameweek: 7})

	assert.Len(t, sender.endpoints(), 2)
	assert.Zero(t, counter.calls, "no full-time, no gameweek check")
}

func TestHandle_LastFullTimeEmitsGameweekResults(t *testing.T) {
	ledger := newMemLedger()
	sender := &fakeSender{}
	resolver := &fakeResolver{users: []string{"alice"}}
	d := newTestDispatcher(ledger, resolver, &passValidator{}, sender, &fakeSubs{})

	classifier := &fakeClassifier{events: []event.Event{fullTimeEvent()}}
	counter := &fakeCounter{unfinished: 0}
	p := NewPipeline(classifier, counter, d, nil)

	p.Handle(context.Background(), score.Fixture{ExternalID: 419}, nil, score.Record{ExternalID: 419, Gameweek: 7, Status: score.StatusFinished})

	// full-time to alice, then gw-results to alice.
	assert.Len(t, sender.endpoints(), 2)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, 2, ledger.rows())
}

func TestHandle_FullTimeWithUnfinishedFixturesSkipsResults(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(newMemLedger(), &fakeResolver{users: []string{"alice"}}, &passValidator{}, sender, &fakeSubs{})

	classifier := &fakeClassifier{events: []event.Event{fullTimeEvent()}}
	counter := &fakeCounter{unfinished: 2}
	p := NewPipeline(classifier, counter, d, nil)

	p.Handle(context.Background(), score.Fixture{ExternalID: 419}, nil, score.Record{ExternalID: 419, Gameweek: 7, Status: score.StatusFinished})

	assert.Len(t, sender.endpoints(), 1)
	assert.Equal(t, 1, counter.calls)
}

func TestHandle_ClassifierErrorIsSwallowed(t *testing.T) {
	sender := &fakeSender{}
	d := newTestDispatcher(newMemLedger(), &fakeResolver{users: []string{"alice"}}, &passValidator{}, sender, &fakeSubs{})

	classifier := &fakeClassifier{err: errors.New("ledger unavailable")}
	p := NewPipeline(classifier, &fakeCounter{}, d, nil)

	p.Handle(context.Background(), score.Fixture{ExternalID: 419}, nil, score.Record{ExternalID: 419})
	assert.Empty(t, sender.endpoints())
}
