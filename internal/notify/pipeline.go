package notify

import (
	"context"
	"log/slog"

	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/score"
)

// Classifier turns score transitions into events.
type Classifier interface {
	Classify(ctx context.Context, fixture score.Fixture, old *score.Record, latest score.Record) ([]event.Event, error)
}

// GameweekCounter answers how many fixtures in a gameweek are unfinished.
type GameweekCounter interface {
	UnfinishedInGameweek(ctx context.Context, gameweek int) (int, error)
}

// Pipeline is the change-capture entry point: every observed score change,
// whether from the poller or LISTEN/NOTIFY, flows through Handle. Different
// fixtures may be handled concurrently; the only shared mutable state is
// the ledger, whose uniqueness constraint is the concurrency control.
type Pipeline struct {
	classifier Classifier
	scores     GameweekCounter
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewPipeline wires classifier → dispatcher.
func NewPipeline(classifier Classifier, scores GameweekCounter, dispatcher *Dispatcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier: classifier,
		scores:     scores,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Handle classifies one transition and dispatches the resulting events.
// After a full-time event it additionally checks whether the whole gameweek
// just completed and, if so, emits gw-results for the gameweek. Errors are
// logged, never returned; no failure here may crash a poll tick or the
// listener.
func (p *Pipeline) Handle(ctx context.Context, fixture score.Fixture, old *score.Record, latest score.Record) {
	events, err := p.classifier.Classify(ctx, fixture, old, latest)
	if err != nil {
		p.logger.Error("classify failed", "external_id", latest.ExternalID, "error", err)
		return
	}
	if len(events) == 0 {
		return
	}

	finished := false
	for _, ev := range events {
		if err := p.dispatcher.Dispatch(ctx, ev); err != nil {
			p.logger.Error("dispatch failed", "kind", ev.Kind, "marker", ev.MarkerID, "error", err)
		}
		if ev.Kind == event.KindFullTime {
			finished = true
		}
	}

	if finished {
		p.maybeGameweekResults(ctx, latest.Gameweek)
	}
}

// maybeGameweekResults emits gw-results when the last unfinished fixture of
// a gameweek has just gone FINISHED. Duplicate full-time deliveries make
// this fire more than once; the gameweek-scoped marker absorbs them.
func (p *Pipeline) maybeGameweekResults(ctx context.Context, gameweek int) {
	remaining, err := p.scores.UnfinishedInGameweek(ctx, gameweek)
	if err != nil {
		p.logger.Warn("unfinished count failed", "gameweek", gameweek, "error", err)
		return
	}
	if remaining > 0 {
		return
	}

	ev := event.Event{
		Kind:     event.KindGWResults,
		MarkerID: event.GameweekMarker(event.KindGWResults, gameweek),
		Gameweek: gameweek,
	}
	if err := p.dispatcher.Dispatch(ctx, ev); err != nil {
		p.logger.Error("dispatch gw-results failed", "gameweek", gameweek, "error", err)
	}
}
