package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scorepredictor/live-data/internal/metrics"
	"github.com/scorepredictor/live-data/internal/score"
)

// Half-time is the PAUSED transition landing near minute 45. Providers
// report 44–46 depending on stoppage time, or omit the minute entirely.
const (
	halfTimeMinute    = 45
	halfTimeMinuteLow = 44
	halfTimeMinuteHi  = 46
)

// MarkerReader answers "has any recipient ever been claimed for this
// marker". Used to reconstruct prior state when the change-capture channel
// omits the old record.
type MarkerReader interface {
	MarkerExists(ctx context.Context, markerID string) (bool, error)
}

// Classifier turns (old, new) score record pairs into events.
type Classifier struct {
	markers MarkerReader
	logger  *slog.Logger
}

// NewClassifier creates a classifier backed by the given ledger view.
func NewClassifier(markers MarkerReader, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{markers: markers, logger: logger}
}

// Classify evaluates the transition rules in priority order. A single
// update may yield several events (a jump from 0-0 to 2-0 FINISHED yields
// two goals and a full-time). old may be nil; prior state is then
// reconstructed from the ledger; without that fallback a change delivered
// without its old value would silently drop its events.
func (c *Classifier) Classify(ctx context.Context, fixture score.Fixture, old *score.Record, latest score.Record) ([]Event, error) {
	if old == nil {
		synthetic, err := c.reconstruct(ctx, latest)
		if err != nil {
			return nil, fmt.Errorf("reconstruct prior state for %d: %w", latest.ExternalID, err)
		}
		old = synthetic
	}

	base := Event{
		ExternalID: latest.ExternalID,
		Gameweek:   latest.Gameweek,
		HomeTeam:   fixture.HomeTeam,
		AwayTeam:   fixture.AwayTeam,
		HomeScore:  latest.HomeScore,
		AwayScore:  latest.AwayScore,
		Minute:     latest.Minute,
	}

	var events []Event
	emit := func(e Event) {
		metrics.EventsClassified.WithLabelValues(e.Kind).Inc()
		events = append(events, e)
	}

	// 1. Kickoff
	if score.NotStarted(old.Status) && latest.Status == score.StatusInPlay {
		e := base
		e.Kind = KindKickoff
		e.MarkerID = MatchMarker(KindKickoff, latest.ExternalID)
		emit(e)
	}

	// 2. Half-time
	if c.isHalfTime(old, latest) {
		e := base
		e.Kind = KindHalfTime
		e.Minute = halfTimeMinute
		e.MarkerID = HalfTimeMarker(latest.ExternalID)
		emit(e)
	}

	// 3. Goals and retractions, one event per unit of change
	events = append(events, c.goalEvents(base, old, latest)...)

	// 4. Full-time
	if latest.Status == score.StatusFinished && old.Status != score.StatusFinished {
		e := base
		e.Kind = KindFullTime
		e.MarkerID = MatchMarker(KindFullTime, latest.ExternalID)
		emit(e)
	}

	return events, nil
}

// isHalfTime detects the in-play → paused transition near the boundary.
// A missing minute from the provider is treated as the boundary.
func (c *Classifier) isHalfTime(old *score.Record, latest score.Record) bool {
	if latest.Status != score.StatusPaused || old.Status == score.StatusPaused {
		return false
	}
	if old.Status != score.StatusInPlay {
		return false
	}
	return latest.Minute == 0 ||
		(latest.Minute >= halfTimeMinuteLow && latest.Minute <= halfTimeMinuteHi)
}

// goalEvents compares scores side by side. An increase emits one goal per
// unit; a decrease means a goal was retracted upstream and emits
// goal-disallowed instead.
func (c *Classifier) goalEvents(base Event, old *score.Record, latest score.Record) []Event {
	var events []Event

	sides := []struct {
		oldScore, newScore int
		otherScore         int
		home               bool
	}{
		{old.HomeScore, latest.HomeScore, latest.AwayScore, true},
		{old.AwayScore, latest.AwayScore, latest.HomeScore, false},
	}

	for _, s := range sides {
		switch {
		case s.newScore > s.oldScore:
			for n := s.oldScore + 1; n <= s.newScore; n++ {
				e := base
				e.Kind = KindGoal
				if s.home {
					e.MarkerID = GoalMarker(KindGoal, latest.ExternalID, n, s.otherScore)
				} else {
					e.MarkerID = GoalMarker(KindGoal, latest.ExternalID, s.otherScore, n)
				}
				metrics.EventsClassified.WithLabelValues(e.Kind).Inc()
				events = append(events, e)
			}
		case s.newScore < s.oldScore:
			e := base
			e.Kind = KindGoalDisallowed
			e.MarkerID = GoalMarker(KindGoalDisallowed, latest.ExternalID, latest.HomeScore, latest.AwayScore)
			metrics.EventsClassified.WithLabelValues(e.Kind).Inc()
			events = append(events, e)
		}
	}

	return events
}

// reconstruct builds a synthetic prior record from the ledger when the
// change-capture payload omitted the old value. Status is inferred from the
// once-per-match markers: a kickoff marker means kickoff already fired, so
// the prior status was already IN_PLAY. Scores are assumed unchanged;
// goals cannot be reconstructed from markers, and guessing would fabricate
// events.
func (c *Classifier) reconstruct(ctx context.Context, latest score.Record) (*score.Record, error) {
	prior := score.Record{
		ExternalID:   latest.ExternalID,
		Gameweek:     latest.Gameweek,
		FixtureIndex: latest.FixtureIndex,
		HomeScore:    latest.HomeScore,
		AwayScore:    latest.AwayScore,
		Status:       score.StatusScheduled,
		Minute:       latest.Minute,
	}

	kicked, err := c.markers.MarkerExists(ctx, MatchMarker(KindKickoff, latest.ExternalID))
	if err != nil {
		return nil, err
	}
	if kicked {
		prior.Status = score.StatusInPlay
	}

	if latest.Status == score.StatusPaused {
		halved, err := c.markers.MarkerExists(ctx, HalfTimeMarker(latest.ExternalID))
		if err != nil {
			return nil, err
		}
		if halved {
			prior.Status = score.StatusPaused
		}
	}

	finished, err := c.markers.MarkerExists(ctx, MatchMarker(KindFullTime, latest.ExternalID))
	if err != nil {
		return nil, err
	}
	if finished {
		prior.Status = score.StatusFinished
	}

	c.logger.Debug("reconstructed prior state from ledger",
		"external_id", latest.ExternalID, "status", prior.Status)
	return &prior, nil
}
