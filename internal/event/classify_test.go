package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorepredictor/live-data/internal/score"
)

// fakeMarkers is an in-memory MarkerReader.
type fakeMarkers struct {
	existing map[string]bool
	calls    int
}

func (f *fakeMarkers) MarkerExists(_ context.Context, markerID string) (bool, error) {
	f.calls++
	return f.existing[markerID], nil
}

func record(status string, home, away, minute int) score.Record {
	return score.Record{
		ExternalID: 88,
		Gameweek:   3,
		HomeScore:  home,
		AwayScore:  away,
		Status:     status,
		Minute:     minute,
	}
}

var testFixture = score.Fixture{
	ID:         1,
	ExternalID: 88,
	Gameweek:   3,
	HomeTeam:   "Arsenal",
	AwayTeam:   "Spurs",
}

func kinds(events []Event) []string {
	if len(events) == 0 {
		return nil
	}
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Kind)
	}
	return out
}

func TestClassify_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		old    score.Record
		latest score.Record
		want   []string
	}{
		{
			name:   "scheduled to in play emits kickoff",
			old:    record(score.StatusScheduled, 0, 0, 0),
			latest: record(score.StatusInPlay, 0, 0, 1),
			want:   []string{KindKickoff},
		},
		{
			name:   "timed to in play emits kickoff",
			old:    record(score.StatusTimed, 0, 0, 0),
			latest: record(score.StatusInPlay, 0, 0, 1),
			want:   []string{KindKickoff},
		},
		{
			name:   "in play to in play with no change emits nothing",
			old:    record(score.StatusInPlay, 1, 0, 20),
			latest: record(score.StatusInPlay, 1, 0, 25),
			want:   nil,
		},
		{
			name:   "home score increase emits goal",
			old:    record(score.StatusInPlay, 0, 0, 22),
			latest: record(score.StatusInPlay, 1, 0, 23),
			want:   []string{KindGoal},
		},
		{
			name:   "two goal jump emits two goals",
			old:    record(score.StatusInPlay, 0, 0, 22),
			latest: record(score.StatusInPlay, 2, 0, 30),
			want:   []string{KindGoal, KindGoal},
		},
		{
			name:   "score decrease emits goal disallowed, not goal",
			old:    record(score.StatusInPlay, 1, 0, 23),
			latest: record(score.StatusInPlay, 0, 0, 25),
			want:   []string{KindGoalDisallowed},
		},
		{
			name:   "pause at minute 45 emits half time",
			old:    record(score.StatusInPlay, 1, 0, 44),
			latest: record(score.StatusPaused, 1, 0, 45),
			want:   []string{KindHalfTime},
		},
		{
			name:   "pause with stoppage drift still emits half time",
			old:    record(score.StatusInPlay, 1, 0, 44),
			latest: record(score.StatusPaused, 1, 0, 46),
			want:   []string{KindHalfTime},
		},
		{
			name:   "pause with unreported minute treated as boundary",
			old:    record(score.StatusInPlay, 1, 0, 44),
			latest: record(score.StatusPaused, 1, 0, 0),
			want:   []string{KindHalfTime},
		},
		{
			name:   "pause away from boundary emits nothing",
			old:    record(score.StatusInPlay, 1, 0, 70),
			latest: record(score.StatusPaused, 1, 0, 71),
			want:   nil,
		},
		{
			name:   "already paused stays paused emits nothing",
			old:    record(score.StatusPaused, 1, 0, 45),
			latest: record(score.StatusPaused, 1, 0, 45),
			want:   nil,
		},
		{
			name:   "in play to finished emits full time",
			old:    record(score.StatusInPlay, 2, 1, 90),
			latest: record(score.StatusFinished, 2, 1, 90),
			want:   []string{KindFullTime},
		},
		{
			name:   "goal and finish in one update emits both in priority order",
			old:    record(score.StatusInPlay, 1, 1, 89),
			latest: record(score.StatusFinished, 2, 1, 90),
			want:   []string{KindGoal, KindFullTime},
		},
		{
			name:   "finished twice emits nothing",
			old:    record(score.StatusFinished, 2, 1, 90),
			latest: record(score.StatusFinished, 2, 1, 90),
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(&fakeMarkers{}, nil)
			events, err := c.Classify(context.Background(), testFixture, &tt.old, tt.latest)
			require.NoError(t, err)
			assert.Equal(t, tt.want, kinds(events))
		})
	}
}

func TestClassify_GoalThenDisallowedThenRegoal(t *testing.T) {
	// 0-0 → 1-0 → 0-0 must be goal then goal-disallowed, never two goals.
	c := NewClassifier(&fakeMarkers{}, nil)
	ctx := context.Background()

	first := record(score.StatusInPlay, 0, 0, 10)
	second := record(score.StatusInPlay, 1, 0, 12)
	third := record(score.StatusInPlay, 0, 0, 14)

	events, err := c.Classify(ctx, testFixture, &first, second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, KindGoal, events[0].Kind)

	events, err = c.Classify(ctx, testFixture, &second, third)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, KindGoalDisallowed, events[0].Kind)
}

func TestClassify_MissingOldReconstruction(t *testing.T) {
	ctx := context.Background()
	latest := record(score.StatusInPlay, 0, 0, 1)

	t.Run("no kickoff marker yet emits kickoff", func(t *testing.T) {
		markers := &fakeMarkers{existing: map[string]bool{}}
		c := NewClassifier(markers, nil)
		events, err := c.Classify(ctx, testFixture, nil, latest)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, KindKickoff, events[0].Kind)
	})

	t.Run("kickoff marker present emits nothing", func(t *testing.T) {
		markers := &fakeMarkers{existing: map[string]bool{
			MatchMarker(KindKickoff, 88): true,
		}}
		c := NewClassifier(markers, nil)
		events, err := c.Classify(ctx, testFixture, nil, latest)
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("scores assumed unchanged, no fabricated goals", func(t *testing.T) {
		markers := &fakeMarkers{existing: map[string]bool{
			MatchMarker(KindKickoff, 88): true,
		}}
		c := NewClassifier(markers, nil)
		events, err := c.Classify(ctx, testFixture, nil, record(score.StatusInPlay, 2, 1, 60))
		require.NoError(t, err)
		assert.Empty(t, events)
	})

	t.Run("finished without full time marker emits full time", func(t *testing.T) {
		markers := &fakeMarkers{existing: map[string]bool{
			MatchMarker(KindKickoff, 88): true,
		}}
		c := NewClassifier(markers, nil)
		events, err := c.Classify(ctx, testFixture, nil, record(score.StatusFinished, 2, 1, 90))
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, KindFullTime, events[0].Kind)
	})

	t.Run("finished with full time marker emits nothing", func(t *testing.T) {
		markers := &fakeMarkers{existing: map[string]bool{
			MatchMarker(KindKickoff, 88):  true,
			MatchMarker(KindFullTime, 88): true,
		}}
		c := NewClassifier(markers, nil)
		events, err := c.Classify(ctx, testFixture, nil, record(score.StatusFinished, 2, 1, 90))
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestClassify_MarkersStableAcrossRedelivery(t *testing.T) {
	// The same transition delivered twice must produce identical marker ids,
	// even when the reported minute drifted between deliveries.
	c := NewClassifier(&fakeMarkers{}, nil)
	ctx := context.Background()

	old := record(score.StatusInPlay, 0, 0, 22)
	first, err := c.Classify(ctx, testFixture, &old, record(score.StatusInPlay, 1, 0, 23))
	require.NoError(t, err)
	second, err := c.Classify(ctx, testFixture, &old, record(score.StatusInPlay, 1, 0, 24))
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].MarkerID, second[0].MarkerID)
}
