package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkers(t *testing.T) {
	assert.Equal(t, "kickoff:419", MatchMarker(KindKickoff, 419))
	assert.Equal(t, "full-time:419", MatchMarker(KindFullTime, 419))
	assert.Equal(t, "goal:419:2-1", GoalMarker(KindGoal, 419, 2, 1))
	assert.Equal(t, "goal-disallowed:419:1-1", GoalMarker(KindGoalDisallowed, 419, 1, 1))
	assert.Equal(t, "half-time:419:45", HalfTimeMarker(419))
	assert.Equal(t, "gw-results:gw:7", GameweekMarker(KindGWResults, 7))
	assert.Equal(t, "new-gameweek:gw:8", GameweekMarker(KindNewGameweek, 8))
	assert.Equal(t, "chat-message:7:msg-42", ChatMarker(7, "msg-42"))
}

func TestKindPredicates(t *testing.T) {
	for _, kind := range []string{KindKickoff, KindGoal, KindGoalDisallowed, KindHalfTime, KindFullTime} {
		assert.True(t, FixtureScoped(kind), kind)
		assert.False(t, Broadcast(kind), kind)
	}
	for _, kind := range []string{KindNewGameweek, KindChatMessage, KindAllSubmitted} {
		assert.True(t, Broadcast(kind), kind)
		assert.False(t, FixtureScoped(kind), kind)
	}
	// Gameweek results go to the gameweek's pick holders, not everyone.
	assert.False(t, Broadcast(KindGWResults))
	assert.False(t, FixtureScoped(KindGWResults))
}

func TestPreferenceKey(t *testing.T) {
	tests := []struct {
		kind string
		want string
	}{
		{KindKickoff, "score-updates"},
		{KindGoal, "score-updates"},
		{KindGoalDisallowed, "score-updates"},
		{KindHalfTime, "score-updates"},
		{KindFullTime, "score-updates"},
		{KindChatMessage, "chat-messages"},
		{KindGWResults, "gw-results"},
		{KindNewGameweek, "new-gameweek"},
		{KindAllSubmitted, "all-submitted"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PreferenceKey(tt.kind), tt.kind)
	}
}
