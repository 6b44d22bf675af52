package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scorepredictor/live-data/internal/event"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		name      string
		ev        event.Event
		wantTitle string
		wantBody  string
	}{
		{
			name:      "kickoff",
			ev:        event.Event{Kind: event.KindKickoff, ExternalID: 419, Gameweek: 7, HomeTeam: "Arsenal", AwayTeam: "Spurs"},
			wantTitle: "Kick-off!",
			wantBody:  "Arsenal v Spurs is under way",
		},
		{
			name:      "goal with minute",
			ev:        event.Event{Kind: event.KindGoal, ExternalID: 419, Gameweek: 7, HomeTeam: "Arsenal", AwayTeam: "Spurs", HomeScore: 1, Minute: 23},
			wantTitle: "Goal!",
			wantBody:  "Arsenal 1-0 Spurs (23')",
		},
		{
			name:      "goal without minute",
			ev:        event.Event{Kind: event.KindGoal, ExternalID: 419, Gameweek: 7, HomeTeam: "Arsenal", AwayTeam: "Spurs", HomeScore: 1},
			wantTitle: "Goal!",
			wantBody:  "Arsenal 1-0 Spurs",
		},
		{
			name:      "full time",
			ev:        event.Event{Kind: event.KindFullTime, ExternalID: 419, Gameweek: 7, HomeTeam: "Arsenal", AwayTeam: "Spurs", HomeScore: 2, AwayScore: 1},
			wantTitle: "Full-time",
			wantBody:  "Arsenal 2-1 Spurs",
		},
		{
			name:      "chat message carries the preview",
			ev:        event.Event{Kind: event.KindChatMessage, Gameweek: 7, Preview: "who is captaining Haaland?"},
			wantTitle: "New chat message",
			wantBody:  "who is captaining Haaland?",
		},
		{
			name:      "new gameweek",
			ev:        event.Event{Kind: event.KindNewGameweek, Gameweek: 8},
			wantTitle: "Gameweek 8 is open",
			wantBody:  "Get your predictions in before kick-off",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := Compose(tt.ev)
			assert.Equal(t, tt.wantTitle, msg.Title)
			assert.Equal(t, tt.wantBody, msg.Body)
			assert.Equal(t, tt.ev.Kind, msg.Data["kind"])
		})
	}
}

func TestCompose_DataOmitsMatchIDForGameweekKinds(t *testing.T) {
	msg := Compose(event.Event{Kind: event.KindGWResults, Gameweek: 7})
	assert.Equal(t, "7", msg.Data["gameweek"])
	assert.NotContains(t, msg.Data, "match_id")
}
