// Package notify orchestrates the fan-out: resolve recipients, claim dedup
// markers, filter through the subscription validator, and send. It is thin;
// all the hard decisions are made by the packages it composes.
package notify

import (
	"fmt"
	"strconv"

	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/push"
)

// Compose builds the transport message for an event.
func Compose(ev event.Event) push.Message {
	data := map[string]string{
		"kind":     ev.Kind,
		"gameweek": strconv.Itoa(ev.Gameweek),
	}
	if ev.ExternalID != 0 {
		data["match_id"] = strconv.Itoa(ev.ExternalID)
	}

	matchLine := fmt.Sprintf("%s %s %s", ev.HomeTeam, ev.Scoreline(), ev.AwayTeam)

	switch ev.Kind {
	case event.KindKickoff:
		return push.Message{
			Title: "Kick-off!",
			Body:  fmt.Sprintf("%s v %s is under way", ev.HomeTeam, ev.AwayTeam),
			Data:  data,
		}
	case event.KindGoal:
		body := matchLine
		if ev.Minute > 0 {
			body = fmt.Sprintf("%s (%d')", matchLine, ev.Minute)
		}
		return push.Message{Title: "Goal!", Body: body, Data: data}
	case event.KindGoalDisallowed:
		return push.Message{Title: "Goal disallowed", Body: matchLine, Data: data}
	case event.KindHalfTime:
		return push.Message{Title: "Half-time", Body: matchLine, Data: data}
	case event.KindFullTime:
		return push.Message{Title: "Full-time", Body: matchLine, Data: data}
	case event.KindGWResults:
		return push.Message{
			Title: fmt.Sprintf("Gameweek %d results", ev.Gameweek),
			Body:  "All matches finished, check how your predictions scored",
			Data:  data,
		}
	case event.KindNewGameweek:
		return push.Message{
			Title: fmt.Sprintf("Gameweek %d is open", ev.Gameweek),
			Body:  "Get your predictions in before kick-off",
			Data:  data,
		}
	case event.KindChatMessage:
		return push.Message{Title: "New chat message", Body: ev.Preview, Data: data}
	case event.KindAllSubmitted:
		return push.Message{
			Title: "Everyone's in",
			Body:  fmt.Sprintf("All predictions are submitted for gameweek %d", ev.Gameweek),
			Data:  data,
		}
	default:
		return push.Message{Title: "Predictor", Body: matchLine, Data: data}
	}
}
