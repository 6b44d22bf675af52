// Package event classifies score record transitions into notification-worthy
// occurrences.
//
// Each occurrence carries a marker id, a stable identifier for the
// real-world moment it describes. Markers are what the dedup ledger keys on,
// so the same underlying change delivered twice (two poll ticks observing the
// same transition, or a LISTEN/NOTIFY redelivery) produces the same marker
// and is absorbed downstream.
package event

import "fmt"

// --------------------------------------------------------------------------
// Kinds
// --------------------------------------------------------------------------

const (
	KindKickoff        = "kickoff"
	KindGoal           = "goal"
	KindGoalDisallowed = "goal-disallowed"
	KindHalfTime       = "half-time"
	KindFullTime       = "full-time"
	KindGWResults      = "gw-results"
	KindNewGameweek    = "new-gameweek"
	KindChatMessage    = "chat-message"
	KindAllSubmitted   = "all-submitted"
)

// FixtureScoped reports whether a kind is resolved against a single
// fixture's pick holders.
func FixtureScoped(kind string) bool {
	switch kind {
	case KindKickoff, KindGoal, KindGoalDisallowed, KindHalfTime, KindFullTime:
		return true
	}
	return false
}

// Broadcast reports whether a kind goes to every user with an active
// subscription rather than to pick holders.
func Broadcast(kind string) bool {
	return kind == KindNewGameweek || kind == KindChatMessage || kind == KindAllSubmitted
}

// PreferenceKey maps a kind to the opt-out toggle controlling it. All
// in-match kinds share one "score-updates" toggle; the rest are toggled
// individually.
func PreferenceKey(kind string) string {
	if FixtureScoped(kind) {
		return "score-updates"
	}
	if kind == KindChatMessage {
		return "chat-messages"
	}
	return kind
}

// --------------------------------------------------------------------------
// Event
// --------------------------------------------------------------------------

// Event is one classified occurrence. Events are transient; only their
// marker is ever persisted, as ledger rows.
type Event struct {
	Kind     string
	MarkerID string

	// Fixture payload (fixture-scoped kinds)
	ExternalID int
	Gameweek   int
	HomeTeam   string
	AwayTeam   string
	HomeScore  int
	AwayScore  int
	Minute     int

	// Chat payload
	AuthorID string
	Preview  string
}

// Scoreline renders "2-1".
func (e Event) Scoreline() string {
	return fmt.Sprintf("%d-%d", e.HomeScore, e.AwayScore)
}

// --------------------------------------------------------------------------
// Marker ids
//
// Once-per-match kinds carry no discriminator. Goal markers use the
// resulting scoreline rather than the minute: the minute drifts between
// duplicate observations of the same change, the scoreline does not.
// --------------------------------------------------------------------------

// MatchMarker builds the marker for a once-per-match kind.
func MatchMarker(kind string, matchID int) string {
	return fmt.Sprintf("%s:%d", kind, matchID)
}

// GoalMarker builds the marker for a goal or disallowed goal, keyed on the
// scoreline the change produced.
func GoalMarker(kind string, matchID, homeScore, awayScore int) string {
	return fmt.Sprintf("%s:%d:%d-%d", kind, matchID, homeScore, awayScore)
}

// HalfTimeMarker builds the marker for the half-time pause. The minute is
// normalized to the boundary so stoppage-time drift cannot split it.
func HalfTimeMarker(matchID int) string {
	return fmt.Sprintf("%s:%d:%d", KindHalfTime, matchID, halfTimeMinute)
}

// GameweekMarker builds the marker for a gameweek-scoped kind.
func GameweekMarker(kind string, gameweek int) string {
	return fmt.Sprintf("%s:gw:%d", kind, gameweek)
}

// ChatMarker builds the marker for one chat message.
func ChatMarker(gameweek int, messageID string) string {
	return fmt.Sprintf("%s:%d:%s", KindChatMessage, gameweek, messageID)
}
