// Package score owns the normalized live score records and the poller that
// keeps them current from the external match feed.
//
// Records are mutated only through Store.Upsert, keyed on the provider's
// match id; at most one record per external match id. Every upsert that
// changes state is the trigger point for the downstream notification
// pipeline.
package score

import "time"

// --------------------------------------------------------------------------
// Status enum; mirrors the provider's match lifecycle
// --------------------------------------------------------------------------

const (
	StatusScheduled = "SCHEDULED"
	StatusTimed     = "TIMED"
	StatusInPlay    = "IN_PLAY"
	StatusPaused    = "PAUSED"
	StatusFinished  = "FINISHED"
)

// NotStarted reports whether a status precedes kickoff.
func NotStarted(status string) bool {
	return status == StatusScheduled || status == StatusTimed || status == ""
}

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Record is the normalized live state of one fixture.
type Record struct {
	ExternalID   int
	Gameweek     int
	FixtureIndex int
	HomeScore    int
	AwayScore    int
	Status       string
	Minute       int
	UpdatedAt    time.Time
}

// Equal reports whether two records describe the same observable state.
// UpdatedAt is bookkeeping, not state.
func (r Record) Equal(other Record) bool {
	return r.ExternalID == other.ExternalID &&
		r.HomeScore == other.HomeScore &&
		r.AwayScore == other.AwayScore &&
		r.Status == other.Status &&
		r.Minute == other.Minute
}

// Fixture is one scheduled match within a gameweek.
type Fixture struct {
	ID           int
	ExternalID   int
	Gameweek     int
	FixtureIndex int
	HomeTeam     string
	AwayTeam     string
	KickoffAt    *time.Time
	LastStatus   string
}
