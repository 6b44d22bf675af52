// Package fixture populates the fixtures table from the provider's season
// schedule. Seeding is an ops action (livectl), not part of the live
// pipeline: the schedule changes rarely and re-running the seed is safe,
// existing rows are updated in place.
package fixture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/scorepredictor/live-data/internal/provider/matchfeed"
	"github.com/scorepredictor/live-data/internal/score"
)

// ScheduleFeed is the slice of the match data provider the seeder needs.
type ScheduleFeed interface {
	Season(ctx context.Context, startYear int) ([]matchfeed.SeasonMatch, error)
}

// Writer is the slice of the score store the seeder needs.
type Writer interface {
	UpsertFixture(ctx context.Context, f score.Fixture) (inserted bool, err error)
}

// Result summarizes one seeding run.
type Result struct {
	Season   int
	Fetched  int
	Inserted int
	Updated  int
	Skipped  int
	Errors   []string
	Duration time.Duration
}

// Summary renders a one-line human-readable summary for logs and livectl.
func (r Result) Summary() string {
	return fmt.Sprintf("season %d: fetched=%d inserted=%d updated=%d skipped=%d errors=%d in %s",
		r.Season, r.Fetched, r.Inserted, r.Updated, r.Skipped, len(r.Errors), r.Duration.Round(time.Millisecond))
}

// Seeder loads a season schedule and upserts fixture rows.
type Seeder struct {
	store  Writer
	feed   ScheduleFeed
	logger *slog.Logger
}

// NewSeeder creates a seeder.
func NewSeeder(store Writer, feed ScheduleFeed, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{store: store, feed: feed, logger: logger}
}

// Seed fetches the schedule for a season start year and upserts every match
// that carries a matchday and both team names. Per-row failures are
// collected, never abort the run.
func (s *Seeder) Seed(ctx context.Context, startYear int) (Result, error) {
	start := time.Now()
	result := Result{Season: startYear}

	matches, err := s.feed.Season(ctx, startYear)
	if err != nil {
		return result, fmt.Errorf("fetch season %d schedule: %w", startYear, err)
	}
	result.Fetched = len(matches)

	// Fixture index is the ordinal within the matchday, in listing order.
	indexInWeek := make(map[int]int)

	for _, m := range matches {
		if m.Matchday == 0 || m.HomeTeam == "" || m.AwayTeam == "" {
			result.Skipped++
			continue
		}

		indexInWeek[m.Matchday]++
		f := score.Fixture{
			ExternalID:   m.ID,
			Gameweek:     m.Matchday,
			FixtureIndex: indexInWeek[m.Matchday],
			HomeTeam:     m.HomeTeam,
			AwayTeam:     m.AwayTeam,
			KickoffAt:    m.KickoffAt,
		}

		inserted, uerr := s.store.UpsertFixture(ctx, f)
		if uerr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("fixture %d: %v", m.ID, uerr))
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	result.Duration = time.Since(start)
	s.logger.Info("fixture seed complete", "summary", result.Summary())
	return result, nil
}
