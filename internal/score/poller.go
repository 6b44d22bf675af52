package score

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/scorepredictor/live-data/internal/metrics"
	"github.com/scorepredictor/live-data/internal/provider/matchfeed"
)

// Feed is the slice of the match data provider the poller needs.
type Feed interface {
	Match(ctx context.Context, matchID int) (*matchfeed.MatchState, error)
}

// Records is the slice of the score store the poller needs.
type Records interface {
	PollableFixtures(ctx context.Context) ([]Fixture, error)
	Upsert(ctx context.Context, r Record) (*Record, error)
}

// ChangeHandler receives each observed state change. old is nil on the
// first write for a fixture.
type ChangeHandler func(ctx context.Context, fixture Fixture, old *Record, latest Record)

// Poller fetches live state for in-play fixtures on a fixed interval.
// Fixtures are fetched sequentially with a small gap between requests to
// stay under the provider quota. One fixture failing never aborts the rest
// of the tick.
type Poller struct {
	store    Records
	feed     Feed
	onChange ChangeHandler
	interval time.Duration
	fetchGap time.Duration
	logger   *slog.Logger

	// Guards against overlapping ticks when a tick outlasts the interval.
	tickMu sync.Mutex
}

// NewPoller creates a poller. onChange may be nil (poll-only mode).
func NewPoller(store Records, feed Feed, onChange ChangeHandler, interval, fetchGap time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		store:    store,
		feed:     feed,
		onChange: onChange,
		interval: interval,
		fetchGap: fetchGap,
		logger:   logger,
	}
}

// Start runs the poll loop. Blocks until ctx is cancelled. Intended to be
// called with `go`.
func (p *Poller) Start(ctx context.Context) {
	p.logger.Info("Score poller started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !p.tickMu.TryLock() {
				p.logger.Warn("poll tick still running, skipping")
				continue
			}
			p.tick(ctx)
			p.tickMu.Unlock()
		case <-ctx.Done():
			p.logger.Info("Score poller stopped")
			return
		}
	}
}

// TickOnce runs a single poll pass. Used by livectl and tests.
func (p *Poller) TickOnce(ctx context.Context) (fetched, skipped int, err error) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()
	return p.tick(ctx)
}

func (p *Poller) tick(ctx context.Context) (fetched, skipped int, err error) {
	fixtures, err := p.store.PollableFixtures(ctx)
	if err != nil {
		p.logger.Error("poll tick: list fixtures", "error", err)
		return 0, 0, err
	}
	if len(fixtures) == 0 {
		return 0, 0, nil
	}

	for i, f := range fixtures {
		if ctx.Err() != nil {
			return fetched, skipped, ctx.Err()
		}
		if i > 0 && p.fetchGap > 0 {
			select {
			case <-time.After(p.fetchGap):
			case <-ctx.Done():
				return fetched, skipped, ctx.Err()
			}
		}

		state, ferr := p.feed.Match(ctx, f.ExternalID)
		if ferr != nil {
			skipped++
			if errors.Is(ferr, matchfeed.ErrRateLimited) {
				metrics.PollFixtures.WithLabelValues("rate_limited").Inc()
				p.logger.Warn("rate limited, skipping fixture", "external_id", f.ExternalID)
			} else {
				metrics.PollFixtures.WithLabelValues("error").Inc()
				p.logger.Warn("fetch failed, skipping fixture", "external_id", f.ExternalID, "error", ferr)
			}
			continue
		}
		metrics.PollFixtures.WithLabelValues("fetched").Inc()
		fetched++

		latest := Record{
			ExternalID:   f.ExternalID,
			Gameweek:     f.Gameweek,
			FixtureIndex: f.FixtureIndex,
			HomeScore:    state.HomeScore,
			AwayScore:    state.AwayScore,
			Status:       state.Status,
			Minute:       state.Minute,
		}

		old, uerr := p.store.Upsert(ctx, latest)
		if uerr != nil {
			p.logger.Warn("upsert failed, skipping fixture", "external_id", f.ExternalID, "error", uerr)
			continue
		}

		if p.onChange != nil && (old == nil || !old.Equal(latest)) {
			p.onChange(ctx, f, old, latest)
		}
	}

	p.logger.Info("poll tick complete", "fixtures", len(fixtures), "fetched", fetched, "skipped", skipped)
	return fetched, skipped, nil
}
