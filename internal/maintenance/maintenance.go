// Package maintenance runs periodic background tasks as Go tickers.
// All scheduled work is driven from Go since the service is already a
// persistent, long-running process (required for LISTEN/NOTIFY).
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/notify"
	"github.com/scorepredictor/live-data/internal/subscription"
)

// How close the first kickoff must be before a gameweek is announced.
const announceWindow = 72 * time.Hour

// Picks is the slice of the prediction store the sweeps need.
type Picks interface {
	UsersWithoutPick(ctx context.Context, gameweek int) (int, error)
}

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	RevalidateInterval time.Duration // Subscription sweep against the transport
	GameweekInterval   time.Duration // new-gameweek + all-submitted detection
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		RevalidateInterval: 6 * time.Hour,
		GameweekInterval:   10 * time.Minute,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, validator *subscription.Validator, picks Picks, dispatcher *notify.Dispatcher, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"revalidate", cfg.RevalidateInterval,
		"gameweek", cfg.GameweekInterval)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.RevalidateInterval > 0 {
		t := time.NewTicker(cfg.RevalidateInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { revalidate(ctx, validator, logger) })
	}

	if cfg.GameweekInterval > 0 {
		t := time.NewTicker(cfg.GameweekInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() {
			announceGameweek(ctx, pool, dispatcher, logger)
			checkAllSubmitted(ctx, pool, picks, dispatcher, logger)
		})
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// revalidate sweeps every active endpoint against the transport so
// endpoints dropped out-of-band stop receiving fan-out.
func revalidate(ctx context.Context, validator *subscription.Validator, logger *slog.Logger) {
	checked, deactivated, err := validator.ValidateAll(ctx)
	if err != nil {
		logger.Warn("Revalidation sweep failed", "error", err)
		return
	}
	if checked > 0 {
		logger.Info("Revalidation sweep complete", "checked", checked, "deactivated", deactivated)
	}
}

// announceGameweek broadcasts new-gameweek once the next unannounced
// gameweek's first kickoff enters the announcement window. The dispatcher's
// ledger claim makes a repeat broadcast for the same gameweek impossible.
func announceGameweek(ctx context.Context, pool *pgxpool.Pool, dispatcher *notify.Dispatcher, logger *slog.Logger) {
	var gameweek int
	var firstKickoff time.Time
	err := pool.QueryRow(ctx, "next_unannounced_gameweek").Scan(&gameweek, &firstKickoff)
	if errors.Is(err, pgx.ErrNoRows) {
		return
	}
	if err != nil {
		logger.Warn("Gameweek sweep: query failed", "error", err)
		return
	}
	if time.Until(firstKickoff) > announceWindow {
		return
	}

	ev := event.Event{
		Kind:     event.KindNewGameweek,
		MarkerID: event.GameweekMarker(event.KindNewGameweek, gameweek),
		Gameweek: gameweek,
	}
	if err := dispatcher.Dispatch(ctx, ev); err != nil {
		logger.Warn("Gameweek sweep: announce failed", "gameweek", gameweek, "error", err)
	}
}

// checkAllSubmitted broadcasts all-submitted when every registered user
// holds a pick for the upcoming gameweek.
func checkAllSubmitted(ctx context.Context, pool *pgxpool.Pool, picks Picks, dispatcher *notify.Dispatcher, logger *slog.Logger) {
	var gameweek int
	err := pool.QueryRow(ctx, "upcoming_gameweek").Scan(&gameweek)
	if errors.Is(err, pgx.ErrNoRows) {
		return
	}
	if err != nil {
		logger.Warn("All-submitted sweep: query failed", "error", err)
		return
	}

	missing, err := picks.UsersWithoutPick(ctx, gameweek)
	if err != nil {
		logger.Warn("All-submitted sweep: count failed", "gameweek", gameweek, "error", err)
		return
	}
	if missing > 0 {
		return
	}

	ev := event.Event{
		Kind:     event.KindAllSubmitted,
		MarkerID: event.GameweekMarker(event.KindAllSubmitted, gameweek),
		Gameweek: gameweek,
	}
	if err := dispatcher.Dispatch(ctx, ev); err != nil {
		logger.Warn("All-submitted sweep: dispatch failed", "gameweek", gameweek, "error", err)
	}
}
