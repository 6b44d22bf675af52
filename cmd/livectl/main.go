// Command livectl is the Predictor Live operations CLI.
//
// Usage:
//
//	livectl poll once
//	livectl fixtures seed --season 2026
//	livectl subs validate
//	livectl gameweek announce --gw 12
//	livectl markers backfill --marker full-time:88 --kind full-time --user u1 --user u2
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/scorepredictor/live-data/internal/config"
	"github.com/scorepredictor/live-data/internal/db"
	"github.com/scorepredictor/live-data/internal/event"
	"github.com/scorepredictor/live-data/internal/fixture"
	"github.com/scorepredictor/live-data/internal/ledger"
	"github.com/scorepredictor/live-data/internal/metrics"
	"github.com/scorepredictor/live-data/internal/notify"
	"github.com/scorepredictor/live-data/internal/provider/matchfeed"
	"github.com/scorepredictor/live-data/internal/push"
	"github.com/scorepredictor/live-data/internal/recipient"
	"github.com/scorepredictor/live-data/internal/score"
	"github.com/scorepredictor/live-data/internal/subscription"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	metrics.Init()

	root := &cobra.Command{
		Use:   "livectl",
		Short: "Predictor Live operations CLI",
	}

	root.AddCommand(pollCmd())
	root.AddCommand(fixturesCmd())
	root.AddCommand(subsCmd())
	root.AddCommand(gameweekCmd())
	root.AddCommand(markersCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// deps bundles the wired pipeline for commands that need it.
type deps struct {
	cfg        *config.Config
	pool       *db.Pool
	scores     *score.Store
	markers    *ledger.Ledger
	picks      *recipient.PickStore
	validator  *subscription.Validator
	dispatcher *notify.Dispatcher
	pipeline   *notify.Pipeline
}

// run connects, wires the pipeline, executes fn, and cleans up.
func run(fn func(ctx context.Context, d *deps) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Migrate(logger); err != nil {
		return err
	}

	scores := score.NewStore(pool.Pool)
	markers := ledger.New(pool.Pool)
	classifier := event.NewClassifier(markers, logger)
	picks := recipient.NewPickStore(pool.Pool)
	resolver := recipient.NewResolver(picks, recipient.NewExclusionStore(pool.Pool), logger)
	subs := subscription.NewStore(pool.Pool)
	prefs := subscription.NewPreferenceStore(pool.Pool)
	transport := push.NewClient(cfg.PushServiceURL, cfg.PushServiceAPIKey, logger)
	validator := subscription.NewValidator(subs, prefs, transport, logger)
	dispatcher := notify.NewDispatcher(markers, resolver, validator, transport, subs,
		cfg.DispatchWorkers, cfg.SendTimeout, logger)
	pipeline := notify.NewPipeline(classifier, scores, dispatcher, logger)

	return fn(ctx, &deps{
		cfg:        cfg,
		pool:       pool,
		scores:     scores,
		markers:    markers,
		picks:      picks,
		validator:  validator,
		dispatcher: dispatcher,
		pipeline:   pipeline,
	})
}

// --------------------------------------------------------------------------
// poll command
// --------------------------------------------------------------------------

func pollCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Score polling",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Run a single poll tick against the match feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, d *deps) error {
				feed := matchfeed.NewClient(d.cfg.MatchFeedBaseURL, d.cfg.MatchFeedAPIKey, d.cfg.MatchFeedRPM, logger)
				poller := score.NewPoller(d.scores, feed, d.pipeline.Handle,
					d.cfg.PollInterval, d.cfg.PollFetchGap, logger)

				start := time.Now()
				fetched, skipped, err := poller.TickOnce(ctx)
				if err != nil {
					return err
				}
				logger.Info("Poll tick finished",
					"fetched", fetched, "skipped", skipped,
					"duration", time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// fixtures command
// --------------------------------------------------------------------------

func fixturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Fixture schedule management",
	}

	var season int
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Load a season's fixture schedule from the match feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if season <= 0 {
				return fmt.Errorf("--season is required")
			}
			return run(func(ctx context.Context, d *deps) error {
				feed := matchfeed.NewClient(d.cfg.MatchFeedBaseURL, d.cfg.MatchFeedAPIKey, d.cfg.MatchFeedRPM, logger)
				seeder := fixture.NewSeeder(d.scores, feed, logger)

				result, err := seeder.Seed(ctx, season)
				if err != nil {
					return err
				}
				for _, e := range result.Errors {
					logger.Warn("seed error", "detail", e)
				}
				logger.Info("Fixture seed finished", "summary", result.Summary())
				return nil
			})
		},
	}
	seed.Flags().IntVar(&season, "season", 0, "Season start year")
	cmd.AddCommand(seed)
	return cmd
}

// --------------------------------------------------------------------------
// subs command
// --------------------------------------------------------------------------

func subsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subs",
		Short: "Subscription management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Sweep all active endpoints against the delivery transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, d *deps) error {
				checked, deactivated, err := d.validator.ValidateAll(ctx)
				if err != nil {
					return err
				}
				logger.Info("Validation sweep finished",
					"checked", checked, "deactivated", deactivated)
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// gameweek command
// --------------------------------------------------------------------------

func gameweekCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gameweek",
		Short: "Gameweek operations",
	}

	var gw int
	announce := &cobra.Command{
		Use:   "announce",
		Short: "Broadcast new-gameweek for a gameweek",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gw <= 0 {
				return fmt.Errorf("--gw is required")
			}
			return run(func(ctx context.Context, d *deps) error {
				ev := event.Event{
					Kind:     event.KindNewGameweek,
					MarkerID: event.GameweekMarker(event.KindNewGameweek, gw),
					Gameweek: gw,
				}
				return d.dispatcher.Dispatch(ctx, ev)
			})
		},
	}
	announce.Flags().IntVar(&gw, "gw", 0, "Gameweek number")
	cmd.AddCommand(announce)
	return cmd
}

// --------------------------------------------------------------------------
// markers command
// --------------------------------------------------------------------------

func markersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markers",
		Short: "Dedup ledger operations",
	}

	var marker, kind string
	var users []string
	backfill := &cobra.Command{
		Use:   "backfill",
		Short: "Record historical markers through the ledger API",
		Long: "Writes (marker, user) claims for deliveries made outside this system.\n" +
			"Always goes through the ledger API so reconstruction stays trustworthy.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if marker == "" || kind == "" || len(users) == 0 {
				return fmt.Errorf("--marker, --kind, and at least one --user are required")
			}
			return run(func(ctx context.Context, d *deps) error {
				claimed, skipped := 0, 0
				for _, u := range users {
					ok, err := d.markers.TryClaim(ctx, marker, kind, u)
					if err != nil {
						return err
					}
					if ok {
						claimed++
					} else {
						skipped++
					}
				}
				logger.Info("Backfill finished",
					"marker", marker, "claimed", claimed, "already_present", skipped)
				return nil
			})
		},
	}
	backfill.Flags().StringVar(&marker, "marker", "", "Marker id")
	backfill.Flags().StringVar(&kind, "kind", "", "Notification kind")
	backfill.Flags().StringArrayVar(&users, "user", nil, "Recipient user id (repeatable)")
	cmd.AddCommand(backfill)
	return cmd
}
