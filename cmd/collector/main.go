package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/blackmichael/sentiment-collector/internal/bluesky"
	"github.com/blackmichael/sentiment-collector/internal/config"
	"github.com/blackmichael/sentiment-collector/internal/domain"
	"github.com/blackmichael/sentiment-collector/internal/httpserver"
	"github.com/blackmichael/sentiment-collector/internal/metrics"
	"github.com/blackmichael/sentiment-collector/internal/postgres"
	"github.com/blackmichael/sentiment-collector/internal/sqlite"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(run).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type runFunc func(ctx context.Context, eventID *int64) error

func newRootCmd(run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "collector [event-id]",
		Short: "Collect tagged posts for events and score their sentiment",
		Long: `Periodically searches Bluesky for the tags of every event whose collection
window is open, stores new posts once, and rescores all stored posts
against the sentiment lexicon.

With an event id, only that event is collected.`,
		Args: func(_ *cobra.Command, args []string) error {
			_, err := parseEventID(args)
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseEventID(args)
			if err != nil {
				return err
			}
			return run(cmd.Context(), eventID)
		},
	}
}

// parseEventID accepts zero or one numeric argument.
func parseEventID(args []string) (*int64, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: event id must be numeric, got %q", domain.ErrUsage, args[0])
		}
		return &id, nil
	default:
		return nil, fmt.Errorf("%w: accepts at most one event id, got %d arguments", domain.ErrUsage, len(args))
	}
}

// store is what the collector needs from either database backend.
type store interface {
	domain.Store
	EnsureSchema(ctx context.Context) error
	Close() error
}

func openStore(cfg *config.Config, logger *slog.Logger) (store, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return postgres.NewRepository(cfg.DatabaseURL, logger)
	case "sqlite":
		return sqlite.NewRepository(cfg.DatabaseURL, logger)
	default:
		return nil, fmt.Errorf("%w: unknown database driver %q", domain.ErrConfiguration, cfg.DatabaseDriver)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(ctx context.Context, eventID *int64) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if !cfg.DotEnvLoaded {
		logger.Debug("no .env file found, using environment variables")
	}

	repo, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("connected to database", "driver", cfg.DatabaseDriver)

	client := bluesky.NewClient(cfg.BlueskyServiceURL,
		bluesky.WithPageSize(cfg.SearchPageSize),
		bluesky.WithRateLimit(cfg.SearchRequestsPerSecond),
	)
	if cfg.BlueskyHandle != "" {
		if err := client.Login(ctx, cfg.BlueskyHandle, cfg.BlueskyAppPassword); err != nil {
			return fmt.Errorf("%w: bluesky login: %w", domain.ErrConfiguration, err)
		}
		logger.Info("authenticated with bluesky", "did", client.DID())
	}

	recorder := metrics.New()
	clock := clockwork.NewRealClock()

	scheduler := domain.NewScheduler(repo, repo, domain.NewPaginator(client, logger), clock, recorder, logger)
	scorer := domain.NewScorer(repo, recorder, logger)
	runner := domain.NewRunner(repo, scheduler, scorer, clock, cfg.CollectInterval, recorder, logger)

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.StatusPort > 0 {
		server := httpserver.NewServer(cfg.StatusPort, repo, recorder.Registry(), logger)
		go func() {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server exited with error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("error shutting down http server", "error", err)
			}
		}()
	}

	logger.Info("collector started", "interval", cfg.CollectInterval, "event_id", eventIDAttr(eventID))

	if err := runner.Run(ctx, eventID); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("collector stopped")
	return nil
}

func eventIDAttr(id *int64) any {
	if id == nil {
		return "all"
	}
	return *id
}
