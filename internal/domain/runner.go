package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// CycleResult summarises one collection cycle.
type CycleResult struct {
	EventsSeen      int
	EventsProcessed int
	EventsFailed    int
	PostsInserted   int
	PostsRescored   int
}

// Runner is the periodic driver: each cycle processes events and then runs
// the sentiment pass over the full post corpus.
type Runner struct {
	store     Store
	scheduler *Scheduler
	scorer    *Scorer
	clock     clockwork.Clock
	interval  time.Duration
	recorder  Recorder
	logger    *slog.Logger
}

// NewRunner creates a Runner that sleeps interval between cycles.
func NewRunner(
	store Store,
	scheduler *Scheduler,
	scorer *Scorer,
	clock clockwork.Clock,
	interval time.Duration,
	recorder Recorder,
	logger *slog.Logger,
) *Runner {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Runner{
		store:     store,
		scheduler: scheduler,
		scorer:    scorer,
		clock:     clock,
		interval:  interval,
		recorder:  recorder,
		logger:    logger,
	}
}

// Run executes a cycle immediately and then again every interval, measured
// from the end of the previous cycle. The wait between cycles is the only
// point where cancellation is observed: a cycle in progress runs to
// completion. It returns ctx.Err() once ctx is done.
func (r *Runner) Run(ctx context.Context, eventID *int64) error {
	cycleCtx := context.WithoutCancel(ctx)
	for {
		r.RunCycle(cycleCtx, eventID)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(r.interval):
		}
	}
}

// RunCycle processes every known event, or only the event with the given id
// when eventID is non-nil, then rescores all stored posts. Failures are
// logged and never stop the cycle; the sentiment pass always runs.
func (r *Runner) RunCycle(ctx context.Context, eventID *int64) CycleResult {
	var result CycleResult
	start := r.clock.Now()

	events, err := r.store.ListEvents(ctx, eventID)
	if err != nil {
		r.logger.Error("failed to list events", "error", err)
	}
	result.EventsSeen = len(events)
	if len(events) == 0 {
		r.logger.Info("no events to process")
	}

	for i := range events {
		res := r.scheduler.ProcessEvent(ctx, &events[i], true)
		if !res.Processed {
			continue
		}
		result.EventsProcessed++
		result.PostsInserted += res.Inserted
		if res.Err != nil {
			result.EventsFailed++
		}
	}

	result.PostsRescored = r.rescore(ctx)

	r.recorder.CycleCompleted()
	r.logger.Info("collection cycle complete",
		"events_seen", result.EventsSeen,
		"events_processed", result.EventsProcessed,
		"events_failed", result.EventsFailed,
		"posts_inserted", result.PostsInserted,
		"posts_rescored", result.PostsRescored,
		"duration", r.clock.Since(start),
	)
	return result
}

func (r *Runner) rescore(ctx context.Context) int {
	lexicon, err := r.store.ListLexicon(ctx)
	if err != nil {
		r.logger.Error("failed to load lexicon, skipping sentiment pass", "error", err)
		return 0
	}

	posts, err := r.store.ListPosts(ctx, nil)
	if err != nil {
		r.logger.Error("failed to list posts, skipping sentiment pass", "error", err)
		return 0
	}

	return r.scorer.RescoreAll(ctx, posts, lexicon)
}
