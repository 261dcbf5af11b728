package domain

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"
)

// searchDateLayout is the only date precision the search filter accepts.
const searchDateLayout = "2006-01-02"

// Scheduler decides whether an event is eligible for collection and drives
// its state transitions around a fetch-and-store pass.
type Scheduler struct {
	events    EventRepository
	posts     PostRepository
	paginator *Paginator
	clock     clockwork.Clock
	recorder  Recorder
	logger    *slog.Logger
}

// NewScheduler creates a Scheduler. A nil recorder disables metrics.
func NewScheduler(
	events EventRepository,
	posts PostRepository,
	paginator *Paginator,
	clock clockwork.Clock,
	recorder Recorder,
	logger *slog.Logger,
) *Scheduler {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Scheduler{
		events:    events,
		posts:     posts,
		paginator: paginator,
		clock:     clock,
		recorder:  recorder,
		logger:    logger,
	}
}

// EventResult describes the outcome of one ProcessEvent call.
type EventResult struct {
	// Processed is true when the event was inside its window.
	Processed bool

	// Inserted counts posts newly stored for the event.
	Inserted int

	// Err is the fetch failure that left the event ACTIVE, if any.
	Err error
}

// ProcessEvent collects posts for ev if the current time lies strictly inside
// its window. Eligible events move to ACTIVE, are fetched and stored when
// doFetch is set, then move to FINISHED. A fetch failure leaves the event
// ACTIVE so the next cycle retries it. Ineligible events are not touched.
func (s *Scheduler) ProcessEvent(ctx context.Context, ev *Event, doFetch bool) EventResult {
	now := s.clock.Now()
	if !ev.InWindow(now) {
		s.logger.Debug("event outside collection window", "event_id", ev.ID, "now", now)
		return EventResult{}
	}

	s.setState(ctx, ev, StateActive)

	result := EventResult{Processed: true}
	if doFetch {
		query := searchQuery(ev)
		inserted, err := s.collect(ctx, ev, query)
		result.Inserted = inserted
		if err != nil {
			result.Err = err
			s.recorder.FetchFailed()
			s.recorder.EventProcessed(ev.State)
			s.logger.Error("event collection failed, leaving event active",
				"event_id", ev.ID,
				"title", ev.Title,
				"tags", ev.Tags,
				"since", query.Since,
				"until", query.Until,
				"error", err,
			)
			return result
		}
		s.logger.Info("event collected",
			"event_id", ev.ID,
			"title", ev.Title,
			"posts_inserted", inserted,
		)
	}

	s.setState(ctx, ev, StateFinished)
	s.recorder.EventProcessed(ev.State)
	return result
}

// searchQuery restricts the search to the calendar days of the event window.
func searchQuery(ev *Event) SearchQuery {
	return SearchQuery{
		Tags:  ev.Tags,
		Since: ev.WindowStart.UTC().Format(searchDateLayout),
		Until: ev.WindowEnd.UTC().Format(searchDateLayout),
	}
}

func (s *Scheduler) collect(ctx context.Context, ev *Event, query SearchQuery) (int, error) {
	posts, err := s.paginator.FetchAll(ctx, query)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for i := range posts {
		post := posts[i]
		post.EventID = ev.ID
		ok, err := s.posts.InsertIfAbsent(ctx, &post)
		if err != nil {
			s.logger.Error("failed to insert post",
				"event_id", ev.ID,
				"post_id", post.ID,
				"error", err,
			)
			continue
		}
		if ok {
			inserted++
		}
	}

	ev.PostCount += inserted
	s.recorder.PostsInserted(inserted)
	return inserted, nil
}

// setState writes the state and mirrors it on the in-memory copy only when
// the write succeeded.
func (s *Scheduler) setState(ctx context.Context, ev *Event, state CollectionState) {
	if err := s.events.SetEventState(ctx, ev.ID, state); err != nil {
		s.logger.Error("failed to update event state",
			"event_id", ev.ID,
			"state", state,
			"error", err,
		)
		return
	}
	s.logger.Info("event state updated", "event_id", ev.ID, "state", state)
	ev.State = state
}
