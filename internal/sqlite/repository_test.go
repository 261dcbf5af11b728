package sqlite

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/blackmichael/sentiment-collector/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func ptr[T any](v T) *T { return &v }

func TestEnsureSchema_IsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	require.NoError(t, repo.EnsureSchema(context.Background()))
}

func TestEvents_RoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateEvent(ctx, &domain.Event{
		ID: 2, Title: "Second", Tags: "#b", WindowStart: &start, WindowEnd: &end,
	}))
	require.NoError(t, repo.CreateEvent(ctx, &domain.Event{ID: 1, Title: "First", Description: "d", Tags: "#a"}))

	events, err := repo.ListEvents(ctx, nil)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, int64(1), events[0].ID)
	assert.Equal(t, "d", events[0].Description)
	assert.Nil(t, events[0].WindowStart)
	assert.Nil(t, events[0].WindowEnd)
	assert.Equal(t, domain.StatePending, events[0].State)

	assert.Equal(t, int64(2), events[1].ID)
	require.NotNil(t, events[1].WindowStart)
	assert.True(t, start.Equal(*events[1].WindowStart))
	assert.True(t, end.Equal(*events[1].WindowEnd))

	only, err := repo.ListEvents(ctx, ptr(int64(2)))
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, "Second", only[0].Title)

	none, err := repo.ListEvents(ctx, ptr(int64(99)))
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, repo.DeleteEvent(ctx, 2))
	events, err = repo.ListEvents(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSetEventState(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateEvent(ctx, &domain.Event{ID: 1, Tags: "#a"}))

	require.NoError(t, repo.SetEventState(ctx, 1, domain.StateActive))
	events, err := repo.ListEvents(ctx, ptr(int64(1)))
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, events[0].State)

	err = repo.SetEventState(ctx, 42, domain.StateFinished)
	assert.ErrorIs(t, err, domain.ErrEventNotFound)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestListEvents_SkipsUnknownState(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateEvent(ctx, &domain.Event{ID: 1, Tags: "#a"}))
	require.NoError(t, repo.CreateEvent(ctx, &domain.Event{ID: 2, Tags: "#b"}))
	_, err := repo.db.ExecContext(ctx, `UPDATE events SET state = 'ARCHIVED' WHERE id = 2`)
	require.NoError(t, err)

	events, err := repo.ListEvents(ctx, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].ID)
}

func TestInsertIfAbsent_SameIDStoredOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 2, 8, 30, 0, 0, time.UTC)
	post := &domain.Post{
		ID:             "at://did:plc:a/app.bsky.feed.post/1",
		Text:           "first",
		AuthorName:     "Alice",
		CreatedAt:      created,
		AuthorLocation: "Vienna",
		AuthorLanguage: "de",
		EventID:        1,
	}

	inserted, err := repo.InsertIfAbsent(ctx, post)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same id under another event and text: still not inserted, not reassigned.
	dup := *post
	dup.EventID = 2
	dup.Text = "second"
	inserted, err = repo.InsertIfAbsent(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	posts, err := repo.ListPosts(ctx, nil)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, *post, posts[0])
}

func TestListPosts_FiltersByEventInInsertionOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	for _, p := range []domain.Post{
		{ID: "c", EventID: 1},
		{ID: "a", EventID: 2},
		{ID: "b", EventID: 1},
	} {
		_, err := repo.InsertIfAbsent(ctx, &p)
		require.NoError(t, err)
	}

	posts, err := repo.ListPosts(ctx, ptr(int64(1)))
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "c", posts[0].ID)
	assert.Equal(t, "b", posts[1].ID)

	require.NoError(t, repo.DeletePost(ctx, "c"))
	posts, err = repo.ListPosts(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestListEvents_CountsPosts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateEvent(ctx, &domain.Event{ID: 1, Tags: "#a"}))
	for _, id := range []string{"x", "y"} {
		_, err := repo.InsertIfAbsent(ctx, &domain.Post{ID: id, EventID: 1})
		require.NoError(t, err)
	}

	events, err := repo.ListEvents(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, events[0].PostCount)
}

func TestUpdatePostWeight(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	_, err := repo.InsertIfAbsent(ctx, &domain.Post{ID: "p", EventID: 1})
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePostWeight(ctx, "p", -4))
	posts, err := repo.ListPosts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, -4, posts[0].Weight)

	assert.ErrorIs(t, repo.UpdatePostWeight(ctx, "missing", 1), domain.ErrPersistence)
}

func TestLexicon_UpsertAndFold(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.PutLexiconWord(ctx, "Good", 2))
	require.NoError(t, repo.PutLexiconWord(ctx, "good", 3))
	require.NoError(t, repo.PutLexiconWord(ctx, "bad", -2))

	lexicon, err := repo.ListLexicon(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Lexicon{"good": 3, "bad": -2}, lexicon)
}

type pagedSearch struct {
	pages map[string]*domain.SearchPage
	fail  error
}

func (s *pagedSearch) Search(_ context.Context, q domain.SearchQuery) (*domain.SearchPage, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return s.pages[q.Cursor], nil
}

func TestRunCycle_EndToEnd(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	logger := discardLogger()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.CreateEvent(ctx, &domain.Event{ID: 1, Title: "Film night", Tags: "#film", WindowStart: &start, WindowEnd: &end}))
	require.NoError(t, repo.PutLexiconWord(ctx, "good", 3))
	require.NoError(t, repo.PutLexiconWord(ctx, "bad", -2))
	require.NoError(t, repo.PutLexiconWord(ctx, "love", 4))

	search := &pagedSearch{pages: map[string]*domain.SearchPage{
		"": {Posts: []domain.Post{
			{ID: "p1", Text: "this was a good movie but i hate the end of the day bad"},
			{ID: "p2", Text: "LOVE it"},
		}, Cursor: "n"},
		"n": {Posts: []domain.Post{{ID: "p2", Text: "LOVE it"}, {ID: "p3", Text: "no opinion"}}},
	}}

	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	scheduler := domain.NewScheduler(repo, repo, domain.NewPaginator(search, logger), clock, nil, logger)
	scorer := domain.NewScorer(repo, nil, logger)
	runner := domain.NewRunner(repo, scheduler, scorer, clock, time.Hour, nil, logger)

	res := runner.RunCycle(ctx, nil)
	assert.Equal(t, 3, res.PostsInserted)
	assert.Equal(t, 1, res.PostsRescored)

	events, err := repo.ListEvents(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinished, events[0].State)
	assert.Equal(t, 3, events[0].PostCount)

	posts, err := repo.ListPosts(ctx, nil)
	require.NoError(t, err)
	weights := map[string]int{}
	for _, p := range posts {
		weights[p.ID] = p.Weight
	}
	assert.Equal(t, map[string]int{"p1": 0, "p2": 4, "p3": 0}, weights)

	// A second cycle finds nothing new and nothing to rescore.
	res = runner.RunCycle(ctx, nil)
	assert.Zero(t, res.PostsInserted)
	assert.Zero(t, res.PostsRescored)

	// A failing search leaves the event ACTIVE.
	search.fail = domain.ErrRateLimited
	res = runner.RunCycle(ctx, nil)
	assert.Equal(t, 1, res.EventsFailed)
	events, err = repo.ListEvents(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, events[0].State)
}
