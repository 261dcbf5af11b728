package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSearch serves pages keyed by the cursor that requests them. The first
// page is keyed by "".
type fakeSearch struct {
	pages map[string]*SearchPage
	// failOn makes the request for this cursor fail.
	failOn map[string]error
	// onSearch runs before each request is served.
	onSearch func()
	queries  []SearchQuery
}

func (f *fakeSearch) Search(ctx context.Context, q SearchQuery) (*SearchPage, error) {
	f.queries = append(f.queries, q)
	if f.onSearch != nil {
		f.onSearch()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := f.failOn[q.Cursor]; ok {
		return nil, err
	}
	page, ok := f.pages[q.Cursor]
	if !ok {
		return nil, errors.New("unknown cursor " + q.Cursor)
	}
	return page, nil
}

type stateWrite struct {
	ID    int64
	State CollectionState
}

type memoryStore struct {
	mu sync.Mutex

	events  map[int64]*Event
	posts   map[string]*Post
	order   []string
	lexicon Lexicon

	stateWrites  []stateWrite
	weightWrites map[string]int

	setStateErr  error
	insertErr    error
	updateErr    map[string]error
	listEventErr error
	lexiconErr   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:       make(map[int64]*Event),
		posts:        make(map[string]*Post),
		lexicon:      Lexicon{},
		weightWrites: make(map[string]int),
		updateErr:    make(map[string]error),
	}
}

func (m *memoryStore) addEvent(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = &e
}

func (m *memoryStore) addPost(p Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.ID] = &p
	m.order = append(m.order, p.ID)
}

func (m *memoryStore) event(id int64) Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.events[id]
}

func (m *memoryStore) ListEvents(_ context.Context, id *int64) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listEventErr != nil {
		return nil, m.listEventErr
	}
	var out []Event
	for _, e := range m.events {
		if id != nil && e.ID != *id {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) SetEventState(ctx context.Context, id int64, state CollectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.setStateErr != nil {
		return m.setStateErr
	}
	m.stateWrites = append(m.stateWrites, stateWrite{ID: id, State: state})
	if e, ok := m.events[id]; ok {
		e.State = state
	}
	return nil
}

func (m *memoryStore) InsertIfAbsent(_ context.Context, post *Post) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if _, ok := m.posts[post.ID]; ok {
		return false, nil
	}
	p := *post
	m.posts[p.ID] = &p
	m.order = append(m.order, p.ID)
	return true, nil
}

func (m *memoryStore) ListPosts(_ context.Context, eventID *int64) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Post
	for _, id := range m.order {
		p := m.posts[id]
		if eventID != nil && p.EventID != *eventID {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memoryStore) UpdatePostWeight(ctx context.Context, postID string, weight int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.updateErr[postID]; err != nil {
		return err
	}
	m.weightWrites[postID] = weight
	if p, ok := m.posts[postID]; ok {
		p.Weight = weight
	}
	return nil
}

func (m *memoryStore) ListLexicon(_ context.Context) (Lexicon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lexiconErr != nil {
		return nil, m.lexiconErr
	}
	out := make(Lexicon, len(m.lexicon))
	for k, v := range m.lexicon {
		out[k] = v
	}
	return out, nil
}

type countingRecorder struct {
	processed   map[CollectionState]int
	inserted    int
	fetchFailed int
	rescored    int
	cycles      int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{processed: make(map[CollectionState]int)}
}

func (c *countingRecorder) EventProcessed(s CollectionState) { c.processed[s]++ }
func (c *countingRecorder) PostsInserted(n int)              { c.inserted += n }
func (c *countingRecorder) FetchFailed()                     { c.fetchFailed++ }
func (c *countingRecorder) PostsRescored(n int)              { c.rescored += n }
func (c *countingRecorder) CycleCompleted()                  { c.cycles++ }
