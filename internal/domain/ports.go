package domain

import "context"

// SearchQuery is a single request to the search collaborator.
type SearchQuery struct {
	// Tags is the tag expression, passed through verbatim.
	Tags string

	// Since and Until are optional calendar dates (YYYY-MM-DD).
	Since string
	Until string

	// Cursor is the continuation token from the previous page, empty for the
	// first page.
	Cursor string
}

// SearchPage is one page of search results.
type SearchPage struct {
	Posts []Post

	// Cursor is the continuation token. Empty means there are no more pages.
	Cursor string
}

// SearchClient is the search collaborator.
type SearchClient interface {
	// Search fetches one page of posts. Throttling by the remote side must be
	// reported as an error wrapping ErrRateLimited.
	Search(ctx context.Context, query SearchQuery) (*SearchPage, error)
}

// EventRepository defines persistence operations for events.
type EventRepository interface {
	// ListEvents returns all events, or only the event with the given id when
	// id is non-nil. Malformed rows are skipped.
	ListEvents(ctx context.Context, id *int64) ([]Event, error)

	// SetEventState writes the collection state of an event.
	SetEventState(ctx context.Context, id int64, state CollectionState) error
}

// PostRepository defines persistence operations for collected posts.
type PostRepository interface {
	// InsertIfAbsent stores the post unless a post with the same id already
	// exists. Returns true if a row was inserted.
	InsertIfAbsent(ctx context.Context, post *Post) (bool, error)

	// ListPosts returns all posts, or only posts of the given event when
	// eventID is non-nil. Malformed rows are skipped.
	ListPosts(ctx context.Context, eventID *int64) ([]Post, error)

	// UpdatePostWeight persists a new sentiment weight for a post.
	UpdatePostWeight(ctx context.Context, postID string, weight int) error
}

// LexiconRepository loads the sentiment lexicon.
type LexiconRepository interface {
	// ListLexicon returns every lexicon word (case-folded) and its weight.
	ListLexicon(ctx context.Context) (Lexicon, error)
}

// Store is the full persistence collaborator used by the runner.
type Store interface {
	EventRepository
	PostRepository
	LexiconRepository
}

// Recorder receives collection and scoring counts. Implementations must be
// cheap; they are called inline on the single worker.
type Recorder interface {
	EventProcessed(state CollectionState)
	PostsInserted(n int)
	FetchFailed()
	PostsRescored(n int)
	CycleCompleted()
}

type nopRecorder struct{}

func (nopRecorder) EventProcessed(CollectionState) {}
func (nopRecorder) PostsInserted(int)              {}
func (nopRecorder) FetchFailed()                   {}
func (nopRecorder) PostsRescored(int)              {}
func (nopRecorder) CycleCompleted()                {}
