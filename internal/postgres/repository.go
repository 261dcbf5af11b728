package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blackmichael/sentiment-collector/internal/domain"
	_ "github.com/lib/pq"
)

// Repository implements domain.Store using PostgreSQL.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository connects to PostgreSQL at the given URL, verifies the
// connection, and returns a new Repository. The caller should call Close
// when the repository is no longer needed.
func NewRepository(databaseURL string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return newRepository(db, logger), nil
}

func newRepository(db *sql.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id           BIGINT PRIMARY KEY,
		title        TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		tags         TEXT NOT NULL,
		window_start TIMESTAMPTZ,
		window_end   TIMESTAMPTZ,
		state        TEXT NOT NULL DEFAULT 'PENDING'
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id              TEXT PRIMARY KEY,
		event_id        BIGINT NOT NULL,
		text            TEXT NOT NULL DEFAULT '',
		author_name     TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		author_location TEXT NOT NULL DEFAULT '',
		author_language TEXT NOT NULL DEFAULT '',
		weight          INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS posts_event_id_idx ON posts (event_id)`,
	`CREATE TABLE IF NOT EXISTS lexicon (
		word   TEXT PRIMARY KEY,
		weight INTEGER NOT NULL
	)`,
}

// EnsureSchema creates the events, posts, and lexicon tables if absent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, q := range schema {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%w: ensure schema: %w", domain.ErrPersistence, err)
		}
	}
	return nil
}

const selectEvents = `
	SELECT e.id, e.title, e.description, e.tags, e.window_start, e.window_end, e.state,
		(SELECT COUNT(*) FROM posts p WHERE p.event_id = e.id) AS post_count
	FROM events e`

// ListEvents returns all events, or the single event with the given id.
// Rows that fail to scan or carry an unknown state are logged and skipped.
func (r *Repository) ListEvents(ctx context.Context, id *int64) ([]domain.Event, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if id != nil {
		rows, err = r.db.QueryContext(ctx, selectEvents+` WHERE e.id = $1`, *id)
	} else {
		rows, err = r.db.QueryContext(ctx, selectEvents+` ORDER BY e.id`)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e          domain.Event
			start, end sql.NullTime
			state      string
		)
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.Tags, &start, &end, &state, &e.PostCount); err != nil {
			r.logger.Error("skipping malformed event row", "error", err)
			continue
		}
		e.State = domain.CollectionState(strings.ToUpper(state))
		if !e.State.Valid() {
			r.logger.Error("skipping event with unknown state", "event_id", e.ID, "state", state)
			continue
		}
		if start.Valid {
			t := start.Time
			e.WindowStart = &t
		}
		if end.Valid {
			t := end.Time
			e.WindowEnd = &t
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate events: %w", domain.ErrPersistence, err)
	}

	r.logger.Info("events read", "count", len(events))
	return events, nil
}

// SetEventState updates the collection state of an event.
func (r *Repository) SetEventState(ctx context.Context, id int64, state domain.CollectionState) error {
	res, err := r.db.ExecContext(ctx, `UPDATE events SET state = $1 WHERE id = $2`, string(state), id)
	if err != nil {
		return fmt.Errorf("%w: update event %d state: %w", domain.ErrPersistence, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: update event %d state: %w", domain.ErrPersistence, id, domain.ErrEventNotFound)
	}
	return nil
}

// InsertIfAbsent inserts the post unless its id already exists.
func (r *Repository) InsertIfAbsent(ctx context.Context, post *domain.Post) (bool, error) {
	query := `
		INSERT INTO posts (id, event_id, text, author_name, created_at, author_location, author_language, weight)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		post.ID,
		post.EventID,
		post.Text,
		post.AuthorName,
		post.CreatedAt.UTC(),
		post.AuthorLocation,
		post.AuthorLanguage,
		post.Weight,
	)
	if err != nil {
		return false, fmt.Errorf("%w: insert post %s: %w", domain.ErrPersistence, post.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: insert post %s: %w", domain.ErrPersistence, post.ID, err)
	}
	return n > 0, nil
}

// ListPosts returns all posts, or the posts of a single event.
// Rows that fail to scan are logged and skipped.
func (r *Repository) ListPosts(ctx context.Context, eventID *int64) ([]domain.Post, error) {
	query := `
		SELECT id, event_id, text, author_name, created_at, author_location, author_language, weight
		FROM posts`

	var (
		rows *sql.Rows
		err  error
	)
	if eventID != nil {
		rows, err = r.db.QueryContext(ctx, query+` WHERE event_id = $1 ORDER BY created_at, id`, *eventID)
	} else {
		rows, err = r.db.QueryContext(ctx, query+` ORDER BY created_at, id`)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query posts: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		var p domain.Post
		err := rows.Scan(
			&p.ID,
			&p.EventID,
			&p.Text,
			&p.AuthorName,
			&p.CreatedAt,
			&p.AuthorLocation,
			&p.AuthorLanguage,
			&p.Weight,
		)
		if err != nil {
			r.logger.Error("skipping malformed post row", "error", err)
			continue
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate posts: %w", domain.ErrPersistence, err)
	}

	r.logger.Info("posts read", "count", len(posts))
	return posts, nil
}

// UpdatePostWeight sets the sentiment weight of a post.
func (r *Repository) UpdatePostWeight(ctx context.Context, postID string, weight int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE posts SET weight = $1 WHERE id = $2`, weight, postID)
	if err != nil {
		return fmt.Errorf("%w: update post %s weight: %w", domain.ErrPersistence, postID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: update post %s weight: no such post", domain.ErrPersistence, postID)
	}
	return nil
}

// ListLexicon returns every lexicon word, lower-cased, with its weight.
func (r *Repository) ListLexicon(ctx context.Context) (domain.Lexicon, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT word, weight FROM lexicon`)
	if err != nil {
		return nil, fmt.Errorf("%w: query lexicon: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	lexicon := make(domain.Lexicon)
	for rows.Next() {
		var (
			word   string
			weight int
		)
		if err := rows.Scan(&word, &weight); err != nil {
			r.logger.Error("skipping malformed lexicon row", "error", err)
			continue
		}
		lexicon[strings.ToLower(word)] = weight
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate lexicon: %w", domain.ErrPersistence, err)
	}

	r.logger.Info("lexicon read", "count", len(lexicon))
	return lexicon, nil
}

// CreateEvent inserts an event. It is used to seed fixtures; the collector
// never creates events itself.
func (r *Repository) CreateEvent(ctx context.Context, e *domain.Event) error {
	state := e.State
	if state == "" {
		state = domain.StatePending
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (id, title, description, tags, window_start, window_end, state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.Title, e.Description, e.Tags, nullTime(e.WindowStart), nullTime(e.WindowEnd), string(state),
	)
	if err != nil {
		return fmt.Errorf("%w: create event %d: %w", domain.ErrPersistence, e.ID, err)
	}
	return nil
}

// DeleteEvent removes an event by id.
func (r *Repository) DeleteEvent(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%w: delete event %d: %w", domain.ErrPersistence, id, err)
	}
	return nil
}

// DeletePost removes a post by id.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%w: delete post %s: %w", domain.ErrPersistence, id, err)
	}
	return nil
}

// PutLexiconWord upserts a lexicon word. The word is stored lower-cased.
func (r *Repository) PutLexiconWord(ctx context.Context, word string, weight int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lexicon (word, weight)
		VALUES ($1, $2)
		ON CONFLICT (word) DO UPDATE SET weight = $2`,
		strings.ToLower(word), weight,
	)
	if err != nil {
		return fmt.Errorf("%w: put lexicon word %q: %w", domain.ErrPersistence, word, err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
