package bluesky

import (
	"time"

	"github.com/blackmichael/sentiment-collector/internal/domain"
)

// searchPostsResponse is the body of app.bsky.feed.searchPosts.
type searchPostsResponse struct {
	Cursor string     `json:"cursor,omitempty"`
	Posts  []postView `json:"posts"`
}

// postView is app.bsky.feed.defs#postView, trimmed to what we store.
type postView struct {
	URI       string      `json:"uri"`
	Author    profileView `json:"author"`
	Record    postRecord  `json:"record"`
	IndexedAt string      `json:"indexedAt"`
}

type profileView struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"displayName,omitempty"`
}

// postRecord is the parsed content of an app.bsky.feed.post record.
type postRecord struct {
	Text      string   `json:"text"`
	CreatedAt string   `json:"createdAt"`
	Langs     []string `json:"langs,omitempty"`
}

// toPost maps a post view onto the domain model. Bluesky profiles carry no
// location, so AuthorLocation stays empty. The first declared language is
// used as the author language.
func (p postView) toPost() domain.Post {
	post := domain.Post{
		ID:         p.URI,
		Text:       p.Record.Text,
		AuthorName: p.Author.DisplayName,
	}
	if post.AuthorName == "" {
		post.AuthorName = p.Author.Handle
	}
	if len(p.Record.Langs) > 0 {
		post.AuthorLanguage = p.Record.Langs[0]
	}
	post.CreatedAt = parseTimestamp(p.Record.CreatedAt)
	if post.CreatedAt.IsZero() {
		post.CreatedAt = parseTimestamp(p.IndexedAt)
	}
	return post
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
