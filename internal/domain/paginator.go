package domain

import (
	"context"
	"fmt"
	"log/slog"
)

// Paginator drives a SearchClient across pages and returns the unique posts
// of a query in first-seen order.
type Paginator struct {
	client SearchClient
	logger *slog.Logger
}

// NewPaginator creates a Paginator over the given search client.
func NewPaginator(client SearchClient, logger *slog.Logger) *Paginator {
	return &Paginator{client: client, logger: logger}
}

// FetchAll follows continuation tokens until the search client returns none.
// Posts whose id was already seen in an earlier page (or earlier in the same
// page) are dropped. Each call starts a fresh traversal with a fresh seen set.
//
// If any page fails, FetchAll returns an error wrapping ErrFetchFailed and no
// posts.
func (p *Paginator) FetchAll(ctx context.Context, query SearchQuery) ([]Post, error) {
	seen := make(map[string]struct{})
	var posts []Post

	query.Cursor = ""
	pages := 0
	for {
		page, err := p.client.Search(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("%w: tags %q page %d: %w", ErrFetchFailed, query.Tags, pages+1, err)
		}
		pages++
		if page == nil {
			break
		}

		dropped := 0
		for _, post := range page.Posts {
			if _, ok := seen[post.ID]; ok {
				dropped++
				continue
			}
			seen[post.ID] = struct{}{}
			posts = append(posts, post)
		}

		p.logger.Debug("fetched search page",
			"tags", query.Tags,
			"page", pages,
			"posts", len(page.Posts),
			"duplicates", dropped,
			"has_next", page.Cursor != "",
		)

		if page.Cursor == "" {
			break
		}
		query.Cursor = page.Cursor
	}

	return posts, nil
}
