package domain

import "time"

// Post is a single collected social-media item tied to one event.
type Post struct {
	// ID is the source platform's identifier (for Bluesky, the post AT-URI).
	// It is globally unique regardless of event.
	ID string

	Text           string
	AuthorName     string
	CreatedAt      time.Time
	AuthorLocation string
	AuthorLanguage string

	// EventID is set at insertion and never reassigned.
	EventID int64

	// Weight is the sentiment score. Unscored posts carry 0.
	Weight int
}

// Lexicon maps case-folded words to integer sentiment weights.
type Lexicon map[string]int
