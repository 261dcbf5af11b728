package domain

import (
	"context"
	"log/slog"
	"strings"
)

// Score averages the lexicon weights of the whitespace-delimited tokens of
// text. Tokens are lower-cased before lookup. The average uses Go integer
// division, which truncates toward zero. matched is false when no token is in
// the lexicon, in which case score is 0.
func Score(text string, lexicon Lexicon) (score int, matched bool) {
	sum, count := 0, 0
	for _, token := range strings.Fields(text) {
		weight, ok := lexicon[strings.ToLower(token)]
		if !ok {
			continue
		}
		sum += weight
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / count, true
}

// Scorer recomputes sentiment weights for stored posts.
type Scorer struct {
	posts    PostRepository
	recorder Recorder
	logger   *slog.Logger
}

// NewScorer creates a Scorer. A nil recorder disables metrics.
func NewScorer(posts PostRepository, recorder Recorder, logger *slog.Logger) *Scorer {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Scorer{posts: posts, recorder: recorder, logger: logger}
}

// RescoreAll scores every post against lexicon and persists the weight of
// posts whose score changed. Posts with no lexicon match keep their stored
// weight and are not written. Returns the number of posts written
// successfully; a failed write is logged and not counted.
func (s *Scorer) RescoreAll(ctx context.Context, posts []Post, lexicon Lexicon) int {
	updated := 0
	for i := range posts {
		post := &posts[i]
		score, matched := Score(post.Text, lexicon)
		if !matched || score == post.Weight {
			continue
		}

		if err := s.posts.UpdatePostWeight(ctx, post.ID, score); err != nil {
			s.logger.Error("failed to update post weight",
				"post_id", post.ID,
				"event_id", post.EventID,
				"weight", score,
				"error", err,
			)
			continue
		}
		post.Weight = score
		updated++
	}

	s.recorder.PostsRescored(updated)
	s.logger.Info("sentiment pass complete", "posts", len(posts), "updated", updated)
	return updated
}
