package domain

import "errors"

var (
	// ErrConfiguration is fatal and prevents startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrUsage is returned for an invalid invocation of the entrypoint.
	ErrUsage = errors.New("usage error")

	// ErrFetchFailed is returned by the paginator when the search collaborator
	// fails mid-pagination. No partial result accompanies it.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrRateLimited is returned by a search client when the remote side
	// throttles the caller.
	ErrRateLimited = errors.New("rate limited")

	// ErrPersistence wraps failures reported by the persistence collaborator.
	// The operation's effect must be treated as not applied.
	ErrPersistence = errors.New("persistence error")

	ErrEventNotFound = errors.New("event not found")
)
