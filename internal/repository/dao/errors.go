package dao

import "errors"

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrCandidacyNotFound = errors.New("candidacy not found")
	ErrSettingNotFound   = errors.New("vote setting not configured")

	// ErrPaymentNotResubmittable is returned when a gateway transaction is
	// attached to a payment that already reached a terminal state.
	ErrPaymentNotResubmittable = errors.New("payment is not in a submittable state")

	// ErrCategoryRequired is returned when vote materialization would need to
	// lazily create a candidacy but the payment carries no category.
	ErrCategoryRequired = errors.New("category is required to create a candidacy")

	// ErrDuplicateEvent is returned when a webhook event with the same
	// provider event id has already been recorded.
	ErrDuplicateEvent = errors.New("gateway event already recorded")

	// Policy re-check failures raised inside the free-vote transaction.
	ErrUserLimitReached      = errors.New("per-user vote limit reached")
	ErrCandidateLimitReached = errors.New("per-candidate vote limit reached")
	ErrDuplicateVote         = errors.New("voter has already voted for this candidate")
	ErrNoFreeVotesLeft       = errors.New("no free votes left")
)
