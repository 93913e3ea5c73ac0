package domain

import "time"

// VoteSetting governs pricing, caps and timing of voting for an edition,
// optionally narrowed to one category. CategoryID == 0 means the setting
// applies edition-wide unless a category-specific row overrides it.
// Caps set to 0 mean unlimited.
type VoteSetting struct {
	ID                     uint       `json:"id"`
	EditionID              uint       `json:"edition_id"`
	CategoryID             uint       `json:"category_id"`
	IsPaid                 bool       `json:"is_paid"`
	VotePrice              int64      `json:"vote_price"`
	FreeVotesPerUser       int        `json:"free_votes_per_user"`
	MaxVotesPerUser        int        `json:"max_votes_per_user"`
	MaxVotesPerCandidate   int        `json:"max_votes_per_candidate"`
	SingleVotePerCandidate bool       `json:"single_vote_per_candidate"`
	VoteStart              *time.Time `json:"vote_start,omitempty"`
	VoteEnd                *time.Time `json:"vote_end,omitempty"`
	PaymentMethods         string     `json:"payment_methods"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// IsOpenAt reports whether the voting window contains t. Nil bounds are
// unbounded; both bounds are inclusive.
func (s *VoteSetting) IsOpenAt(t time.Time) bool {
	if s.VoteStart != nil && t.Before(*s.VoteStart) {
		return false
	}
	if s.VoteEnd != nil && t.After(*s.VoteEnd) {
		return false
	}
	return true
}
