package domain

import "time"

// Vote is immutable once created; moderation soft-deletes, never edits.
// VoterID is nil for anonymous paid voters, PaymentID is nil for free votes.
type Vote struct {
	ID          uint       `json:"id"`
	CandidacyID uint       `json:"candidacy_id"`
	CandidateID uint       `json:"candidate_id"`
	EditionID   uint       `json:"edition_id"`
	CategoryID  uint       `json:"category_id"`
	VoterID     *uint      `json:"voter_id,omitempty"`
	PaymentID   *uint      `json:"payment_id,omitempty"`
	IsPaid      bool       `json:"is_paid"`
	IPAddress   string     `json:"-"`
	UserAgent   string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	DeletedAt   *time.Time `json:"-"`
}
