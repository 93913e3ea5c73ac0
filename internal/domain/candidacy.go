package domain

import "time"

type CandidacyStatus string

const (
	CandidacyPending    CandidacyStatus = "pending"
	CandidacyValidated  CandidacyStatus = "validated"
	CandidacyRejected   CandidacyStatus = "rejected"
	CandidacyEliminated CandidacyStatus = "eliminated"
	CandidacyFinalist   CandidacyStatus = "finalist"
	CandidacyWinner     CandidacyStatus = "winner"
)

// Candidacy is a candidate's entry in one category of one edition.
// VoteCount is an aggregate maintained by the reconciliation and free-vote
// paths only; it is never written from user input.
type Candidacy struct {
	ID          uint            `json:"id"`
	CandidateID uint            `json:"candidate_id"`
	EditionID   uint            `json:"edition_id"`
	CategoryID  uint            `json:"category_id"`
	Status      CandidacyStatus `json:"status"`
	VoteCount   int             `json:"vote_count"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
