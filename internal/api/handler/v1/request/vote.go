package request

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

const maxVotesPerRequest = 1000

type CastVoteRequest struct {
	CandidateID uint `json:"candidate_id"`
	EditionID   uint `json:"edition_id"`
	CategoryID  uint `json:"category_id,omitempty"`
	VotesCount  int  `json:"votes_count"`
}

func (req *CastVoteRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.CandidateID, validation.Required, validation.Min(uint(1))),
		validation.Field(&req.EditionID, validation.Required, validation.Min(uint(1))),
		validation.Field(&req.CategoryID, validation.Min(uint(1)).Error("must be a positive integer when provided")),
		validation.Field(&req.VotesCount, validation.Required, validation.Min(1), validation.Max(maxVotesPerRequest)),
	)
}
