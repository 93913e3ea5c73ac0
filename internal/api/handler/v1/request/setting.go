package request

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

type UpsertVoteSettingRequest struct {
	CategoryID             uint       `json:"category_id,omitempty"`
	IsPaid                 bool       `json:"is_paid"`
	VotePrice              int64      `json:"vote_price"`
	FreeVotesPerUser       int        `json:"free_votes_per_user"`
	MaxVotesPerUser        int        `json:"max_votes_per_user"`
	MaxVotesPerCandidate   int        `json:"max_votes_per_candidate"`
	SingleVotePerCandidate bool       `json:"single_vote_per_candidate"`
	VoteStart              *time.Time `json:"vote_start,omitempty"`
	VoteEnd                *time.Time `json:"vote_end,omitempty"`
	PaymentMethods         string     `json:"payment_methods"`
}

func (req *UpsertVoteSettingRequest) Validate() error {
	err := validation.ValidateStruct(
		req,
		validation.Field(&req.VotePrice, validation.Min(0)),
		validation.Field(&req.FreeVotesPerUser, validation.Min(0)),
		validation.Field(&req.MaxVotesPerUser, validation.Min(0)),
		validation.Field(&req.MaxVotesPerCandidate, validation.Min(0)),
	)
	if err != nil {
		return err
	}

	if req.IsPaid && req.VotePrice <= 0 {
		return validation.Errors{
			"vote_price": errors.New("paid voting requires a positive vote price"),
		}
	}
	if req.VoteStart != nil && req.VoteEnd != nil && req.VoteEnd.Before(*req.VoteStart) {
		return validation.Errors{
			"vote_end": errors.New("vote window end precedes its start"),
		}
	}

	return nil
}
