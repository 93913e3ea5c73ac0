package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/repository/dao"
)

type VoteDAO interface {
	CountByVoterEdition(ctx context.Context, voterID, editionID uint) (int64, error)
	CountFreeByVoterEdition(ctx context.Context, voterID, editionID uint) (int64, error)
	CountByCandidateCategory(ctx context.Context, candidateID, editionID, categoryID uint) (int64, error)
	HasVoterVotedCandidate(ctx context.Context, voterID, candidateID, categoryID uint) (bool, error)
	ListByPaymentID(ctx context.Context, paymentID uint) ([]dao.Vote, error)
	CreateFreeVotes(ctx context.Context, batch dao.FreeVoteBatch) ([]dao.Vote, error)
}

type VoteRepository struct {
	dao VoteDAO
}

func NewVoteRepository(dao VoteDAO) *VoteRepository {
	return &VoteRepository{
		dao: dao,
	}
}

func (r *VoteRepository) daoToDomain(v dao.Vote) domain.Vote {
	vote := domain.Vote{
		ID:          v.ID,
		CandidacyID: v.CandidacyID,
		CandidateID: v.CandidateID,
		EditionID:   v.EditionID,
		CategoryID:  v.CategoryID,
		VoterID:     v.VoterID,
		PaymentID:   v.PaymentID,
		IsPaid:      v.IsPaid,
		IPAddress:   v.IPAddress,
		UserAgent:   v.UserAgent,
		CreatedAt:   v.CreatedAt,
	}
	if v.DeletedAt.Valid {
		deletedAt := v.DeletedAt.Time
		vote.DeletedAt = &deletedAt
	}

	return vote
}

func (r *VoteRepository) daosToDomain(votes []dao.Vote) []domain.Vote {
	result := make([]domain.Vote, len(votes))
	for i, v := range votes {
		result[i] = r.daoToDomain(v)
	}

	return result
}

func (r *VoteRepository) CountByVoterEdition(ctx context.Context, voterID, editionID uint) (int, error) {
	count, err := r.dao.CountByVoterEdition(ctx, voterID, editionID)
	if err != nil {
		return 0, fmt.Errorf("r.dao.CountByVoterEdition -> %w", err)
	}

	return int(count), nil
}

func (r *VoteRepository) CountFreeByVoterEdition(ctx context.Context, voterID, editionID uint) (int, error) {
	count, err := r.dao.CountFreeByVoterEdition(ctx, voterID, editionID)
	if err != nil {
		return 0, fmt.Errorf("r.dao.CountFreeByVoterEdition -> %w", err)
	}

	return int(count), nil
}

func (r *VoteRepository) CountByCandidateCategory(ctx context.Context, candidateID, editionID, categoryID uint) (int, error) {
	count, err := r.dao.CountByCandidateCategory(ctx, candidateID, editionID, categoryID)
	if err != nil {
		return 0, fmt.Errorf("r.dao.CountByCandidateCategory -> %w", err)
	}

	return int(count), nil
}

func (r *VoteRepository) HasVoterVotedCandidate(ctx context.Context, voterID, candidateID, categoryID uint) (bool, error) {
	voted, err := r.dao.HasVoterVotedCandidate(ctx, voterID, candidateID, categoryID)
	if err != nil {
		return false, fmt.Errorf("r.dao.HasVoterVotedCandidate -> %w", err)
	}

	return voted, nil
}

func (r *VoteRepository) ListByPaymentID(ctx context.Context, paymentID uint) ([]domain.Vote, error) {
	votes, err := r.dao.ListByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ListByPaymentID -> %w", err)
	}

	return r.daosToDomain(votes), nil
}

// CreateFreeVotes inserts the batch atomically; limit sentinels pass through
// unwrapped so the service can translate them into policy violations.
func (r *VoteRepository) CreateFreeVotes(ctx context.Context, batch dao.FreeVoteBatch) ([]domain.Vote, error) {
	votes, err := r.dao.CreateFreeVotes(ctx, batch)
	if err != nil {
		if errors.Is(err, ErrUserLimitReached) ||
			errors.Is(err, ErrCandidateLimitReached) ||
			errors.Is(err, ErrDuplicateVote) ||
			errors.Is(err, ErrNoFreeVotesLeft) ||
			errors.Is(err, ErrCategoryRequired) {
			return nil, err
		}
		return nil, fmt.Errorf("r.dao.CreateFreeVotes -> %w", err)
	}

	return r.daosToDomain(votes), nil
}
