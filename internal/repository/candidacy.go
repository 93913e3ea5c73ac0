package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/repository/dao"
)

type CandidacyDAO interface {
	GetByID(ctx context.Context, id uint) (dao.Candidacy, error)
	GetByNaturalKey(ctx context.Context, candidateID, editionID, categoryID uint) (dao.Candidacy, error)
	ListByEdition(ctx context.Context, editionID, categoryID uint) ([]dao.Candidacy, error)
	CountVotes(ctx context.Context, candidacyID uint) (int64, error)
}

type CandidacyRepository struct {
	dao CandidacyDAO
}

func NewCandidacyRepository(dao CandidacyDAO) *CandidacyRepository {
	return &CandidacyRepository{
		dao: dao,
	}
}

func (r *CandidacyRepository) daoToDomain(c dao.Candidacy) domain.Candidacy {
	return domain.Candidacy{
		ID:          c.ID,
		CandidateID: c.CandidateID,
		EditionID:   c.EditionID,
		CategoryID:  c.CategoryID,
		Status:      domain.CandidacyStatus(c.Status),
		VoteCount:   c.VoteCount,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (r *CandidacyRepository) GetByID(ctx context.Context, id uint) (domain.Candidacy, error) {
	candidacy, err := r.dao.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Candidacy{}, ErrCandidacyNotFound
		}
		return domain.Candidacy{}, fmt.Errorf("r.dao.GetByID -> %w", err)
	}

	return r.daoToDomain(candidacy), nil
}

func (r *CandidacyRepository) GetByNaturalKey(ctx context.Context, candidateID, editionID, categoryID uint) (domain.Candidacy, error) {
	candidacy, err := r.dao.GetByNaturalKey(ctx, candidateID, editionID, categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Candidacy{}, ErrCandidacyNotFound
		}
		return domain.Candidacy{}, fmt.Errorf("r.dao.GetByNaturalKey -> %w", err)
	}

	return r.daoToDomain(candidacy), nil
}

func (r *CandidacyRepository) ListByEdition(ctx context.Context, editionID, categoryID uint) ([]domain.Candidacy, error) {
	candidacies, err := r.dao.ListByEdition(ctx, editionID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.ListByEdition -> %w", err)
	}

	result := make([]domain.Candidacy, len(candidacies))
	for i, c := range candidacies {
		result[i] = r.daoToDomain(c)
	}

	return result, nil
}

func (r *CandidacyRepository) CountVotes(ctx context.Context, candidacyID uint) (int, error) {
	count, err := r.dao.CountVotes(ctx, candidacyID)
	if err != nil {
		return 0, fmt.Errorf("r.dao.CountVotes -> %w", err)
	}

	return int(count), nil
}
