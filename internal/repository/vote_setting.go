package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/repository/dao"
)

type VoteSettingDAO interface {
	Resolve(ctx context.Context, editionID, categoryID uint) (dao.VoteSetting, error)
	GetByScope(ctx context.Context, editionID, categoryID uint) (dao.VoteSetting, error)
	Upsert(ctx context.Context, setting dao.VoteSetting) (dao.VoteSetting, error)
}

type VoteSettingRepository struct {
	dao VoteSettingDAO
}

func NewVoteSettingRepository(dao VoteSettingDAO) *VoteSettingRepository {
	return &VoteSettingRepository{
		dao: dao,
	}
}

func (r *VoteSettingRepository) domainToDao(s domain.VoteSetting) dao.VoteSetting {
	return dao.VoteSetting{
		ID:                     s.ID,
		EditionID:              s.EditionID,
		CategoryID:             s.CategoryID,
		IsPaid:                 s.IsPaid,
		VotePrice:              s.VotePrice,
		FreeVotesPerUser:       s.FreeVotesPerUser,
		MaxVotesPerUser:        s.MaxVotesPerUser,
		MaxVotesPerCandidate:   s.MaxVotesPerCandidate,
		SingleVotePerCandidate: s.SingleVotePerCandidate,
		VoteStart:              s.VoteStart,
		VoteEnd:                s.VoteEnd,
		PaymentMethods:         s.PaymentMethods,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

func (r *VoteSettingRepository) daoToDomain(s dao.VoteSetting) domain.VoteSetting {
	return domain.VoteSetting{
		ID:                     s.ID,
		EditionID:              s.EditionID,
		CategoryID:             s.CategoryID,
		IsPaid:                 s.IsPaid,
		VotePrice:              s.VotePrice,
		FreeVotesPerUser:       s.FreeVotesPerUser,
		MaxVotesPerUser:        s.MaxVotesPerUser,
		MaxVotesPerCandidate:   s.MaxVotesPerCandidate,
		SingleVotePerCandidate: s.SingleVotePerCandidate,
		VoteStart:              s.VoteStart,
		VoteEnd:                s.VoteEnd,
		PaymentMethods:         s.PaymentMethods,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}

func (r *VoteSettingRepository) Resolve(ctx context.Context, editionID, categoryID uint) (domain.VoteSetting, error) {
	setting, err := r.dao.Resolve(ctx, editionID, categoryID)
	if err != nil {
		if errors.Is(err, ErrSettingNotFound) {
			return domain.VoteSetting{}, ErrSettingNotFound
		}
		return domain.VoteSetting{}, fmt.Errorf("r.dao.Resolve -> %w", err)
	}

	return r.daoToDomain(setting), nil
}

func (r *VoteSettingRepository) GetByScope(ctx context.Context, editionID, categoryID uint) (domain.VoteSetting, error) {
	setting, err := r.dao.GetByScope(ctx, editionID, categoryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.VoteSetting{}, ErrSettingNotFound
		}
		return domain.VoteSetting{}, fmt.Errorf("r.dao.GetByScope -> %w", err)
	}

	return r.daoToDomain(setting), nil
}

func (r *VoteSettingRepository) Upsert(ctx context.Context, setting domain.VoteSetting) (domain.VoteSetting, error) {
	upserted, err := r.dao.Upsert(ctx, r.domainToDao(setting))
	if err != nil {
		return domain.VoteSetting{}, fmt.Errorf("r.dao.Upsert -> %w", err)
	}

	return r.daoToDomain(upserted), nil
}
