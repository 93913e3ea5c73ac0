package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/repository/dao"
)

var (
	ErrPaymentNotFound         = dao.ErrPaymentNotFound
	ErrCandidacyNotFound       = dao.ErrCandidacyNotFound
	ErrSettingNotFound         = dao.ErrSettingNotFound
	ErrPaymentNotResubmittable = dao.ErrPaymentNotResubmittable
	ErrCategoryRequired        = dao.ErrCategoryRequired
	ErrDuplicateEvent          = dao.ErrDuplicateEvent
	ErrUserLimitReached        = dao.ErrUserLimitReached
	ErrCandidateLimitReached   = dao.ErrCandidateLimitReached
	ErrDuplicateVote           = dao.ErrDuplicateVote
	ErrNoFreeVotesLeft         = dao.ErrNoFreeVotesLeft
)

type PaymentDAO interface {
	Create(ctx context.Context, payment dao.Payment) (dao.Payment, error)
	GetByID(ctx context.Context, id uint) (dao.Payment, error)
	GetByToken(ctx context.Context, token string) (dao.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (dao.Payment, error)
	AttachTransaction(ctx context.Context, paymentID uint, transactionID string) error
	ApproveAndMaterialize(ctx context.Context, paymentID uint, now time.Time) (bool, error)
	TransitionStatus(ctx context.Context, paymentID uint, from []string, to string) (bool, error)
	MergeMetadata(ctx context.Context, paymentID uint, patch datatypes.JSONMap) error
	AppendToList(ctx context.Context, paymentID uint, key string, entry map[string]any) error
}

type PaymentRepository struct {
	dao PaymentDAO
}

func NewPaymentRepository(dao PaymentDAO) *PaymentRepository {
	return &PaymentRepository{
		dao: dao,
	}
}

func (r *PaymentRepository) domainToDao(p domain.Payment) dao.Payment {
	daoPayment := dao.Payment{
		ID:            p.ID,
		Token:         p.Token,
		Reference:     p.Reference,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        string(p.Status),
		VotesCount:    p.VotesCount,
		CandidateID:   p.CandidateID,
		EditionID:     p.EditionID,
		CategoryID:    p.CategoryID,
		CustomerEmail: p.CustomerEmail,
		CustomerPhone: p.CustomerPhone,
		Firstname:     p.Firstname,
		Lastname:      p.Lastname,
		ExpiresAt:     p.ExpiresAt,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.TransactionID != "" {
		daoPayment.TransactionID = &p.TransactionID
	}
	if p.Metadata != nil {
		daoPayment.Metadata = datatypes.JSONMap(p.Metadata)
	}

	return daoPayment
}

func (r *PaymentRepository) daoToDomain(p dao.Payment) domain.Payment {
	payment := domain.Payment{
		ID:            p.ID,
		Token:         p.Token,
		Reference:     p.Reference,
		Amount:        p.Amount,
		Currency:      p.Currency,
		Status:        domain.PaymentStatus(p.Status),
		VotesCount:    p.VotesCount,
		CandidateID:   p.CandidateID,
		EditionID:     p.EditionID,
		CategoryID:    p.CategoryID,
		CustomerEmail: p.CustomerEmail,
		CustomerPhone: p.CustomerPhone,
		Firstname:     p.Firstname,
		Lastname:      p.Lastname,
		ExpiresAt:     p.ExpiresAt,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.TransactionID != nil {
		payment.TransactionID = *p.TransactionID
	}
	if p.Metadata != nil {
		payment.Metadata = map[string]any(p.Metadata)
	}

	return payment
}

func (r *PaymentRepository) Create(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	created, err := r.dao.Create(ctx, r.domainToDao(payment))
	if err != nil {
		return domain.Payment{}, fmt.Errorf("r.dao.Create -> %w", err)
	}

	return r.daoToDomain(created), nil
}

func (r *PaymentRepository) GetByToken(ctx context.Context, token string) (domain.Payment, error) {
	payment, err := r.dao.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Payment{}, ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("r.dao.GetByToken -> %w", err)
	}

	return r.daoToDomain(payment), nil
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (domain.Payment, error) {
	payment, err := r.dao.GetByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Payment{}, ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("r.dao.GetByTransactionID -> %w", err)
	}

	return r.daoToDomain(payment), nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uint) (domain.Payment, error) {
	payment, err := r.dao.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Payment{}, ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("r.dao.GetByID -> %w", err)
	}

	return r.daoToDomain(payment), nil
}

func (r *PaymentRepository) AttachTransaction(ctx context.Context, paymentID uint, transactionID string) error {
	err := r.dao.AttachTransaction(ctx, paymentID, transactionID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotResubmittable) {
			return ErrPaymentNotResubmittable
		}
		return fmt.Errorf("r.dao.AttachTransaction -> %w", err)
	}

	return nil
}

func (r *PaymentRepository) ApproveAndMaterialize(ctx context.Context, paymentID uint, now time.Time) (bool, error) {
	claimed, err := r.dao.ApproveAndMaterialize(ctx, paymentID, now)
	if err != nil {
		if errors.Is(err, ErrCategoryRequired) {
			return false, ErrCategoryRequired
		}
		return false, fmt.Errorf("r.dao.ApproveAndMaterialize -> %w", err)
	}

	return claimed, nil
}

func (r *PaymentRepository) TransitionStatus(ctx context.Context, paymentID uint, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error) {
	fromStatuses := make([]string, len(from))
	for i, s := range from {
		fromStatuses[i] = string(s)
	}

	won, err := r.dao.TransitionStatus(ctx, paymentID, fromStatuses, string(to))
	if err != nil {
		return false, fmt.Errorf("r.dao.TransitionStatus -> %w", err)
	}

	return won, nil
}

func (r *PaymentRepository) MergeMetadata(ctx context.Context, paymentID uint, patch map[string]any) error {
	if err := r.dao.MergeMetadata(ctx, paymentID, datatypes.JSONMap(patch)); err != nil {
		return fmt.Errorf("r.dao.MergeMetadata -> %w", err)
	}

	return nil
}

func (r *PaymentRepository) AppendToList(ctx context.Context, paymentID uint, key string, entry map[string]any) error {
	if err := r.dao.AppendToList(ctx, paymentID, key, entry); err != nil {
		return fmt.Errorf("r.dao.AppendToList -> %w", err)
	}

	return nil
}
