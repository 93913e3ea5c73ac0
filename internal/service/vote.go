package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/repository"
	"github.com/fespa/contest-api/internal/repository/dao"
)

var (
	ErrSettingsNotConfigured = repository.ErrSettingNotFound
	ErrUserLimitReached      = repository.ErrUserLimitReached
	ErrCandidateLimitReached = repository.ErrCandidateLimitReached
	ErrDuplicateVote         = repository.ErrDuplicateVote
	ErrNoFreeVotesLeft       = repository.ErrNoFreeVotesLeft
	ErrCandidacyNotFound     = repository.ErrCandidacyNotFound
	ErrCategoryRequired      = repository.ErrCategoryRequired

	ErrVotingClosed = errors.New("voting window is closed")

	// ErrPaymentRequired is returned by the free path when the applicable
	// setting is paid; the caller must go through payment initiation.
	ErrPaymentRequired = errors.New("voting for this category is paid")

	// ErrPaymentNotRequired is the reverse: a payment intent was requested
	// where voting is free.
	ErrPaymentNotRequired = errors.New("voting for this category is free")
)

type VoteRepository interface {
	CountByVoterEdition(ctx context.Context, voterID, editionID uint) (int, error)
	CountFreeByVoterEdition(ctx context.Context, voterID, editionID uint) (int, error)
	CountByCandidateCategory(ctx context.Context, candidateID, editionID, categoryID uint) (int, error)
	HasVoterVotedCandidate(ctx context.Context, voterID, candidateID, categoryID uint) (bool, error)
	CreateFreeVotes(ctx context.Context, batch dao.FreeVoteBatch) ([]domain.Vote, error)
}

type VoteSettingRepository interface {
	Resolve(ctx context.Context, editionID, categoryID uint) (domain.VoteSetting, error)
	Upsert(ctx context.Context, setting domain.VoteSetting) (domain.VoteSetting, error)
}

type CandidacyRepository interface {
	GetByID(ctx context.Context, id uint) (domain.Candidacy, error)
	ListByEdition(ctx context.Context, editionID, categoryID uint) ([]domain.Candidacy, error)
}

// PolicyInput is one vote attempt to be judged against the applicable
// setting. VoterID is nil for anonymous paid voters; per-user rules are
// skipped for them.
type PolicyInput struct {
	VoterID     *uint
	CandidateID uint
	EditionID   uint
	CategoryID  uint
	Count       int
}

type CastVotesInput struct {
	VoterID     uint
	CandidateID uint
	EditionID   uint
	CategoryID  uint
	Count       int
	IPAddress   string
	UserAgent   string
}

type VoteService struct {
	repo        VoteRepository
	settingRepo VoteSettingRepository
	candRepo    CandidacyRepository
	now         func() time.Time
}

func NewVoteService(repo VoteRepository, settingRepo VoteSettingRepository, candRepo CandidacyRepository) *VoteService {
	return &VoteService{
		repo:        repo,
		settingRepo: settingRepo,
		candRepo:    candRepo,
		now:         time.Now,
	}
}

// CheckPolicy resolves the applicable setting and runs the window, cap and
// duplicate checks against current counts. These checks are advisory: the
// write paths re-verify them inside their transactions.
func (s *VoteService) CheckPolicy(ctx context.Context, input PolicyInput) (domain.VoteSetting, error) {
	setting, err := s.settingRepo.Resolve(ctx, input.EditionID, input.CategoryID)
	if err != nil {
		if errors.Is(err, ErrSettingsNotConfigured) {
			return domain.VoteSetting{}, ErrSettingsNotConfigured
		}
		return domain.VoteSetting{}, fmt.Errorf("s.settingRepo.Resolve -> %w", err)
	}

	if !setting.IsOpenAt(s.now()) {
		return domain.VoteSetting{}, ErrVotingClosed
	}

	if input.VoterID != nil && setting.MaxVotesPerUser > 0 {
		existing, err := s.repo.CountByVoterEdition(ctx, *input.VoterID, input.EditionID)
		if err != nil {
			return domain.VoteSetting{}, fmt.Errorf("s.repo.CountByVoterEdition -> %w", err)
		}
		if existing+input.Count > setting.MaxVotesPerUser {
			return domain.VoteSetting{}, ErrUserLimitReached
		}
	}

	if setting.MaxVotesPerCandidate > 0 {
		existing, err := s.repo.CountByCandidateCategory(ctx, input.CandidateID, input.EditionID, input.CategoryID)
		if err != nil {
			return domain.VoteSetting{}, fmt.Errorf("s.repo.CountByCandidateCategory -> %w", err)
		}
		if existing+input.Count > setting.MaxVotesPerCandidate {
			return domain.VoteSetting{}, ErrCandidateLimitReached
		}
	}

	if input.VoterID != nil && setting.SingleVotePerCandidate {
		voted, err := s.repo.HasVoterVotedCandidate(ctx, *input.VoterID, input.CandidateID, input.CategoryID)
		if err != nil {
			return domain.VoteSetting{}, fmt.Errorf("s.repo.HasVoterVotedCandidate -> %w", err)
		}
		if voted {
			return domain.VoteSetting{}, ErrDuplicateVote
		}
	}

	return setting, nil
}

// CastVotes is the free path: policy check, free-allowance check, then the
// atomic insert-and-increment. Paid settings are rejected with
// ErrPaymentRequired so the caller routes through payment initiation.
func (s *VoteService) CastVotes(ctx context.Context, input CastVotesInput) ([]domain.Vote, error) {
	setting, err := s.CheckPolicy(ctx, PolicyInput{
		VoterID:     &input.VoterID,
		CandidateID: input.CandidateID,
		EditionID:   input.EditionID,
		CategoryID:  input.CategoryID,
		Count:       input.Count,
	})
	if err != nil {
		return nil, err
	}

	if setting.IsPaid {
		return nil, ErrPaymentRequired
	}

	freeUsed, err := s.repo.CountFreeByVoterEdition(ctx, input.VoterID, input.EditionID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.CountFreeByVoterEdition -> %w", err)
	}
	if freeUsed+input.Count > setting.FreeVotesPerUser {
		return nil, ErrNoFreeVotesLeft
	}

	votes, err := s.repo.CreateFreeVotes(ctx, dao.FreeVoteBatch{
		CandidateID:            input.CandidateID,
		EditionID:              input.EditionID,
		CategoryID:             input.CategoryID,
		VoterID:                input.VoterID,
		Count:                  input.Count,
		IPAddress:              input.IPAddress,
		UserAgent:              input.UserAgent,
		SettingID:              setting.ID,
		FreeVotesPerUser:       setting.FreeVotesPerUser,
		MaxVotesPerUser:        setting.MaxVotesPerUser,
		MaxVotesPerCandidate:   setting.MaxVotesPerCandidate,
		SingleVotePerCandidate: setting.SingleVotePerCandidate,
	})
	if err != nil {
		if errors.Is(err, ErrUserLimitReached) ||
			errors.Is(err, ErrCandidateLimitReached) ||
			errors.Is(err, ErrDuplicateVote) ||
			errors.Is(err, ErrNoFreeVotesLeft) ||
			errors.Is(err, ErrCategoryRequired) {
			return nil, err
		}
		return nil, fmt.Errorf("s.repo.CreateFreeVotes -> %w", err)
	}

	return votes, nil
}

func (s *VoteService) GetCandidacy(ctx context.Context, id uint) (domain.Candidacy, error) {
	candidacy, err := s.candRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCandidacyNotFound) {
			return domain.Candidacy{}, ErrCandidacyNotFound
		}
		return domain.Candidacy{}, fmt.Errorf("s.candRepo.GetByID -> %w", err)
	}

	return candidacy, nil
}

// Leaderboard lists an edition's candidacies ordered by vote count,
// optionally narrowed to one category.
func (s *VoteService) Leaderboard(ctx context.Context, editionID, categoryID uint) ([]domain.Candidacy, error) {
	candidacies, err := s.candRepo.ListByEdition(ctx, editionID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("s.candRepo.ListByEdition -> %w", err)
	}

	return candidacies, nil
}

// UpsertSetting creates or updates the setting for an (edition, category)
// scope. Updates never touch already-cast votes; price and paid-flag changes
// only affect payments created afterwards.
func (s *VoteService) UpsertSetting(ctx context.Context, setting domain.VoteSetting) (domain.VoteSetting, error) {
	upserted, err := s.settingRepo.Upsert(ctx, setting)
	if err != nil {
		return domain.VoteSetting{}, fmt.Errorf("s.settingRepo.Upsert -> %w", err)
	}

	return upserted, nil
}
