package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VoteDAO struct {
	db *gorm.DB
}

func NewVoteDAO(db *gorm.DB) *VoteDAO {
	return &VoteDAO{
		db: db,
	}
}

func (d *VoteDAO) CountByVoterEdition(ctx context.Context, voterID, editionID uint) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Vote{}).
		Where("voter_id = ? AND edition_id = ?", voterID, editionID).
		Count(&count).Error

	return count, err
}

func (d *VoteDAO) CountFreeByVoterEdition(ctx context.Context, voterID, editionID uint) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Vote{}).
		Where("voter_id = ? AND edition_id = ? AND payment_id IS NULL", voterID, editionID).
		Count(&count).Error

	return count, err
}

func (d *VoteDAO) CountByCandidateCategory(ctx context.Context, candidateID, editionID, categoryID uint) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Vote{}).
		Where("candidate_id = ? AND edition_id = ? AND category_id = ?", candidateID, editionID, categoryID).
		Count(&count).Error

	return count, err
}

func (d *VoteDAO) HasVoterVotedCandidate(ctx context.Context, voterID, candidateID, categoryID uint) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Vote{}).
		Where("voter_id = ? AND candidate_id = ? AND category_id = ?", voterID, candidateID, categoryID).
		Count(&count).Error

	return count > 0, err
}

func (d *VoteDAO) ListByPaymentID(ctx context.Context, paymentID uint) ([]Vote, error) {
	var votes []Vote
	err := d.db.WithContext(ctx).Where("payment_id = ?", paymentID).Find(&votes).Error
	if err != nil {
		return nil, err
	}

	return votes, nil
}

// FreeVoteBatch carries one free-vote insertion plus the limits that must be
// re-verified inside the transaction, closing the race between the policy
// check and the write.
type FreeVoteBatch struct {
	CandidateID uint
	EditionID   uint
	CategoryID  uint
	VoterID     uint
	Count       int
	IPAddress   string
	UserAgent   string

	SettingID              uint
	FreeVotesPerUser       int
	MaxVotesPerUser        int
	MaxVotesPerCandidate   int
	SingleVotePerCandidate bool
}

// CreateFreeVotes inserts a batch of free votes and bumps the candidacy
// counter atomically. All caps are re-checked with transaction-local counts;
// a violated cap aborts the whole batch.
func (d *VoteDAO) CreateFreeVotes(ctx context.Context, batch FreeVoteBatch) ([]Vote, error) {
	var created []Vote

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		// Concurrent batches in the same scope serialize on the setting row,
		// so the cap counts below see each other's committed writes.
		if batch.SettingID != 0 {
			var setting VoteSetting
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&setting, batch.SettingID).Error; err != nil {
				return err
			}
		}

		if batch.MaxVotesPerUser > 0 {
			var count int64
			err := tx.Model(&Vote{}).
				Where("voter_id = ? AND edition_id = ?", batch.VoterID, batch.EditionID).
				Count(&count).Error
			if err != nil {
				return err
			}
			if int(count)+batch.Count > batch.MaxVotesPerUser {
				return ErrUserLimitReached
			}
		}

		if batch.MaxVotesPerCandidate > 0 {
			var count int64
			err := tx.Model(&Vote{}).
				Where("candidate_id = ? AND edition_id = ? AND category_id = ?", batch.CandidateID, batch.EditionID, batch.CategoryID).
				Count(&count).Error
			if err != nil {
				return err
			}
			if int(count)+batch.Count > batch.MaxVotesPerCandidate {
				return ErrCandidateLimitReached
			}
		}

		if batch.SingleVotePerCandidate {
			var count int64
			err := tx.Model(&Vote{}).
				Where("voter_id = ? AND candidate_id = ? AND category_id = ?", batch.VoterID, batch.CandidateID, batch.CategoryID).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				return ErrDuplicateVote
			}
		}

		var freeCount int64
		err := tx.Model(&Vote{}).
			Where("voter_id = ? AND edition_id = ? AND payment_id IS NULL", batch.VoterID, batch.EditionID).
			Count(&freeCount).Error
		if err != nil {
			return err
		}
		if int(freeCount)+batch.Count > batch.FreeVotesPerUser {
			return ErrNoFreeVotesLeft
		}

		candidacy, err := ensureCandidacy(tx, batch.CandidateID, batch.EditionID, batch.CategoryID)
		if err != nil {
			return err
		}

		votes := make([]Vote, batch.Count)
		for i := range votes {
			votes[i] = Vote{
				CandidacyID: candidacy.ID,
				CandidateID: batch.CandidateID,
				EditionID:   batch.EditionID,
				CategoryID:  candidacy.CategoryID,
				VoterID:     &batch.VoterID,
				IsPaid:      false,
				IPAddress:   batch.IPAddress,
				UserAgent:   batch.UserAgent,
				CreatedAt:   now,
			}
		}
		if err = tx.Create(&votes).Error; err != nil {
			return err
		}

		err = tx.Model(&Candidacy{}).Where("id = ?", candidacy.ID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", batch.Count)).Error
		if err != nil {
			return err
		}

		created = votes

		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}
