package dao

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VoteSettingDAO struct {
	db *gorm.DB
}

func NewVoteSettingDAO(db *gorm.DB) *VoteSettingDAO {
	return &VoteSettingDAO{
		db: db,
	}
}

// Resolve returns the applicable setting for an edition and category: the
// category-specific row wins, the edition-wide row (category 0) is the
// fallback.
func (d *VoteSettingDAO) Resolve(ctx context.Context, editionID, categoryID uint) (VoteSetting, error) {
	var setting VoteSetting

	if categoryID != 0 {
		err := d.db.WithContext(ctx).
			Where("edition_id = ? AND category_id = ?", editionID, categoryID).
			First(&setting).Error
		if err == nil {
			return setting, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return VoteSetting{}, err
		}
	}

	err := d.db.WithContext(ctx).
		Where("edition_id = ? AND category_id = 0", editionID).
		First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return VoteSetting{}, ErrSettingNotFound
		}
		return VoteSetting{}, err
	}

	return setting, nil
}

func (d *VoteSettingDAO) GetByScope(ctx context.Context, editionID, categoryID uint) (VoteSetting, error) {
	var setting VoteSetting
	err := d.db.WithContext(ctx).
		Where("edition_id = ? AND category_id = ?", editionID, categoryID).
		First(&setting).Error
	if err != nil {
		return VoteSetting{}, err
	}

	return setting, nil
}

// Upsert creates or replaces the setting for its (edition, category) scope.
func (d *VoteSettingDAO) Upsert(ctx context.Context, setting VoteSetting) (VoteSetting, error) {
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "edition_id"}, {Name: "category_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"is_paid", "vote_price", "free_votes_per_user", "max_votes_per_user",
				"max_votes_per_candidate", "single_vote_per_candidate",
				"vote_start", "vote_end", "payment_methods", "updated_at",
			}),
		}).
		Create(&setting).Error
	if err != nil {
		return VoteSetting{}, err
	}

	return setting, nil
}
