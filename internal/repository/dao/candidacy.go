package dao

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CandidacyDAO struct {
	db *gorm.DB
}

func NewCandidacyDAO(db *gorm.DB) *CandidacyDAO {
	return &CandidacyDAO{
		db: db,
	}
}

func (d *CandidacyDAO) GetByID(ctx context.Context, id uint) (Candidacy, error) {
	var candidacy Candidacy
	err := d.db.WithContext(ctx).First(&candidacy, id).Error
	if err != nil {
		return Candidacy{}, err
	}

	return candidacy, nil
}

func (d *CandidacyDAO) GetByNaturalKey(ctx context.Context, candidateID, editionID, categoryID uint) (Candidacy, error) {
	var candidacy Candidacy
	err := d.db.WithContext(ctx).
		Where("candidate_id = ? AND edition_id = ? AND category_id = ?", candidateID, editionID, categoryID).
		First(&candidacy).Error
	if err != nil {
		return Candidacy{}, err
	}

	return candidacy, nil
}

// ListByEdition returns candidacies for an edition ordered by vote count,
// optionally narrowed to one category. categoryID 0 means all categories.
func (d *CandidacyDAO) ListByEdition(ctx context.Context, editionID, categoryID uint) ([]Candidacy, error) {
	query := d.db.WithContext(ctx).Where("edition_id = ?", editionID)
	if categoryID != 0 {
		query = query.Where("category_id = ?", categoryID)
	}

	var candidacies []Candidacy
	if err := query.Order("vote_count DESC, id ASC").Find(&candidacies).Error; err != nil {
		return nil, err
	}

	return candidacies, nil
}

// CountVotes counts the non-deleted vote rows referencing a candidacy. The
// aggregate on the candidacy row must converge to this number.
func (d *CandidacyDAO) CountVotes(ctx context.Context, candidacyID uint) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&Vote{}).
		Where("candidacy_id = ?", candidacyID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}

	return count, nil
}

// ensureCandidacy looks up the candidacy row for the natural key, lazily
// creating it when missing. Creation requires a category. A concurrent
// creation losing the unique-index race falls back to re-reading the winner.
func ensureCandidacy(tx *gorm.DB, candidateID, editionID, categoryID uint) (Candidacy, error) {
	var candidacy Candidacy
	err := tx.Where("candidate_id = ? AND edition_id = ? AND category_id = ?", candidateID, editionID, categoryID).
		First(&candidacy).Error
	if err == nil {
		return candidacy, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Candidacy{}, fmt.Errorf("tx.First -> %w", err)
	}

	if categoryID == 0 {
		return Candidacy{}, ErrCategoryRequired
	}

	candidacy = Candidacy{
		CandidateID: candidateID,
		EditionID:   editionID,
		CategoryID:  categoryID,
		Status:      "validated",
	}
	// ON CONFLICT DO NOTHING keeps the enclosing transaction usable when a
	// concurrent insert wins the unique-index race; a raised unique violation
	// would abort it and fail every statement after.
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidacy)
	if res.Error != nil {
		return Candidacy{}, fmt.Errorf("tx.Create -> %w", res.Error)
	}
	if res.RowsAffected == 0 {
		err = tx.Where("candidate_id = ? AND edition_id = ? AND category_id = ?", candidateID, editionID, categoryID).
			First(&candidacy).Error
		if err != nil {
			return Candidacy{}, fmt.Errorf("tx.First after conflict -> %w", err)
		}
	}

	return candidacy, nil
}
