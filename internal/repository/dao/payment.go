package dao

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentDAO struct {
	db *gorm.DB
}

func NewPaymentDAO(db *gorm.DB) *PaymentDAO {
	return &PaymentDAO{
		db: db,
	}
}

func (d *PaymentDAO) Create(ctx context.Context, payment Payment) (Payment, error) {
	if err := d.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return Payment{}, err
	}

	return payment, nil
}

func (d *PaymentDAO) GetByID(ctx context.Context, id uint) (Payment, error) {
	var payment Payment
	if err := d.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		return Payment{}, err
	}

	return payment, nil
}

func (d *PaymentDAO) GetByToken(ctx context.Context, token string) (Payment, error) {
	var payment Payment
	if err := d.db.WithContext(ctx).Where("token = ?", token).First(&payment).Error; err != nil {
		return Payment{}, err
	}

	return payment, nil
}

func (d *PaymentDAO) GetByTransactionID(ctx context.Context, transactionID string) (Payment, error) {
	var payment Payment
	if err := d.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&payment).Error; err != nil {
		return Payment{}, err
	}

	return payment, nil
}

// AttachTransaction records the gateway-side transaction id and moves the
// payment to processing. Resubmission on a still-pending payment replaces the
// transaction id and keeps the superseded one in metadata; terminal payments
// are rejected with ErrPaymentNotResubmittable.
func (d *PaymentDAO) AttachTransaction(ctx context.Context, paymentID uint, transactionID string) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payment Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, paymentID).Error
		if err != nil {
			return fmt.Errorf("tx.First -> %w", err)
		}

		if payment.Status != string(statusPending) && payment.Status != string(statusProcessing) {
			return ErrPaymentNotResubmittable
		}

		if payment.TransactionID != nil && *payment.TransactionID != transactionID {
			superseded := appendToStringList(payment.Metadata, "superseded_transaction_ids", *payment.TransactionID)
			err = tx.Model(&Payment{}).Where("id = ?", paymentID).
				UpdateColumn("metadata", gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?", superseded)).Error
			if err != nil {
				return fmt.Errorf("tx.UpdateColumn metadata -> %w", err)
			}
		}

		err = tx.Model(&Payment{}).Where("id = ?", paymentID).
			Updates(map[string]any{
				"transaction_id": transactionID,
				"status":         string(statusProcessing),
			}).Error
		if err != nil {
			return fmt.Errorf("tx.Updates -> %w", err)
		}

		return nil
	})
}

// ApproveAndMaterialize is the exactly-once expansion of an approved payment
// into vote rows. The claim is an atomic conditional update: whichever caller
// flips the status out of pending/processing proceeds to insert votes and
// bump the candidacy counter in the same transaction; everyone else gets
// claimed == false and must not insert anything. A rollback of the vote
// insert also rolls the claim back, so no payment is ever left approved
// without its votes.
func (d *PaymentDAO) ApproveAndMaterialize(ctx context.Context, paymentID uint, now time.Time) (bool, error) {
	claimed := false

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Payment{}).
			Where("id = ? AND status IN ?", paymentID, []string{string(statusPending), string(statusProcessing)}).
			Updates(map[string]any{
				"status":  string(statusApproved),
				"paid_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("tx.Updates claim -> %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		claimed = true

		var payment Payment
		if err := tx.First(&payment, paymentID).Error; err != nil {
			return fmt.Errorf("tx.First -> %w", err)
		}

		candidacy, err := ensureCandidacy(tx, payment.CandidateID, payment.EditionID, payment.CategoryID)
		if err != nil {
			return fmt.Errorf("ensureCandidacy -> %w", err)
		}

		votes := make([]Vote, payment.VotesCount)
		for i := range votes {
			votes[i] = Vote{
				CandidacyID: candidacy.ID,
				CandidateID: payment.CandidateID,
				EditionID:   payment.EditionID,
				CategoryID:  candidacy.CategoryID,
				PaymentID:   &payment.ID,
				IsPaid:      true,
				CreatedAt:   now,
			}
		}
		if err = tx.Create(&votes).Error; err != nil {
			return fmt.Errorf("tx.Create votes -> %w", err)
		}

		err = tx.Model(&Candidacy{}).Where("id = ?", candidacy.ID).
			UpdateColumn("vote_count", gorm.Expr("vote_count + ?", payment.VotesCount)).Error
		if err != nil {
			return fmt.Errorf("tx.UpdateColumn vote_count -> %w", err)
		}

		marker := datatypes.JSONMap{"votes_created_at": now.UTC().Format(time.RFC3339)}
		err = tx.Model(&Payment{}).Where("id = ?", paymentID).
			UpdateColumn("metadata", gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?", marker)).Error
		if err != nil {
			return fmt.Errorf("tx.UpdateColumn metadata -> %w", err)
		}

		return nil
	})
	if err != nil {
		return false, err
	}

	return claimed, nil
}

// TransitionStatus performs a conditional status update and reports whether
// it won. Callers use it for the failed/cancelled/expired transitions, which
// are only legal from non-terminal states.
func (d *PaymentDAO) TransitionStatus(ctx context.Context, paymentID uint, from []string, to string) (bool, error) {
	res := d.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status IN ?", paymentID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// MergeMetadata merges the given keys into the payment's metadata without
// touching existing keys.
func (d *PaymentDAO) MergeMetadata(ctx context.Context, paymentID uint, patch datatypes.JSONMap) error {
	return d.db.WithContext(ctx).Model(&Payment{}).Where("id = ?", paymentID).
		UpdateColumn("metadata", gorm.Expr("COALESCE(metadata, '{}'::jsonb) || ?", patch)).Error
}

// AppendToList appends one entry to a list-valued metadata key, creating the
// list when absent. Used for the anomaly and webhook audit trails, which are
// append-only.
func (d *PaymentDAO) AppendToList(ctx context.Context, paymentID uint, key string, entry map[string]any) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("json.Marshal -> %w", err)
	}

	path := fmt.Sprintf("{%v}", key)
	listExpr := fmt.Sprintf("COALESCE(metadata->'%v', '[]'::jsonb)", key)

	return d.db.WithContext(ctx).Model(&Payment{}).Where("id = ?", paymentID).
		UpdateColumn("metadata", gorm.Expr(
			"jsonb_set(COALESCE(metadata, '{}'::jsonb), ?::text[], "+listExpr+" || ?::jsonb, true)",
			path, string(raw),
		)).Error
}

func appendToStringList(metadata datatypes.JSONMap, key, value string) datatypes.JSONMap {
	var list []any
	if metadata != nil {
		if existing, ok := metadata[key].([]any); ok {
			list = existing
		}
	}
	list = append(list, value)

	return datatypes.JSONMap{key: list}
}

type paymentStatus string

const (
	statusPending    paymentStatus = "pending"
	statusProcessing paymentStatus = "processing"
	statusApproved   paymentStatus = "approved"
)
