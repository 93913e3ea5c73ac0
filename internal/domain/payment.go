package domain

import "time"

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentApproved   PaymentStatus = "approved"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentExpired    PaymentStatus = "expired"
)

// Metadata keys used for the payment audit trail. Metadata is append-only in
// spirit: new keys are added, existing ones are never deleted.
const (
	MetaVotesCreatedAt   = "votes_created_at"
	MetaAnomalies        = "anomalies"
	MetaGatewaySyncedAt  = "gateway_synced_at"
	MetaWebhookEvents    = "webhook_events"
	MetaSupersededTxnIDs = "superseded_transaction_ids"
)

// Payment is an intent to pay for VotesCount votes on one candidacy.
// Token is the opaque external identity; ID stays internal.
type Payment struct {
	ID            uint           `json:"-"`
	Token         string         `json:"token"`
	Reference     string         `json:"reference"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	Status        PaymentStatus  `json:"status"`
	TransactionID string         `json:"-"`
	VotesCount    int            `json:"votes_count"`
	CandidateID   uint           `json:"candidate_id"`
	EditionID     uint           `json:"edition_id"`
	CategoryID    uint           `json:"category_id"`
	CustomerEmail string         `json:"customer_email"`
	CustomerPhone string         `json:"customer_phone"`
	Firstname     string         `json:"firstname"`
	Lastname      string         `json:"lastname"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ExpiresAt     time.Time      `json:"expires_at"`
	PaidAt        *time.Time     `json:"paid_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentApproved, PaymentFailed, PaymentCancelled, PaymentExpired:
		return true
	}
	return false
}

func (p *Payment) IsSuccessful() bool {
	return p.Status == PaymentApproved
}

// CanSubmit reports whether a fresh gateway transaction may be created for
// this payment. Resubmitting a still-pending payment is an explicit allowed
// case; anything terminal is not.
func (p *Payment) CanSubmit() bool {
	return p.Status == PaymentPending || p.Status == PaymentProcessing
}

func (p *Payment) IsPastExpiry(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// VotesMaterialized reports whether the vote rows for this payment have
// already been created. The metadata marker is the durable idempotency gate.
func (p *Payment) VotesMaterialized() bool {
	if p.Metadata == nil {
		return false
	}
	_, ok := p.Metadata[MetaVotesCreatedAt]
	return ok
}
