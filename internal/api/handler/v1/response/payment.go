package response

import (
	"time"

	"github.com/fespa/contest-api/internal/domain"
)

type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func OK(data any) Envelope {
	return Envelope{
		Success: true,
		Data:    data,
	}
}

type Payment struct {
	Token      string     `json:"token"`
	Reference  string     `json:"reference"`
	Amount     int64      `json:"amount"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	VotesCount int        `json:"votes_count"`
	Successful bool       `json:"successful"`
	Expired    bool       `json:"expired"`
	ExpiresAt  time.Time  `json:"expires_at"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
}

type InitiatedPayment struct {
	Payment
	CheckoutURL string `json:"checkout_url,omitempty"`
}

func NewPayment(p domain.Payment) Payment {
	return Payment{
		Token:      p.Token,
		Reference:  p.Reference,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     string(p.Status),
		VotesCount: p.VotesCount,
		Successful: p.IsSuccessful(),
		Expired:    p.Status == domain.PaymentExpired,
		ExpiresAt:  p.ExpiresAt,
		PaidAt:     p.PaidAt,
	}
}

func NewInitiatedPayment(p domain.Payment, checkoutURL string) InitiatedPayment {
	return InitiatedPayment{
		Payment:     NewPayment(p),
		CheckoutURL: checkoutURL,
	}
}

type VoteSummary struct {
	CandidacyID uint `json:"candidacy_id"`
	VotesCast   int  `json:"votes_cast"`
}
