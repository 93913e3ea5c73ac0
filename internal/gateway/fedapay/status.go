package fedapay

import (
	"strings"

	"go.uber.org/zap"

	"github.com/fespa/contest-api/internal/domain"
)

// MapStatus folds the provider's status synonyms into the internal enum.
// This is the only place the folding happens; nothing downstream re-derives
// it. Unknown values pass through as pending with a warning, never coerced
// to success.
func MapStatus(providerStatus string) domain.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "approved", "transferred", "completed", "paid", "success", "successful":
		return domain.PaymentApproved
	case "declined", "failed":
		return domain.PaymentFailed
	case "canceled", "cancelled":
		return domain.PaymentCancelled
	case "expired":
		return domain.PaymentExpired
	case "pending", "created":
		return domain.PaymentPending
	case "processing":
		return domain.PaymentProcessing
	default:
		zap.L().Warn("unknown gateway status, treating as pending",
			zap.String("provider_status", providerStatus))
		return domain.PaymentPending
	}
}
