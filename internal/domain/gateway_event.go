package domain

import "time"

// GatewayEvent is one received provider webhook, kept for dedup and for the
// manual-reconciliation audit trail.
type GatewayEvent struct {
	ID              uint       `json:"id"`
	ProviderEventID string     `json:"provider_event_id"`
	EventName       string     `json:"event_name"`
	TransactionID   string     `json:"transaction_id"`
	Payload         string     `json:"payload"`
	SignatureValid  bool       `json:"signature_valid"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	ProcessingError string     `json:"processing_error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Processed reports whether the event's last processing attempt completed
// cleanly. A recorded event that failed mid-flight stays unprocessed and is
// re-driven when the provider redelivers it.
func (e GatewayEvent) Processed() bool {
	return e.ProcessedAt != nil && e.ProcessingError == ""
}
