package fedapay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SignatureHeader is the provider's webhook signature header, carrying
// "t=<unix timestamp>,s=<hex hmac-sha256 of '<t>.<raw body>'>".
const SignatureHeader = "X-FedaPay-Signature"

// WebhookEvent is the envelope the provider posts on transaction changes.
type WebhookEvent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Entity struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	} `json:"entity"`
}

func ParseWebhook(rawBody []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("json.Unmarshal -> %w", err)
	}
	if event.ID == "" || event.Entity.ID.String() == "" {
		return WebhookEvent{}, fmt.Errorf("webhook event missing id fields")
	}

	return event, nil
}

// VerifyWebhookSignature checks the signature header against the raw body
// using a constant-time comparison. A missing webhook secret fails closed
// everywhere except development.
func (c *Client) VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool {
	if c.webhookSecret == "" {
		if c.environment == "development" {
			zap.L().Warn("webhook secret not configured, accepting signature in development only")
			return true
		}
		return false
	}

	timestamp, signature, ok := splitSignatureHeader(signatureHeader)
	if !ok {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func splitSignatureHeader(header string) (timestamp, signature string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "s":
			signature = value
		}
	}

	return timestamp, signature, timestamp != "" && signature != ""
}
