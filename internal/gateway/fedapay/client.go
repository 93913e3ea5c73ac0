// Package fedapay isolates all outbound traffic to the payment provider.
// Nothing outside this package speaks the provider's status vocabulary or
// wire format.
package fedapay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fespa/contest-api/internal/config"
)

// ErrGatewayUnavailable classifies every transport-level failure (timeout,
// connection error, non-2xx, malformed body). The caller must treat it as
// retryable: the provider-side effect of the call is unknown, so the payment
// stays pending.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

const defaultTimeout = 15 * time.Second

type Client struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	callbackURL   string
	redirectURL   string
	environment   string
	httpClient    *http.Client
}

func NewClient(conf *config.FedaPayConfig, environment string) *Client {
	timeout := defaultTimeout
	if conf.TimeoutSeconds > 0 {
		timeout = time.Duration(conf.TimeoutSeconds) * time.Second
	}

	return &Client{
		baseURL:       conf.BaseURL,
		apiKey:        conf.APIKey,
		webhookSecret: conf.WebhookSecret,
		callbackURL:   conf.CallbackURL,
		redirectURL:   conf.RedirectURL,
		environment:   environment,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type Customer struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
	Phone     string `json:"phone_number"`
}

type CreateTransactionInput struct {
	Reference   string
	Description string
	Amount      int64
	Currency    string
	Customer    Customer
}

type CreatedTransaction struct {
	TransactionID string
	CheckoutURL   string
}

type Transaction struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
}

type createTransactionRequest struct {
	Reference   string   `json:"merchant_reference"`
	Description string   `json:"description"`
	Amount      int64    `json:"amount"`
	Currency    currency `json:"currency"`
	CallbackURL string   `json:"callback_url"`
	RedirectURL string   `json:"return_url"`
	Customer    Customer `json:"customer"`
}

type currency struct {
	ISO string `json:"iso"`
}

type transactionEnvelope struct {
	Transaction Transaction `json:"transaction"`
}

type checkoutEnvelope struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

// CreateTransaction registers the payment intent with the provider and
// returns its transaction id plus the hosted checkout URL the customer is
// redirected to.
func (c *Client) CreateTransaction(ctx context.Context, input CreateTransactionInput) (CreatedTransaction, error) {
	body := createTransactionRequest{
		Reference:   input.Reference,
		Description: input.Description,
		Amount:      input.Amount,
		Currency:    currency{ISO: input.Currency},
		CallbackURL: c.callbackURL,
		RedirectURL: c.redirectURL,
		Customer:    input.Customer,
	}

	var created transactionEnvelope
	if err := c.post(ctx, "/v1/transactions", body, &created); err != nil {
		return CreatedTransaction{}, err
	}

	var checkout checkoutEnvelope
	path := fmt.Sprintf("/v1/transactions/%v/token", created.Transaction.ID)
	if err := c.post(ctx, path, nil, &checkout); err != nil {
		return CreatedTransaction{}, err
	}

	return CreatedTransaction{
		TransactionID: created.Transaction.ID,
		CheckoutURL:   checkout.URL,
	}, nil
}

// FetchTransaction retrieves the provider's current view of a transaction.
// The returned status is raw provider vocabulary; map it with MapStatus.
func (c *Client) FetchTransaction(ctx context.Context, transactionID string) (Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transactions/"+transactionID, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("http.NewRequestWithContext -> %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		zap.L().Warn("gateway fetch failed", zap.String("transaction_id", transactionID), zap.Error(err))
		return Transaction{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Warn("gateway fetch returned non-2xx",
			zap.String("transaction_id", transactionID),
			zap.Int("status_code", resp.StatusCode))
		return Transaction{}, fmt.Errorf("%w: status %v", ErrGatewayUnavailable, resp.StatusCode)
	}

	var envelope transactionEnvelope
	if err = json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return Transaction{}, fmt.Errorf("%w: malformed response: %v", ErrGatewayUnavailable, err)
	}

	return envelope.Transaction, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("json.Encode -> %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext -> %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		zap.L().Warn("gateway request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		zap.L().Warn("gateway returned non-2xx",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode))
		return fmt.Errorf("%w: status %v", ErrGatewayUnavailable, resp.StatusCode)
	}

	if out != nil {
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed response: %v", ErrGatewayUnavailable, err)
		}
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
