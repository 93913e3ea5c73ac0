package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/gateway/fedapay"
	"github.com/fespa/contest-api/internal/repository"
)

var (
	ErrPaymentNotFound         = repository.ErrPaymentNotFound
	ErrPaymentNotResubmittable = repository.ErrPaymentNotResubmittable
	ErrGatewayUnavailable      = fedapay.ErrGatewayUnavailable
)

type PaymentRepository interface {
	Create(ctx context.Context, payment domain.Payment) (domain.Payment, error)
	GetByID(ctx context.Context, id uint) (domain.Payment, error)
	GetByToken(ctx context.Context, token string) (domain.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (domain.Payment, error)
	AttachTransaction(ctx context.Context, paymentID uint, transactionID string) error
	ApproveAndMaterialize(ctx context.Context, paymentID uint, now time.Time) (bool, error)
	TransitionStatus(ctx context.Context, paymentID uint, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error)
	MergeMetadata(ctx context.Context, paymentID uint, patch map[string]any) error
	AppendToList(ctx context.Context, paymentID uint, key string, entry map[string]any) error
}

type GatewayEventRepository interface {
	Insert(ctx context.Context, event domain.GatewayEvent) (domain.GatewayEvent, error)
	GetByProviderEventID(ctx context.Context, providerEventID string) (domain.GatewayEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
	ListRecent(ctx context.Context, limit int) ([]domain.GatewayEvent, error)
}

type Gateway interface {
	CreateTransaction(ctx context.Context, input fedapay.CreateTransactionInput) (fedapay.CreatedTransaction, error)
	FetchTransaction(ctx context.Context, transactionID string) (fedapay.Transaction, error)
}

type VotePolicy interface {
	CheckPolicy(ctx context.Context, input PolicyInput) (domain.VoteSetting, error)
}

type InitiatePaymentInput struct {
	CandidateID uint
	EditionID   uint
	CategoryID  uint
	VotesCount  int
	VoterID     *uint
	Email       string
	Phone       string
	Firstname   string
	Lastname    string
}

// InitiatedPayment is what the client needs to continue: the opaque token
// for status polling and the hosted checkout URL.
type InitiatedPayment struct {
	Payment     domain.Payment
	CheckoutURL string
}

type PaymentService struct {
	repo      PaymentRepository
	eventRepo GatewayEventRepository
	gateway   Gateway
	policy    VotePolicy
	currency  string
	expiry    time.Duration
	now       func() time.Time
}

func NewPaymentService(repo PaymentRepository, eventRepo GatewayEventRepository, gateway Gateway, policy VotePolicy, currency string, expiry time.Duration) *PaymentService {
	return &PaymentService{
		repo:      repo,
		eventRepo: eventRepo,
		gateway:   gateway,
		policy:    policy,
		currency:  currency,
		expiry:    expiry,
		now:       time.Now,
	}
}

// InitiatePayment runs the paid-path policy check, persists the pending
// intent, then registers it with the gateway. A gateway failure leaves the
// payment pending and retryable; the caller gets the token either way the
// intent was stored.
func (s *PaymentService) InitiatePayment(ctx context.Context, input InitiatePaymentInput) (InitiatedPayment, error) {
	setting, err := s.policy.CheckPolicy(ctx, PolicyInput{
		VoterID:     input.VoterID,
		CandidateID: input.CandidateID,
		EditionID:   input.EditionID,
		CategoryID:  input.CategoryID,
		Count:       input.VotesCount,
	})
	if err != nil {
		return InitiatedPayment{}, err
	}

	if !setting.IsPaid {
		return InitiatedPayment{}, ErrPaymentNotRequired
	}

	now := s.now()
	payment := domain.Payment{
		Token:         uuid.NewString(),
		Reference:     newReference(now),
		Amount:        int64(input.VotesCount) * setting.VotePrice,
		Currency:      s.currency,
		Status:        domain.PaymentPending,
		VotesCount:    input.VotesCount,
		CandidateID:   input.CandidateID,
		EditionID:     input.EditionID,
		CategoryID:    input.CategoryID,
		CustomerEmail: input.Email,
		CustomerPhone: input.Phone,
		Firstname:     input.Firstname,
		Lastname:      input.Lastname,
		ExpiresAt:     now.Add(s.expiry),
	}

	payment, err = s.repo.Create(ctx, payment)
	if err != nil {
		return InitiatedPayment{}, fmt.Errorf("s.repo.Create -> %w", err)
	}

	checkoutURL, err := s.submitToGateway(ctx, payment)
	if err != nil {
		return InitiatedPayment{Payment: payment}, err
	}

	payment.Status = domain.PaymentProcessing

	return InitiatedPayment{
		Payment:     payment,
		CheckoutURL: checkoutURL,
	}, nil
}

// ResubmitPayment creates a fresh gateway transaction for a payment the
// client is retrying. Only pending/processing payments qualify; a previous
// in-flight transaction id is superseded, not orphaned silently.
func (s *PaymentService) ResubmitPayment(ctx context.Context, token string) (InitiatedPayment, error) {
	payment, err := s.getWithLazyExpiry(ctx, token)
	if err != nil {
		return InitiatedPayment{}, err
	}

	if !payment.CanSubmit() {
		return InitiatedPayment{}, ErrPaymentNotResubmittable
	}

	checkoutURL, err := s.submitToGateway(ctx, payment)
	if err != nil {
		return InitiatedPayment{Payment: payment}, err
	}

	payment.Status = domain.PaymentProcessing

	return InitiatedPayment{
		Payment:     payment,
		CheckoutURL: checkoutURL,
	}, nil
}

func (s *PaymentService) submitToGateway(ctx context.Context, payment domain.Payment) (string, error) {
	created, err := s.gateway.CreateTransaction(ctx, fedapay.CreateTransactionInput{
		Reference:   payment.Reference,
		Description: fmt.Sprintf("%v vote(s) for candidate %v", payment.VotesCount, payment.CandidateID),
		Amount:      payment.Amount,
		Currency:    payment.Currency,
		Customer: fedapay.Customer{
			Firstname: payment.Firstname,
			Lastname:  payment.Lastname,
			Email:     payment.CustomerEmail,
			Phone:     payment.CustomerPhone,
		},
	})
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			return "", ErrGatewayUnavailable
		}
		return "", fmt.Errorf("s.gateway.CreateTransaction -> %w", err)
	}

	if err = s.repo.AttachTransaction(ctx, payment.ID, created.TransactionID); err != nil {
		return "", fmt.Errorf("s.repo.AttachTransaction -> %w", err)
	}

	return created.CheckoutURL, nil
}

// WebhookInput is a signature-verified, parsed provider event. Signature
// verification happens at the HTTP boundary before this is built.
type WebhookInput struct {
	ProviderEventID string
	EventName       string
	TransactionID   string
	ProviderStatus  string
	RawPayload      string
}

// HandleWebhook records the event and drives the payment state machine.
// Duplicate deliveries of already-processed events and unknown transactions
// are acknowledged as no-ops; the provider must never be told to retry what
// we already absorbed.
func (s *PaymentService) HandleWebhook(ctx context.Context, input WebhookInput) error {
	event, err := s.eventRepo.Insert(ctx, domain.GatewayEvent{
		ProviderEventID: input.ProviderEventID,
		EventName:       input.EventName,
		TransactionID:   input.TransactionID,
		Payload:         input.RawPayload,
		SignatureValid:  true,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			return s.resumeWebhook(ctx, input)
		}
		return fmt.Errorf("s.eventRepo.Insert -> %w", err)
	}

	return s.processWebhookEvent(ctx, event.ID, input, true)
}

// resumeWebhook handles a redelivery of an already-recorded event. Receipt
// and processing are separate facts: an event whose processing attempt failed
// must be re-driven on retry, or a charged payment could stay stranded in
// processing forever.
func (s *PaymentService) resumeWebhook(ctx context.Context, input WebhookInput) error {
	event, err := s.eventRepo.GetByProviderEventID(ctx, input.ProviderEventID)
	if err != nil {
		return fmt.Errorf("s.eventRepo.GetByProviderEventID -> %w", err)
	}

	if event.Processed() {
		zap.L().Info("duplicate webhook delivery ignored",
			zap.String("provider_event_id", input.ProviderEventID))
		return nil
	}

	zap.L().Info("webhook redelivery resumes a failed event",
		zap.String("provider_event_id", input.ProviderEventID),
		zap.String("last_error", event.ProcessingError))

	// ProcessedAt set means the first attempt got past the trail append
	// before failing; only re-drive the transition then.
	return s.processWebhookEvent(ctx, event.ID, input, event.ProcessedAt == nil)
}

func (s *PaymentService) processWebhookEvent(ctx context.Context, eventID uint, input WebhookInput, appendTrail bool) error {
	payment, err := s.repo.GetByTransactionID(ctx, input.TransactionID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			zap.L().Warn("webhook for unknown transaction",
				zap.String("transaction_id", input.TransactionID),
				zap.String("event", input.EventName))
			return s.eventRepo.MarkProcessed(ctx, eventID, "unknown transaction")
		}
		return fmt.Errorf("s.repo.GetByTransactionID -> %w", err)
	}

	if appendTrail {
		if err = s.mergeWebhookTrail(ctx, payment.ID, input); err != nil {
			return err
		}
	}

	if err = s.applyStatus(ctx, payment, fedapay.MapStatus(input.ProviderStatus), "webhook"); err != nil {
		markErr := s.eventRepo.MarkProcessed(ctx, eventID, err.Error())
		if markErr != nil {
			zap.L().Error("failed to mark event processed", zap.Error(markErr))
		}
		return err
	}

	return s.eventRepo.MarkProcessed(ctx, eventID, "")
}

// SyncFromRedirect finalizes a payment after the browser returns from the
// gateway. The redirect's own status hint is never trusted; the authoritative
// status is fetched from the gateway first.
func (s *PaymentService) SyncFromRedirect(ctx context.Context, token string) (domain.Payment, error) {
	payment, err := s.getWithLazyExpiry(ctx, token)
	if err != nil {
		return domain.Payment{}, err
	}

	if payment.IsTerminal() || payment.TransactionID == "" {
		return payment, nil
	}

	transaction, err := s.gateway.FetchTransaction(ctx, payment.TransactionID)
	if err != nil {
		if errors.Is(err, ErrGatewayUnavailable) {
			return domain.Payment{}, ErrGatewayUnavailable
		}
		return domain.Payment{}, fmt.Errorf("s.gateway.FetchTransaction -> %w", err)
	}

	syncedAt := map[string]any{domain.MetaGatewaySyncedAt: s.now().UTC().Format(time.RFC3339)}
	if err = s.repo.MergeMetadata(ctx, payment.ID, syncedAt); err != nil {
		return domain.Payment{}, fmt.Errorf("s.repo.MergeMetadata -> %w", err)
	}

	if err = s.applyStatus(ctx, payment, fedapay.MapStatus(transaction.Status), "redirect"); err != nil {
		return domain.Payment{}, err
	}

	return s.repo.GetByToken(ctx, token)
}

// GetStatus is the polled status inquiry. Expiry is evaluated lazily here:
// a pending payment past its deadline flips to expired on read, idempotently.
func (s *PaymentService) GetStatus(ctx context.Context, token string) (domain.Payment, error) {
	return s.getWithLazyExpiry(ctx, token)
}

// Cancel is the user-initiated abort. Only non-terminal payments move.
func (s *PaymentService) Cancel(ctx context.Context, token string) (domain.Payment, error) {
	payment, err := s.getWithLazyExpiry(ctx, token)
	if err != nil {
		return domain.Payment{}, err
	}

	if payment.IsTerminal() {
		return payment, nil
	}

	won, err := s.repo.TransitionStatus(ctx, payment.ID,
		[]domain.PaymentStatus{domain.PaymentPending, domain.PaymentProcessing}, domain.PaymentCancelled)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("s.repo.TransitionStatus -> %w", err)
	}
	if !won {
		zap.L().Info("cancel lost to a concurrent transition", zap.String("token", token))
	}

	return s.repo.GetByToken(ctx, token)
}

func (s *PaymentService) ListGatewayEvents(ctx context.Context, limit int) ([]domain.GatewayEvent, error) {
	events, err := s.eventRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("s.eventRepo.ListRecent -> %w", err)
	}

	return events, nil
}

func (s *PaymentService) getWithLazyExpiry(ctx context.Context, token string) (domain.Payment, error) {
	payment, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return domain.Payment{}, ErrPaymentNotFound
		}
		return domain.Payment{}, fmt.Errorf("s.repo.GetByToken -> %w", err)
	}

	if payment.IsTerminal() || !payment.IsPastExpiry(s.now()) {
		return payment, nil
	}

	won, err := s.repo.TransitionStatus(ctx, payment.ID,
		[]domain.PaymentStatus{domain.PaymentPending, domain.PaymentProcessing}, domain.PaymentExpired)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("s.repo.TransitionStatus -> %w", err)
	}
	if won {
		zap.L().Info("payment expired on read",
			zap.String("token", token),
			zap.Time("expires_at", payment.ExpiresAt))
	}

	return s.repo.GetByToken(ctx, token)
}

// applyStatus drives one transition of the payment state machine. The first
// terminal signal wins; later conflicting signals are recorded as anomalies
// and never applied.
func (s *PaymentService) applyStatus(ctx context.Context, payment domain.Payment, status domain.PaymentStatus, source string) error {
	switch status {
	case domain.PaymentApproved:
		return s.applyApproval(ctx, payment, source)

	case domain.PaymentFailed, domain.PaymentCancelled, domain.PaymentExpired:
		won, err := s.repo.TransitionStatus(ctx, payment.ID,
			[]domain.PaymentStatus{domain.PaymentPending, domain.PaymentProcessing}, status)
		if err != nil {
			return fmt.Errorf("s.repo.TransitionStatus -> %w", err)
		}
		if !won {
			// The pre-read snapshot may be stale after losing the race;
			// the anomaly must record what actually won.
			current, err := s.repo.GetByID(ctx, payment.ID)
			if err != nil {
				return fmt.Errorf("s.repo.GetByID -> %w", err)
			}
			if current.IsTerminal() && current.Status != status {
				return s.recordAnomaly(ctx, current, status, source)
			}
		}
		return nil

	case domain.PaymentProcessing:
		if _, err := s.repo.TransitionStatus(ctx, payment.ID,
			[]domain.PaymentStatus{domain.PaymentPending}, domain.PaymentProcessing); err != nil {
			return fmt.Errorf("s.repo.TransitionStatus -> %w", err)
		}
		return nil

	default:
		return nil
	}
}

// applyApproval performs the exactly-once vote materialization. The claim is
// a conditional update inside the repository transaction: the winner inserts
// the votes, everyone else observes claimed == false and returns success
// without re-inserting.
func (s *PaymentService) applyApproval(ctx context.Context, payment domain.Payment, source string) error {
	if payment.Status == domain.PaymentApproved || payment.VotesMaterialized() {
		zap.L().Info("duplicate success signal short-circuited",
			zap.Uint("payment_id", payment.ID),
			zap.String("source", source))
		return nil
	}

	if payment.IsTerminal() {
		// Late success after expired/failed/cancelled: surfaced for manual
		// reconciliation, never auto-applied.
		return s.recordAnomaly(ctx, payment, domain.PaymentApproved, source)
	}

	claimed, err := s.repo.ApproveAndMaterialize(ctx, payment.ID, s.now())
	if err != nil {
		if errors.Is(err, ErrCategoryRequired) {
			anomalyErr := s.recordAnomaly(ctx, payment, domain.PaymentApproved, source)
			if anomalyErr != nil {
				zap.L().Error("failed to record anomaly", zap.Error(anomalyErr))
			}
			return ErrCategoryRequired
		}
		return fmt.Errorf("s.repo.ApproveAndMaterialize -> %w", err)
	}

	if !claimed {
		current, err := s.repo.GetByID(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("s.repo.GetByID -> %w", err)
		}
		if current.Status == domain.PaymentApproved {
			zap.L().Info("reconciliation race resolved, claim lost",
				zap.Uint("payment_id", payment.ID),
				zap.String("source", source))
			return nil
		}
		return s.recordAnomaly(ctx, current, domain.PaymentApproved, source)
	}

	zap.L().Info("payment approved, votes materialized",
		zap.Uint("payment_id", payment.ID),
		zap.Int("votes_count", payment.VotesCount),
		zap.String("source", source))

	return nil
}

func (s *PaymentService) recordAnomaly(ctx context.Context, payment domain.Payment, signaled domain.PaymentStatus, source string) error {
	zap.L().Warn("conflicting signal after terminal state",
		zap.Uint("payment_id", payment.ID),
		zap.String("current_status", string(payment.Status)),
		zap.String("signaled_status", string(signaled)),
		zap.String("source", source))

	err := s.repo.AppendToList(ctx, payment.ID, domain.MetaAnomalies, map[string]any{
		"at":              s.now().UTC().Format(time.RFC3339),
		"source":          source,
		"current_status":  string(payment.Status),
		"signaled_status": string(signaled),
	})
	if err != nil {
		return fmt.Errorf("s.repo.AppendToList -> %w", err)
	}

	return nil
}

func (s *PaymentService) mergeWebhookTrail(ctx context.Context, paymentID uint, input WebhookInput) error {
	err := s.repo.AppendToList(ctx, paymentID, domain.MetaWebhookEvents, map[string]any{
		"event_id": input.ProviderEventID,
		"name":     input.EventName,
		"at":       s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("s.repo.AppendToList -> %w", err)
	}

	return nil
}

func newReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])

	return fmt.Sprintf("PAY-%v-%v", now.Format("20060102"), suffix)
}
