package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/gateway/fedapay"
	"github.com/fespa/contest-api/internal/repository"
)

type fakePaymentRepo struct {
	payments map[uint]domain.Payment
	nextID   uint

	approveCalls   int
	approveClaimed bool
	approveErr     error

	appendedLists []string
	mergedKeys    []string

	transitionHook func()
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments:       map[uint]domain.Payment{},
		nextID:         1,
		approveClaimed: true,
	}
}

func (f *fakePaymentRepo) add(p domain.Payment) domain.Payment {
	p.ID = f.nextID
	f.nextID++
	f.payments[p.ID] = p

	return p
}

func (f *fakePaymentRepo) Create(_ context.Context, payment domain.Payment) (domain.Payment, error) {
	return f.add(payment), nil
}

func (f *fakePaymentRepo) GetByID(_ context.Context, id uint) (domain.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return domain.Payment{}, ErrPaymentNotFound
	}

	return p, nil
}

func (f *fakePaymentRepo) GetByToken(_ context.Context, token string) (domain.Payment, error) {
	for _, p := range f.payments {
		if p.Token == token {
			return p, nil
		}
	}

	return domain.Payment{}, ErrPaymentNotFound
}

func (f *fakePaymentRepo) GetByTransactionID(_ context.Context, transactionID string) (domain.Payment, error) {
	for _, p := range f.payments {
		if p.TransactionID == transactionID {
			return p, nil
		}
	}

	return domain.Payment{}, ErrPaymentNotFound
}

func (f *fakePaymentRepo) AttachTransaction(_ context.Context, paymentID uint, transactionID string) error {
	p, ok := f.payments[paymentID]
	if !ok {
		return ErrPaymentNotFound
	}
	if p.IsTerminal() {
		return ErrPaymentNotResubmittable
	}

	p.TransactionID = transactionID
	p.Status = domain.PaymentProcessing
	f.payments[paymentID] = p

	return nil
}

func (f *fakePaymentRepo) ApproveAndMaterialize(_ context.Context, paymentID uint, now time.Time) (bool, error) {
	f.approveCalls++
	if f.approveErr != nil {
		return false, f.approveErr
	}
	if !f.approveClaimed {
		return false, nil
	}

	p := f.payments[paymentID]
	p.Status = domain.PaymentApproved
	p.PaidAt = &now
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	p.Metadata[domain.MetaVotesCreatedAt] = now.Format(time.RFC3339)
	f.payments[paymentID] = p

	return true, nil
}

func (f *fakePaymentRepo) TransitionStatus(_ context.Context, paymentID uint, from []domain.PaymentStatus, to domain.PaymentStatus) (bool, error) {
	if f.transitionHook != nil {
		f.transitionHook()
	}

	p, ok := f.payments[paymentID]
	if !ok {
		return false, ErrPaymentNotFound
	}

	for _, status := range from {
		if p.Status == status {
			p.Status = to
			f.payments[paymentID] = p
			return true, nil
		}
	}

	return false, nil
}

func (f *fakePaymentRepo) MergeMetadata(_ context.Context, paymentID uint, patch map[string]any) error {
	p := f.payments[paymentID]
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	for k, v := range patch {
		p.Metadata[k] = v
		f.mergedKeys = append(f.mergedKeys, k)
	}
	f.payments[paymentID] = p

	return nil
}

func (f *fakePaymentRepo) AppendToList(_ context.Context, paymentID uint, key string, entry map[string]any) error {
	p := f.payments[paymentID]
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	list, _ := p.Metadata[key].([]any)
	p.Metadata[key] = append(list, entry)
	f.payments[paymentID] = p
	f.appendedLists = append(f.appendedLists, key)

	return nil
}

type fakeEventRepo struct {
	events    map[string]domain.GatewayEvent
	nextID    uint
	processed map[uint]string
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events:    map[string]domain.GatewayEvent{},
		nextID:    1,
		processed: map[uint]string{},
	}
}

func (f *fakeEventRepo) Insert(_ context.Context, event domain.GatewayEvent) (domain.GatewayEvent, error) {
	if _, ok := f.events[event.ProviderEventID]; ok {
		return domain.GatewayEvent{}, repository.ErrDuplicateEvent
	}

	event.ID = f.nextID
	f.nextID++
	f.events[event.ProviderEventID] = event

	return event, nil
}

func (f *fakeEventRepo) GetByProviderEventID(_ context.Context, providerEventID string) (domain.GatewayEvent, error) {
	event, ok := f.events[providerEventID]
	if !ok {
		return domain.GatewayEvent{}, errors.New("gateway event not found")
	}

	return event, nil
}

func (f *fakeEventRepo) MarkProcessed(_ context.Context, id uint, processingError string) error {
	f.processed[id] = processingError
	for key, event := range f.events {
		if event.ID == id {
			now := testNow
			event.ProcessedAt = &now
			event.ProcessingError = processingError
			f.events[key] = event
		}
	}

	return nil
}

func (f *fakeEventRepo) ListRecent(_ context.Context, _ int) ([]domain.GatewayEvent, error) {
	return nil, nil
}

type fakeGateway struct {
	created      fedapay.CreatedTransaction
	createErr    error
	createCalls  int
	transaction  fedapay.Transaction
	fetchErr     error
	fetchedTxnID string
}

func (f *fakeGateway) CreateTransaction(_ context.Context, _ fedapay.CreateTransactionInput) (fedapay.CreatedTransaction, error) {
	f.createCalls++
	if f.createErr != nil {
		return fedapay.CreatedTransaction{}, f.createErr
	}

	return f.created, nil
}

func (f *fakeGateway) FetchTransaction(_ context.Context, transactionID string) (fedapay.Transaction, error) {
	f.fetchedTxnID = transactionID
	if f.fetchErr != nil {
		return fedapay.Transaction{}, f.fetchErr
	}

	return f.transaction, nil
}

type fakePolicy struct {
	setting domain.VoteSetting
	err     error
}

func (f *fakePolicy) CheckPolicy(_ context.Context, _ PolicyInput) (domain.VoteSetting, error) {
	if f.err != nil {
		return domain.VoteSetting{}, f.err
	}

	return f.setting, nil
}

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func paidSetting() domain.VoteSetting {
	return domain.VoteSetting{
		ID:        1,
		EditionID: 3,
		IsPaid:    true,
		VotePrice: 100,
	}
}

func initiateInput() InitiatePaymentInput {
	return InitiatePaymentInput{
		CandidateID: 7,
		EditionID:   3,
		CategoryID:  2,
		VotesCount:  5,
		Email:       "voter@example.com",
		Phone:       "22990123456",
		Firstname:   "Ayaba",
		Lastname:    "Dossou",
	}
}

func newTestPaymentService(repo *fakePaymentRepo, events *fakeEventRepo, gateway *fakeGateway, policy *fakePolicy) *PaymentService {
	svc := NewPaymentService(repo, events, gateway, policy, "XOF", 30*time.Minute)
	svc.now = func() time.Time { return testNow }

	return svc
}

func TestPaymentService_InitiatePayment(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		repo := newFakePaymentRepo()
		gateway := &fakeGateway{
			created: fedapay.CreatedTransaction{TransactionID: "txn-1", CheckoutURL: "https://checkout.example/txn-1"},
		}
		svc := newTestPaymentService(repo, newFakeEventRepo(), gateway, &fakePolicy{setting: paidSetting()})

		initiated, err := svc.InitiatePayment(context.Background(), initiateInput())

		require.NoError(t, err)
		assert.Equal(t, int64(500), initiated.Payment.Amount)
		assert.Equal(t, "XOF", initiated.Payment.Currency)
		assert.Equal(t, domain.PaymentProcessing, initiated.Payment.Status)
		assert.Equal(t, "https://checkout.example/txn-1", initiated.CheckoutURL)
		assert.NotEmpty(t, initiated.Payment.Token)
		assert.Equal(t, testNow.Add(30*time.Minute), initiated.Payment.ExpiresAt)

		stored, err := repo.GetByTransactionID(context.Background(), "txn-1")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentProcessing, stored.Status)
	})

	t.Run("free category rejects payment", func(t *testing.T) {
		setting := paidSetting()
		setting.IsPaid = false
		svc := newTestPaymentService(newFakePaymentRepo(), newFakeEventRepo(), &fakeGateway{}, &fakePolicy{setting: setting})

		_, err := svc.InitiatePayment(context.Background(), initiateInput())

		assert.ErrorIs(t, err, ErrPaymentNotRequired)
	})

	t.Run("policy failure propagates", func(t *testing.T) {
		svc := newTestPaymentService(newFakePaymentRepo(), newFakeEventRepo(), &fakeGateway{}, &fakePolicy{err: ErrVotingClosed})

		_, err := svc.InitiatePayment(context.Background(), initiateInput())

		assert.ErrorIs(t, err, ErrVotingClosed)
	})

	t.Run("gateway outage preserves the intent", func(t *testing.T) {
		repo := newFakePaymentRepo()
		gateway := &fakeGateway{createErr: ErrGatewayUnavailable}
		svc := newTestPaymentService(repo, newFakeEventRepo(), gateway, &fakePolicy{setting: paidSetting()})

		initiated, err := svc.InitiatePayment(context.Background(), initiateInput())

		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		assert.NotEmpty(t, initiated.Payment.Token)

		stored, getErr := repo.GetByToken(context.Background(), initiated.Payment.Token)
		require.NoError(t, getErr)
		assert.Equal(t, domain.PaymentPending, stored.Status)
	})
}

func TestPaymentService_ResubmitPayment(t *testing.T) {
	t.Run("pending payment gets a fresh transaction", func(t *testing.T) {
		repo := newFakePaymentRepo()
		repo.add(domain.Payment{
			Token:     "tok-1",
			Status:    domain.PaymentPending,
			ExpiresAt: testNow.Add(10 * time.Minute),
		})
		gateway := &fakeGateway{
			created: fedapay.CreatedTransaction{TransactionID: "txn-2", CheckoutURL: "https://checkout.example/txn-2"},
		}
		svc := newTestPaymentService(repo, newFakeEventRepo(), gateway, &fakePolicy{})

		initiated, err := svc.ResubmitPayment(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.Equal(t, "https://checkout.example/txn-2", initiated.CheckoutURL)
		assert.Equal(t, 1, gateway.createCalls)
	})

	t.Run("terminal payment is rejected", func(t *testing.T) {
		repo := newFakePaymentRepo()
		repo.add(domain.Payment{
			Token:     "tok-1",
			Status:    domain.PaymentFailed,
			ExpiresAt: testNow.Add(10 * time.Minute),
		})
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		_, err := svc.ResubmitPayment(context.Background(), "tok-1")

		assert.ErrorIs(t, err, ErrPaymentNotResubmittable)
	})
}

func webhook(eventID, txnID, status string) WebhookInput {
	return WebhookInput{
		ProviderEventID: eventID,
		EventName:       "transaction." + status,
		TransactionID:   txnID,
		ProviderStatus:  status,
		RawPayload:      `{"id":"` + eventID + `"}`,
	}
}

func TestPaymentService_HandleWebhook(t *testing.T) {
	processingPayment := func(repo *fakePaymentRepo) domain.Payment {
		return repo.add(domain.Payment{
			Token:         "tok-1",
			TransactionID: "txn-1",
			Status:        domain.PaymentProcessing,
			VotesCount:    5,
			ExpiresAt:     testNow.Add(10 * time.Minute),
		})
	}

	t.Run("approval materializes votes exactly once", func(t *testing.T) {
		repo := newFakePaymentRepo()
		processingPayment(repo)
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "approved")))
		assert.Equal(t, 1, repo.approveCalls)

		// Same terminal signal again under a new event id: the short-circuit
		// sees the payment already approved and does not materialize twice.
		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-2", "txn-1", "approved")))
		assert.Equal(t, 1, repo.approveCalls)
	})

	t.Run("duplicate delivery is absorbed", func(t *testing.T) {
		repo := newFakePaymentRepo()
		processingPayment(repo)
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "approved")))
		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "approved")))

		assert.Equal(t, 1, repo.approveCalls)
	})

	t.Run("redelivery after a transient failure resumes processing", func(t *testing.T) {
		repo := newFakePaymentRepo()
		processingPayment(repo)
		repo.approveErr = errors.New("deadlock detected")
		events := newFakeEventRepo()
		svc := newTestPaymentService(repo, events, &fakeGateway{}, &fakePolicy{})

		// First delivery fails mid-flight; the provider sees the error and
		// retries with the same event id.
		err := svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "approved"))
		require.Error(t, err)
		assert.Equal(t, 1, repo.approveCalls)

		repo.approveErr = nil

		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "approved")))
		assert.Equal(t, 2, repo.approveCalls)
		assert.Equal(t, "", events.processed[1])

		stored, err := repo.GetByTransactionID(context.Background(), "txn-1")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentApproved, stored.Status)
	})

	t.Run("failure signal losing a race to approval records an anomaly", func(t *testing.T) {
		repo := newFakePaymentRepo()
		p := processingPayment(repo)
		// Another worker approves between our read and our transition.
		repo.transitionHook = func() {
			stored := repo.payments[p.ID]
			stored.Status = domain.PaymentApproved
			repo.payments[p.ID] = stored
			repo.transitionHook = nil
		}
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "declined")))

		assert.Contains(t, repo.appendedLists, domain.MetaAnomalies)

		stored, err := repo.GetByID(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentApproved, stored.Status)
	})

	t.Run("unknown transaction is acknowledged", func(t *testing.T) {
		events := newFakeEventRepo()
		svc := newTestPaymentService(newFakePaymentRepo(), events, &fakeGateway{}, &fakePolicy{})

		err := svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-missing", "approved"))

		require.NoError(t, err)
		assert.Equal(t, "unknown transaction", events.processed[1])
	})

	t.Run("declined provider status fails the payment", func(t *testing.T) {
		repo := newFakePaymentRepo()
		p := processingPayment(repo)
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "declined")))

		stored, err := repo.GetByID(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentFailed, stored.Status)
		assert.Equal(t, 0, repo.approveCalls)
	})

	t.Run("late success after expiry becomes an anomaly", func(t *testing.T) {
		repo := newFakePaymentRepo()
		p := repo.add(domain.Payment{
			Token:         "tok-1",
			TransactionID: "txn-1",
			Status:        domain.PaymentExpired,
			VotesCount:    5,
			ExpiresAt:     testNow.Add(-time.Hour),
		})
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "approved")))

		assert.Equal(t, 0, repo.approveCalls)
		assert.Contains(t, repo.appendedLists, domain.MetaAnomalies)

		stored, err := repo.GetByID(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentExpired, stored.Status)
	})

	t.Run("lost claim race resolves without an anomaly", func(t *testing.T) {
		repo := newFakePaymentRepo()
		p := processingPayment(repo)
		repo.approveClaimed = false
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		// Another worker won the claim between our read and our update.
		stored := repo.payments[p.ID]
		stored.Status = domain.PaymentApproved
		repo.payments[p.ID] = stored

		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "approved")))
		assert.NotContains(t, repo.appendedLists, domain.MetaAnomalies)
	})

	t.Run("webhook trail is appended per delivery", func(t *testing.T) {
		repo := newFakePaymentRepo()
		p := processingPayment(repo)
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-1", "txn-1", "pending")))
		require.NoError(t, svc.HandleWebhook(context.Background(), webhook("evt-2", "txn-1", "approved")))

		stored, err := repo.GetByID(context.Background(), p.ID)
		require.NoError(t, err)
		trail, _ := stored.Metadata[domain.MetaWebhookEvents].([]any)
		assert.Len(t, trail, 2)
	})
}

func TestPaymentService_SyncFromRedirect(t *testing.T) {
	t.Run("fetches the authoritative status", func(t *testing.T) {
		repo := newFakePaymentRepo()
		p := repo.add(domain.Payment{
			Token:         "tok-1",
			TransactionID: "txn-1",
			Status:        domain.PaymentProcessing,
			VotesCount:    5,
			ExpiresAt:     testNow.Add(10 * time.Minute),
		})
		gateway := &fakeGateway{
			transaction: fedapay.Transaction{ID: "txn-1", Status: "approved"},
		}
		svc := newTestPaymentService(repo, newFakeEventRepo(), gateway, &fakePolicy{})

		payment, err := svc.SyncFromRedirect(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.Equal(t, "txn-1", gateway.fetchedTxnID)
		assert.Equal(t, domain.PaymentApproved, payment.Status)
		assert.Equal(t, 1, repo.approveCalls)

		stored, err := repo.GetByID(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Contains(t, stored.Metadata, domain.MetaGatewaySyncedAt)
	})

	t.Run("terminal payment skips the gateway", func(t *testing.T) {
		repo := newFakePaymentRepo()
		repo.add(domain.Payment{
			Token:         "tok-1",
			TransactionID: "txn-1",
			Status:        domain.PaymentApproved,
			ExpiresAt:     testNow.Add(10 * time.Minute),
		})
		gateway := &fakeGateway{}
		svc := newTestPaymentService(repo, newFakeEventRepo(), gateway, &fakePolicy{})

		payment, err := svc.SyncFromRedirect(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.Equal(t, domain.PaymentApproved, payment.Status)
		assert.Empty(t, gateway.fetchedTxnID)
	})

	t.Run("gateway outage surfaces as retryable", func(t *testing.T) {
		repo := newFakePaymentRepo()
		repo.add(domain.Payment{
			Token:         "tok-1",
			TransactionID: "txn-1",
			Status:        domain.PaymentProcessing,
			ExpiresAt:     testNow.Add(10 * time.Minute),
		})
		gateway := &fakeGateway{fetchErr: ErrGatewayUnavailable}
		svc := newTestPaymentService(repo, newFakeEventRepo(), gateway, &fakePolicy{})

		_, err := svc.SyncFromRedirect(context.Background(), "tok-1")

		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})
}

func TestPaymentService_GetStatus(t *testing.T) {
	t.Run("pending past deadline expires on read", func(t *testing.T) {
		repo := newFakePaymentRepo()
		repo.add(domain.Payment{
			Token:     "tok-1",
			Status:    domain.PaymentPending,
			ExpiresAt: testNow.Add(-time.Minute),
		})
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		payment, err := svc.GetStatus(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.Equal(t, domain.PaymentExpired, payment.Status)

		// Expiry on read is idempotent.
		payment, err = svc.GetStatus(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.Equal(t, domain.PaymentExpired, payment.Status)
	})

	t.Run("approved payment never expires", func(t *testing.T) {
		repo := newFakePaymentRepo()
		repo.add(domain.Payment{
			Token:     "tok-1",
			Status:    domain.PaymentApproved,
			ExpiresAt: testNow.Add(-time.Hour),
		})
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		payment, err := svc.GetStatus(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.Equal(t, domain.PaymentApproved, payment.Status)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc := newTestPaymentService(newFakePaymentRepo(), newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		_, err := svc.GetStatus(context.Background(), "missing")

		assert.ErrorIs(t, err, ErrPaymentNotFound)
	})
}

func TestPaymentService_Cancel(t *testing.T) {
	t.Run("pending payment is cancelled", func(t *testing.T) {
		repo := newFakePaymentRepo()
		repo.add(domain.Payment{
			Token:     "tok-1",
			Status:    domain.PaymentPending,
			ExpiresAt: testNow.Add(10 * time.Minute),
		})
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		payment, err := svc.Cancel(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.Equal(t, domain.PaymentCancelled, payment.Status)
	})

	t.Run("terminal payment is untouched", func(t *testing.T) {
		repo := newFakePaymentRepo()
		repo.add(domain.Payment{
			Token:     "tok-1",
			Status:    domain.PaymentApproved,
			ExpiresAt: testNow.Add(10 * time.Minute),
		})
		svc := newTestPaymentService(repo, newFakeEventRepo(), &fakeGateway{}, &fakePolicy{})

		payment, err := svc.Cancel(context.Background(), "tok-1")

		require.NoError(t, err)
		assert.Equal(t, domain.PaymentApproved, payment.Status)
	})
}
