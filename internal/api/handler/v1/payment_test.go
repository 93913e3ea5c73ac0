package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fespa/contest-api/internal/config"
	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/service"
)

type capturingPaymentSvc struct {
	fakePaymentSvc

	gotInput *service.InitiatePaymentInput
}

func (c *capturingPaymentSvc) InitiatePayment(_ context.Context, input service.InitiatePaymentInput) (service.InitiatedPayment, error) {
	c.gotInput = &input

	return c.initiated, c.initiateErr
}

func newPaymentRouter(svc PaymentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	handler := NewPaymentHandler(svc, &config.VotingConfig{
		PaymentExpiryMinutes: 30,
		Currency:             "XOF",
		PhoneCountryCode:     "229",
		PhoneLocalDigits:     8,
	})
	router.POST("/payments", handler.HandleInitiatePayment)
	router.GET("/payments/:token", handler.HandleGetPayment)
	router.POST("/payments/:token/resubmit", handler.HandleResubmitPayment)
	router.POST("/payments/:token/cancel", handler.HandleCancelPayment)
	router.GET("/payments/:token/callback", handler.HandleRedirectCallback)

	return router
}

func initiateBody() string {
	return `{
		"candidate_id": 7,
		"edition_id": 3,
		"category_id": 2,
		"votes_count": 5,
		"email": "voter@example.com",
		"phone": "90 12 34 56",
		"firstname": "Ayaba",
		"lastname": "Dossou"
	}`
}

func pendingPayment() domain.Payment {
	return domain.Payment{
		ID:         1,
		Token:      "tok-1",
		Reference:  "PAY-20260315-ABC123",
		Amount:     500,
		Currency:   "XOF",
		Status:     domain.PaymentPending,
		VotesCount: 5,
		ExpiresAt:  time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC),
	}
}

func TestHandleInitiatePayment(t *testing.T) {
	t.Run("success normalizes the phone", func(t *testing.T) {
		payment := pendingPayment()
		payment.Status = domain.PaymentProcessing
		svc := &capturingPaymentSvc{}
		svc.initiated = service.InitiatedPayment{Payment: payment, CheckoutURL: "https://checkout.example/tok"}
		router := newPaymentRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(initiateBody()))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		require.NotNil(t, svc.gotInput)
		assert.Equal(t, "22990123456", svc.gotInput.Phone)
		assert.Nil(t, svc.gotInput.VoterID)
		assert.Contains(t, w.Body.String(), `"checkout_url":"https://checkout.example/tok"`)
	})

	t.Run("validation failure lists the fields", func(t *testing.T) {
		router := newPaymentRouter(&capturingPaymentSvc{})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"candidate_id":7,"votes_count":0}`))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "votes_count")
	})

	t.Run("gateway outage returns the token with a 503", func(t *testing.T) {
		svc := &capturingPaymentSvc{}
		svc.initiated = service.InitiatedPayment{Payment: pendingPayment()}
		svc.initiateErr = service.ErrGatewayUnavailable
		router := newPaymentRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(initiateBody()))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"token":"tok-1"`)
	})

	t.Run("free category is a policy violation", func(t *testing.T) {
		svc := &capturingPaymentSvc{}
		svc.initiateErr = service.ErrPaymentNotRequired
		router := newPaymentRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(initiateBody()))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestHandleGetPayment(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := &fakePaymentSvc{payment: pendingPayment()}
		router := newPaymentRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/tok-1", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"pending"`)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc := &fakePaymentSvc{paymentErr: service.ErrPaymentNotFound}
		router := newPaymentRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payments/missing", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleResubmitPayment(t *testing.T) {
	t.Run("terminal payment is a policy violation", func(t *testing.T) {
		svc := &fakePaymentSvc{initiateErr: service.ErrPaymentNotResubmittable}
		router := newPaymentRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments/tok-1/resubmit", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("gateway outage is retryable", func(t *testing.T) {
		svc := &fakePaymentSvc{initiateErr: service.ErrGatewayUnavailable}
		router := newPaymentRouter(svc)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payments/tok-1/resubmit", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestHandleRedirectCallback(t *testing.T) {
	approved := pendingPayment()
	approved.Status = domain.PaymentApproved
	svc := &fakePaymentSvc{payment: approved}
	router := newPaymentRouter(svc)

	// A forged status hint in the query string changes nothing; the handler
	// only reports what the service resolved against the gateway.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/payments/tok-1/callback?status=failed", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"approved"`)
	assert.Contains(t, w.Body.String(), `"successful":true`)
}
