package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fespa/contest-api/internal/api/handler/v1/request"
	"github.com/fespa/contest-api/internal/api/handler/v1/response"
	"github.com/fespa/contest-api/internal/api/middleware"
	"github.com/fespa/contest-api/internal/config"
	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/service"
)

type PaymentService interface {
	InitiatePayment(ctx context.Context, input service.InitiatePaymentInput) (service.InitiatedPayment, error)
	ResubmitPayment(ctx context.Context, token string) (service.InitiatedPayment, error)
	GetStatus(ctx context.Context, token string) (domain.Payment, error)
	SyncFromRedirect(ctx context.Context, token string) (domain.Payment, error)
	Cancel(ctx context.Context, token string) (domain.Payment, error)
	HandleWebhook(ctx context.Context, input service.WebhookInput) error
	ListGatewayEvents(ctx context.Context, limit int) ([]domain.GatewayEvent, error)
}

type PaymentHandler struct {
	svc    PaymentService
	voting *config.VotingConfig
}

func NewPaymentHandler(svc PaymentService, voting *config.VotingConfig) *PaymentHandler {
	return &PaymentHandler{
		svc:    svc,
		voting: voting,
	}
}

// HandleInitiatePayment godoc
// @Summary      Initiate a payment for paid votes
// @Description  Creates a pending payment intent and registers it with the gateway. When the gateway is down the intent is preserved and the token returned with a 503 so the client can resubmit.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        input  body      request.InitiatePaymentRequest  true  "Payment details"
// @Success      201    {object}  response.Envelope
// @Failure      400    {object}  response.Err
// @Failure      422    {object}  response.Err
// @Failure      500    {object}  response.Err
// @Failure      503    {object}  response.Err
// @Router       /payments [post]
func (h *PaymentHandler) HandleInitiatePayment(ctx *gin.Context) {
	var req request.InitiatePaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(h.voting.PhoneCountryCode, h.voting.PhoneLocalDigits); err != nil {
		response.RenderErr(ctx, response.ErrValidation(err))
		return
	}

	phone, err := request.NormalizePhone(req.Phone, h.voting.PhoneCountryCode, h.voting.PhoneLocalDigits)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	initiated, err := h.svc.InitiatePayment(ctx.Request.Context(), service.InitiatePaymentInput{
		CandidateID: req.CandidateID,
		EditionID:   req.EditionID,
		CategoryID:  req.CategoryID,
		VotesCount:  req.VotesCount,
		VoterID:     voterIDFromContext(ctx),
		Email:       req.Email,
		Phone:       phone,
		Firstname:   req.Firstname,
		Lastname:    req.Lastname,
	})
	if err != nil {
		if errors.Is(err, service.ErrGatewayUnavailable) && initiated.Payment.ID != 0 {
			// The intent survived; hand back the token so the client can
			// resubmit without paying twice.
			ctx.JSON(http.StatusServiceUnavailable, response.OK(response.NewInitiatedPayment(initiated.Payment, "")))
			return
		}
		renderPaymentErr(ctx, "HandleInitiatePayment", err)
		return
	}

	ctx.JSON(http.StatusCreated, response.OK(response.NewInitiatedPayment(initiated.Payment, initiated.CheckoutURL)))
}

// HandleGetPayment godoc
// @Summary      Get a payment's current status by token
// @Description  Pending payments past their deadline flip to expired on this read.
// @Tags         payments
// @Produce      json
// @Param        token  path      string  true  "Payment token"
// @Success      200  {object}  response.Envelope
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /payments/{token} [get]
func (h *PaymentHandler) HandleGetPayment(ctx *gin.Context) {
	payment, err := h.svc.GetStatus(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		renderPaymentErr(ctx, "HandleGetPayment", err)
		return
	}

	ctx.JSON(http.StatusOK, response.OK(response.NewPayment(payment)))
}

// HandleResubmitPayment godoc
// @Summary      Resubmit a pending payment to the gateway
// @Description  Creates a fresh gateway transaction for a payment whose previous submission failed or stalled. Terminal payments are rejected.
// @Tags         payments
// @Produce      json
// @Param        token  path      string  true  "Payment token"
// @Success      200  {object}  response.Envelope
// @Failure      404  {object}  response.Err
// @Failure      422  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Failure      503  {object}  response.Err
// @Router       /payments/{token}/resubmit [post]
func (h *PaymentHandler) HandleResubmitPayment(ctx *gin.Context) {
	initiated, err := h.svc.ResubmitPayment(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		renderPaymentErr(ctx, "HandleResubmitPayment", err)
		return
	}

	ctx.JSON(http.StatusOK, response.OK(response.NewInitiatedPayment(initiated.Payment, initiated.CheckoutURL)))
}

// HandleRedirectCallback godoc
// @Summary      Finalize a payment after the gateway redirect
// @Description  The redirect's query parameters are never trusted; the authoritative status is fetched from the gateway before any state change.
// @Tags         payments
// @Produce      json
// @Param        token  path      string  true  "Payment token"
// @Success      200  {object}  response.Envelope
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Failure      503  {object}  response.Err
// @Router       /payments/{token}/callback [get]
func (h *PaymentHandler) HandleRedirectCallback(ctx *gin.Context) {
	payment, err := h.svc.SyncFromRedirect(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		renderPaymentErr(ctx, "HandleRedirectCallback", err)
		return
	}

	ctx.JSON(http.StatusOK, response.OK(response.NewPayment(payment)))
}

// HandleCancelPayment godoc
// @Summary      Cancel a pending payment
// @Tags         payments
// @Produce      json
// @Param        token  path      string  true  "Payment token"
// @Success      200  {object}  response.Envelope
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /payments/{token}/cancel [post]
func (h *PaymentHandler) HandleCancelPayment(ctx *gin.Context) {
	payment, err := h.svc.Cancel(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		renderPaymentErr(ctx, "HandleCancelPayment", err)
		return
	}

	ctx.JSON(http.StatusOK, response.OK(response.NewPayment(payment)))
}

func renderPaymentErr(ctx *gin.Context, handler string, err error) {
	switch {
	case errors.Is(err, service.ErrPaymentNotFound):
		response.RenderErr(ctx, response.ErrNotFound("payment", "token", ctx.Param("token")))
	case errors.Is(err, service.ErrPaymentNotResubmittable):
		response.RenderErr(ctx, response.ErrPolicyViolation(err))
	case errors.Is(err, service.ErrGatewayUnavailable):
		response.RenderErr(ctx, response.ErrGatewayUnavailable())
	default:
		renderVoteErr(ctx, handler, err)
	}
}

// voterIDFromContext returns the authenticated voter's id, or nil for
// anonymous callers. Payment initiation accepts both.
func voterIDFromContext(ctx *gin.Context) *uint {
	id := ctx.GetUint(middleware.CtxKeyUserID)
	if id == 0 {
		return nil
	}

	return &id
}
