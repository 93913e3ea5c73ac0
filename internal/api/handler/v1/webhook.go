package v1

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fespa/contest-api/internal/api/handler/v1/response"
	"github.com/fespa/contest-api/internal/gateway/fedapay"
	"github.com/fespa/contest-api/internal/service"
)

type WebhookVerifier interface {
	VerifyWebhookSignature(rawBody []byte, signatureHeader string) bool
}

type WebhookHandler struct {
	svc      PaymentService
	verifier WebhookVerifier
}

func NewWebhookHandler(svc PaymentService, verifier WebhookVerifier) *WebhookHandler {
	return &WebhookHandler{
		svc:      svc,
		verifier: verifier,
	}
}

// HandleFedaPayWebhook godoc
// @Summary      Receive a FedaPay transaction webhook
// @Description  Verifies the HMAC signature over the raw body, then drives the payment state machine. Duplicate deliveries and unknown transactions are acknowledged so the provider does not retry them.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /webhooks/fedapay [post]
func (h *WebhookHandler) HandleFedaPayWebhook(ctx *gin.Context) {
	rawBody, err := io.ReadAll(ctx.Request.Body)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("failed to read webhook body: %w", err)))
		return
	}

	if !h.verifier.VerifyWebhookSignature(rawBody, ctx.GetHeader(fedapay.SignatureHeader)) {
		zap.L().Warn("webhook rejected, invalid signature",
			zap.String("remote_addr", ctx.ClientIP()))
		response.RenderErr(ctx, response.ErrUnauthorized("invalid webhook signature"))
		return
	}

	event, err := fedapay.ParseWebhook(rawBody)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	err = h.svc.HandleWebhook(ctx.Request.Context(), service.WebhookInput{
		ProviderEventID: event.ID,
		EventName:       event.Name,
		TransactionID:   event.Entity.ID.String(),
		ProviderStatus:  event.Entity.Status,
		RawPayload:      string(rawBody),
	})
	if err != nil {
		err = fmt.Errorf("HandleFedaPayWebhook -> h.svc.HandleWebhook -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"received": true})
}
