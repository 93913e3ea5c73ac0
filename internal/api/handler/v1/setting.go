package v1

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fespa/contest-api/internal/api/handler/v1/request"
	"github.com/fespa/contest-api/internal/api/handler/v1/response"
	"github.com/fespa/contest-api/internal/domain"
)

type SettingHandler struct {
	voteSvc    VoteService
	paymentSvc PaymentService
}

func NewSettingHandler(voteSvc VoteService, paymentSvc PaymentService) *SettingHandler {
	return &SettingHandler{
		voteSvc:    voteSvc,
		paymentSvc: paymentSvc,
	}
}

// HandleUpsertVoteSetting godoc
// @Summary      Create or update a vote setting
// @Description  Upserts the setting for an (edition, category) scope. category_id 0 or absent targets the edition-wide setting. Changes only affect votes and payments created afterwards.
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        editionID  path      int                               true  "Edition ID"
// @Param        input      body      request.UpsertVoteSettingRequest  true  "Setting details"
// @Success      200  {object}  response.Envelope
// @Failure      400  {object}  response.Err
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /editions/{editionID}/settings [put]
// @Security     BearerAuth
func (h *SettingHandler) HandleUpsertVoteSetting(ctx *gin.Context) {
	editionID, err := strconv.ParseUint(ctx.Param("editionID"), 10, 64)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid edition ID: %w", err)))
		return
	}

	var req request.UpsertVoteSettingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrValidation(err))
		return
	}

	setting, err := h.voteSvc.UpsertSetting(ctx.Request.Context(), domain.VoteSetting{
		EditionID:              uint(editionID),
		CategoryID:             req.CategoryID,
		IsPaid:                 req.IsPaid,
		VotePrice:              req.VotePrice,
		FreeVotesPerUser:       req.FreeVotesPerUser,
		MaxVotesPerUser:        req.MaxVotesPerUser,
		MaxVotesPerCandidate:   req.MaxVotesPerCandidate,
		SingleVotePerCandidate: req.SingleVotePerCandidate,
		VoteStart:              req.VoteStart,
		VoteEnd:                req.VoteEnd,
		PaymentMethods:         req.PaymentMethods,
	})
	if err != nil {
		err = fmt.Errorf("HandleUpsertVoteSetting -> h.voteSvc.UpsertSetting -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.OK(setting))
}

// HandleListGatewayEvents godoc
// @Summary      List recently received gateway events
// @Description  Audit view over the webhook dedup log, newest first.
// @Tags         settings
// @Produce      json
// @Param        limit  query     int  false  "Maximum events to return (default 50)"
// @Success      200  {object}  response.Envelope
// @Failure      401  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /gateway-events [get]
// @Security     BearerAuth
func (h *SettingHandler) HandleListGatewayEvents(ctx *gin.Context) {
	limit := 50
	if raw := ctx.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid limit")))
			return
		}
		limit = parsed
	}

	events, err := h.paymentSvc.ListGatewayEvents(ctx.Request.Context(), limit)
	if err != nil {
		err = fmt.Errorf("HandleListGatewayEvents -> h.paymentSvc.ListGatewayEvents -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.OK(events))
}
