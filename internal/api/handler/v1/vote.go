package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fespa/contest-api/internal/api/handler/v1/request"
	"github.com/fespa/contest-api/internal/api/handler/v1/response"
	"github.com/fespa/contest-api/internal/api/middleware"
	"github.com/fespa/contest-api/internal/domain"
	"github.com/fespa/contest-api/internal/service"
)

type VoteService interface {
	CastVotes(ctx context.Context, input service.CastVotesInput) ([]domain.Vote, error)
	GetCandidacy(ctx context.Context, id uint) (domain.Candidacy, error)
	Leaderboard(ctx context.Context, editionID, categoryID uint) ([]domain.Candidacy, error)
	UpsertSetting(ctx context.Context, setting domain.VoteSetting) (domain.VoteSetting, error)
}

type VoteHandler struct {
	svc VoteService
}

func NewVoteHandler(svc VoteService) *VoteHandler {
	return &VoteHandler{
		svc: svc,
	}
}

// HandleCastVotes godoc
// @Summary      Cast free votes for a candidate
// @Description  Casts votes on the free path. Paid categories are rejected; the client must initiate a payment instead.
// @Tags         votes
// @Accept       json
// @Produce      json
// @Param        input  body      request.CastVoteRequest  true  "Vote details"
// @Success      201    {object}  response.Envelope
// @Failure      400    {object}  response.Err
// @Failure      401    {object}  response.Err
// @Failure      422    {object}  response.Err
// @Failure      500    {object}  response.Err
// @Router       /votes [post]
// @Security     BearerAuth
func (h *VoteHandler) HandleCastVotes(ctx *gin.Context) {
	voterID := ctx.GetUint(middleware.CtxKeyUserID)
	if voterID == 0 {
		response.RenderErr(ctx, response.ErrUnauthorized("voter identity is required for free votes"))
		return
	}

	var req request.CastVoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	if err := req.Validate(); err != nil {
		response.RenderErr(ctx, response.ErrValidation(err))
		return
	}

	votes, err := h.svc.CastVotes(ctx.Request.Context(), service.CastVotesInput{
		VoterID:     voterID,
		CandidateID: req.CandidateID,
		EditionID:   req.EditionID,
		CategoryID:  req.CategoryID,
		Count:       req.VotesCount,
		IPAddress:   ctx.ClientIP(),
		UserAgent:   ctx.Request.UserAgent(),
	})
	if err != nil {
		renderVoteErr(ctx, "HandleCastVotes", err)
		return
	}

	summary := response.VoteSummary{
		VotesCast: len(votes),
	}
	if len(votes) > 0 {
		summary.CandidacyID = votes[0].CandidacyID
	}

	ctx.JSON(http.StatusCreated, response.OK(summary))
}

// HandleGetCandidacy godoc
// @Summary      Get one candidacy with its vote count
// @Tags         candidacies
// @Produce      json
// @Param        candidacyID  path      int  true  "Candidacy ID"
// @Success      200  {object}  response.Envelope
// @Failure      400  {object}  response.Err
// @Failure      404  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /candidacies/{candidacyID} [get]
func (h *VoteHandler) HandleGetCandidacy(ctx *gin.Context) {
	candidacyID, err := strconv.ParseUint(ctx.Param("candidacyID"), 10, 64)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid candidacy ID: %w", err)))
		return
	}

	candidacy, err := h.svc.GetCandidacy(ctx.Request.Context(), uint(candidacyID))
	if err != nil {
		if errors.Is(err, service.ErrCandidacyNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("candidacy", "ID", candidacyID))
			return
		}

		err = fmt.Errorf("HandleGetCandidacy -> h.svc.GetCandidacy -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.OK(candidacy))
}

// HandleLeaderboard godoc
// @Summary      List an edition's candidacies ordered by vote count
// @Tags         candidacies
// @Produce      json
// @Param        editionID    path   int  true   "Edition ID"
// @Param        category_id  query  int  false  "Narrow to one category"
// @Success      200  {object}  response.Envelope
// @Failure      400  {object}  response.Err
// @Failure      500  {object}  response.Err
// @Router       /editions/{editionID}/leaderboard [get]
func (h *VoteHandler) HandleLeaderboard(ctx *gin.Context) {
	editionID, err := strconv.ParseUint(ctx.Param("editionID"), 10, 64)
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid edition ID: %w", err)))
		return
	}

	var categoryID uint64
	if raw := ctx.Query("category_id"); raw != "" {
		categoryID, err = strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.RenderErr(ctx, response.ErrBadRequest(fmt.Errorf("invalid category ID: %w", err)))
			return
		}
	}

	candidacies, err := h.svc.Leaderboard(ctx.Request.Context(), uint(editionID), uint(categoryID))
	if err != nil {
		err = fmt.Errorf("HandleLeaderboard -> h.svc.Leaderboard -> %w", err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
		return
	}

	ctx.JSON(http.StatusOK, response.OK(candidacies))
}

// renderVoteErr maps the vote policy error taxonomy onto HTTP statuses.
// Policy violations are 422 so clients can tell them apart from malformed
// requests.
func renderVoteErr(ctx *gin.Context, handler string, err error) {
	switch {
	case errors.Is(err, service.ErrSettingsNotConfigured):
		response.RenderErr(ctx, response.ErrPolicyViolation(fmt.Errorf("voting is not configured for this edition")))
	case errors.Is(err, service.ErrVotingClosed),
		errors.Is(err, service.ErrUserLimitReached),
		errors.Is(err, service.ErrCandidateLimitReached),
		errors.Is(err, service.ErrDuplicateVote),
		errors.Is(err, service.ErrNoFreeVotesLeft),
		errors.Is(err, service.ErrPaymentRequired),
		errors.Is(err, service.ErrPaymentNotRequired):
		response.RenderErr(ctx, response.ErrPolicyViolation(err))
	case errors.Is(err, service.ErrCategoryRequired):
		response.RenderErr(ctx, response.ErrBadRequest(err))
	default:
		err = fmt.Errorf("%v -> %w", handler, err)
		response.RenderErr(ctx, response.ErrInternalServerError(err))
	}
}
