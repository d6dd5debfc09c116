package handler

import (
	"errors"
	"net/http"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/candlerush/arcade/internal/repository"
	"github.com/candlerush/arcade/internal/round"
	"github.com/gin-gonic/gin"
)

// RoundHandler serves round state and settlement endpoints.
type RoundHandler struct {
	ctrl *round.Controller
	repo *repository.RoundRepository
}

// NewRoundHandler creates a RoundHandler.
func NewRoundHandler(ctrl *round.Controller, repo *repository.RoundRepository) *RoundHandler {
	return &RoundHandler{ctrl: ctrl, repo: repo}
}

// GetCurrent godoc
// GET /api/v1/round
func (h *RoundHandler) GetCurrent(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.ctrl.View())
}

// ConfirmSettlement godoc
// POST /api/v1/round/settle [session]
//
// Round end alone never moves money; this endpoint is the explicit player
// confirmation.  A repeated call while settlement is already in flight is a
// no-op and still returns 202.
func (h *RoundHandler) ConfirmSettlement(c *gin.Context) {
	err := h.ctrl.ConfirmSettlement(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoundNotActive):
			respondError(c, http.StatusConflict, "ERR_NO_ROUND", "no round to settle")
		case errors.Is(err, domain.ErrRoundNotEnded):
			respondError(c, http.StatusConflict, "ERR_ROUND_RUNNING", "round has not ended yet")
		case errors.Is(err, domain.ErrMissingStakeRef):
			respondError(c, http.StatusConflict, "ERR_NO_STAKE_REF", "round had no stake reference and was reset")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not start settlement")
		}
		return
	}
	respondSuccess(c, http.StatusAccepted, h.ctrl.View())
}

// ListRecent godoc
// GET /api/v1/rounds/recent?limit=20
func (h *RoundHandler) ListRecent(c *gin.Context) {
	limit := parseLimit(c, 20, 100)

	rounds, err := h.repo.ListSettled(c.Request.Context(), limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch rounds")
		return
	}
	respondList(c, rounds, len(rounds), limit)
}
