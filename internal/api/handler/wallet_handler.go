package handler

import (
	"net/http"

	"github.com/candlerush/arcade/internal/api/middleware"
	"github.com/candlerush/arcade/internal/chain"
	"github.com/candlerush/arcade/internal/config"
	"github.com/candlerush/arcade/internal/domain"
	"github.com/candlerush/arcade/internal/gateway"
	"github.com/candlerush/arcade/internal/round"
	"github.com/gin-gonic/gin"
)

// WalletHandler serves wallet connect/disconnect endpoints.  Connecting binds
// the wallet address to the gateway, seeds the controller's session state, and
// issues a session token for player-scoped calls.
type WalletHandler struct {
	ctrl   *round.Controller
	gw     *gateway.TransactionGateway
	reader chain.Reader
	cfg    *config.Config
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(ctrl *round.Controller, gw *gateway.TransactionGateway, reader chain.Reader, cfg *config.Config) *WalletHandler {
	return &WalletHandler{ctrl: ctrl, gw: gw, reader: reader, cfg: cfg}
}

// Connect godoc
// POST /api/v1/wallet/connect
// Body: {"address":"<base58>"}
func (h *WalletHandler) Connect(c *gin.Context) {
	var body struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	if err := chain.ValidateAddress(body.Address); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ADDRESS", "address must be a 32-byte base58 public key")
		return
	}

	balance, err := h.reader.ViewBalance(c.Request.Context(), body.Address)
	if err != nil {
		respondError(c, http.StatusBadGateway, "ERR_CHAIN", "could not read wallet balance")
		return
	}

	token, err := middleware.IssueSessionToken([]byte(h.cfg.Session.Secret), body.Address, h.cfg.Session.TTL)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not issue session token")
		return
	}

	h.gw.SetPlayer(body.Address)
	h.ctrl.OnWalletChanged(c.Request.Context(), domain.WalletSession{
		Connected: true,
		Address:   body.Address,
		Balance:   balance,
	})

	respondSuccess(c, http.StatusOK, gin.H{
		"token":   token,
		"address": body.Address,
		"balance": balance,
	})
}

// Disconnect godoc
// POST /api/v1/wallet/disconnect [session]
//
// A disconnect while a round is in flight is accepted but deferred: the
// controller keeps the round alive until the pending money settles.
func (h *WalletHandler) Disconnect(c *gin.Context) {
	address := middleware.GetWallet(c)

	h.ctrl.OnWalletChanged(c.Request.Context(), domain.WalletSession{
		Connected: false,
		Address:   address,
	})

	respondSuccess(c, http.StatusOK, gin.H{
		"status": h.ctrl.View().Status,
	})
}

// Session godoc
// GET /api/v1/wallet [session]
func (h *WalletHandler) Session(c *gin.Context) {
	respondSuccess(c, http.StatusOK, h.ctrl.Wallet())
}
