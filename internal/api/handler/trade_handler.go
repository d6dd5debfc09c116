package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/candlerush/arcade/internal/engine"
	"github.com/candlerush/arcade/internal/round"
	"github.com/candlerush/arcade/internal/ws"
	"github.com/gin-gonic/gin"
)

// TradeHandler serves position open/close endpoints.  Prices are never taken
// from the client: both entry and exit are read from the live candle feed.
type TradeHandler struct {
	ctrl *round.Controller
	feed *engine.Feed
	hub  *ws.Hub
}

// NewTradeHandler creates a TradeHandler.  hub may be nil.
func NewTradeHandler(ctrl *round.Controller, feed *engine.Feed, hub *ws.Hub) *TradeHandler {
	return &TradeHandler{ctrl: ctrl, feed: feed, hub: hub}
}

// Open godoc
// POST /api/v1/trades/open [session]
func (h *TradeHandler) Open(c *gin.Context) {
	price := h.feed.CurrentPrice()

	trade, err := h.ctrl.OpenTrade(price)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoundNotActive):
			respondError(c, http.StatusConflict, "ERR_ROUND_NOT_ACTIVE", "no active round")
		case errors.Is(err, domain.ErrTradeAlreadyOpen):
			respondError(c, http.StatusConflict, "ERR_TRADE_OPEN", "a position is already open")
		case errors.Is(err, domain.ErrInvalidPrice):
			respondError(c, http.StatusConflict, "ERR_NO_PRICE", "no live price available")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not open trade")
		}
		return
	}

	if h.hub != nil {
		h.hub.BroadcastTradeOpened(ws.TradeOpenedMessage{
			Type:       ws.MsgTypeTradeOpened,
			Seed:       h.feed.Seed(),
			EntryPrice: trade.EntryPrice,
			Size:       trade.Size,
			Timestamp:  time.Now().UTC(),
		})
	}
	respondSuccess(c, http.StatusCreated, trade)
}

// Close godoc
// POST /api/v1/trades/close [session]
func (h *TradeHandler) Close(c *gin.Context) {
	price := h.feed.CurrentPrice()

	net, err := h.ctrl.CloseTrade(c.Request.Context(), price)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoundNotActive):
			respondError(c, http.StatusConflict, "ERR_ROUND_NOT_ACTIVE", "no active round")
		case errors.Is(err, domain.ErrNoOpenTrade):
			respondError(c, http.StatusConflict, "ERR_NO_TRADE", "no open position")
		default:
			respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not close trade")
		}
		return
	}

	view := h.ctrl.View()
	if h.hub != nil {
		h.hub.BroadcastTradeClosed(ws.TradeClosedMessage{
			Type:           ws.MsgTypeTradeClosed,
			Seed:           h.feed.Seed(),
			ExitPrice:      price,
			NetPnl:         net,
			AccumulatedPnl: view.AccumulatedPnl,
			Timestamp:      time.Now().UTC(),
		})
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"net_pnl":         net,
		"accumulated_pnl": view.AccumulatedPnl,
	})
}
