package api

import (
	"net/http"

	"github.com/candlerush/arcade/internal/api/handler"
	"github.com/candlerush/arcade/internal/api/middleware"
	"github.com/candlerush/arcade/internal/chain"
	"github.com/candlerush/arcade/internal/config"
	"github.com/candlerush/arcade/internal/engine"
	"github.com/candlerush/arcade/internal/gateway"
	"github.com/candlerush/arcade/internal/repository"
	"github.com/candlerush/arcade/internal/round"
	"github.com/candlerush/arcade/internal/ws"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Ctrl    *round.Controller
	Feed    *engine.Feed
	Gateway *gateway.TransactionGateway
	Reader  chain.Reader
	Repo    *repository.RoundRepository
	Hub     *ws.Hub
	Cfg     *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	walletH := handler.NewWalletHandler(deps.Ctrl, deps.Gateway, deps.Reader, deps.Cfg)
	roundH := handler.NewRoundHandler(deps.Ctrl, deps.Repo)
	tradeH := handler.NewTradeHandler(deps.Ctrl, deps.Feed, deps.Hub)

	// ── Session middleware (shared) ──────────────────────────────────────────
	sessionMW := middleware.SessionMiddleware([]byte(deps.Cfg.Session.Secret))

	// ── Rate limiters ────────────────────────────────────────────────────────
	connectRL := middleware.RateLimitMiddleware(5) // 5 req/s per IP for connect
	tradeRL := middleware.RateLimitMiddleware(30)  // 30 req/s per IP for trades

	v1 := r.Group("/api/v1")
	{
		// ── Public round state ───────────────────────────────────────────────
		v1.GET("/round", roundH.GetCurrent)
		v1.GET("/rounds/recent", roundH.ListRecent)

		// ── Wallet connect (public, strict rate limit) ───────────────────────
		v1.POST("/wallet/connect", connectRL, walletH.Connect)

		// ── Player-scoped routes ─────────────────────────────────────────────
		authed := v1.Group("")
		authed.Use(sessionMW)
		{
			authed.GET("/wallet", walletH.Session)
			authed.POST("/wallet/disconnect", walletH.Disconnect)

			authed.POST("/round/settle", roundH.ConfirmSettlement)

			trades := authed.Group("/trades")
			trades.Use(tradeRL)
			{
				trades.POST("/open", tradeH.Open)
				trades.POST("/close", tradeH.Close)
			}
		}
	}

	// ── WebSocket ────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured ones.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			for _, o := range cfg.Server.AllowedOrigins {
				if o == "*" || o == origin {
					c.Header("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
