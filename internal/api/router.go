package api

import (
	"net/http"

	"github.com/evetabi/bookie/internal/api/handler"
	"github.com/evetabi/bookie/internal/api/middleware"
	"github.com/evetabi/bookie/internal/config"
	"github.com/evetabi/bookie/internal/repository"
	"github.com/evetabi/bookie/internal/scheduler"
	"github.com/evetabi/bookie/internal/ws"
	"github.com/gin-gonic/gin"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	Sched     *scheduler.Scheduler
	BlockRepo *repository.BlockRepository
	EventRepo *repository.EventRepository
	Hub       *ws.Hub
	Cfg       *config.Config
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
	txH := handler.NewTxHandler(deps.Sched)
	queryH := handler.NewQueryHandler(deps.Sched, deps.BlockRepo, deps.EventRepo)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware([]byte(deps.Cfg.JWT.Secret))

	// ── Rate limiters ─────────────────────────────────────────────────────────
	queryRL := middleware.RateLimitMiddleware(50) // 50 req/s per IP for reads
	betRL := middleware.RateLimitMiddleware(30)   // 30 req/s per IP for bet submission

	api := r.Group("/api")
	{
		// ── Public reads ─────────────────────────────────────────────────────
		public := api.Group("")
		public.Use(queryRL)
		{
			public.GET("/groups", queryH.ListGroups)
			public.GET("/groups/:id", queryH.GetGroup)
			public.GET("/markets/:id/book", queryH.GetMarketBook)
			public.GET("/chain/head", queryH.GetChainHead)
			public.GET("/blocks/:height", queryH.GetBlock)
			public.GET("/txs/:id", queryH.GetReceipt)
		}

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			// Bets
			bets := authed.Group("/bets")
			bets.Use(betRL)
			{
				bets.POST("", txH.PlaceBet)
				bets.DELETE("/:id", txH.CancelBet)
			}

			// Per-bettor views
			authed.GET("/markets/:id/bets", queryH.GetMyBets)
			authed.GET("/markets/:id/position", queryH.GetPosition)
			authed.GET("/balance", queryH.GetBalance)
			authed.GET("/events/my", queryH.GetMyEvents)

			// Operator surface: raw transaction submission
			admin := authed.Group("/admin")
			admin.Use(middleware.OperatorMiddleware())
			{
				admin.POST("/txs", txH.SubmitTx)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In DEBUG mode all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://bookie.evetabi.com":     true,
				"https://www.bookie.evetabi.com": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
