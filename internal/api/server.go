/**
 * @description
 * This file sets up the main HTTP server for the gas station using the Gin framework.
 * It is responsible for initializing the router, setting up middleware, and defining API routes.
 *
 * Key features:
 * - Gin Router: Utilizes Gin for high-performance HTTP routing.
 * - Middleware: Correlation IDs, request logging, panic recovery, CORS and
 *   per-wallet rate limiting.
 * - Route Grouping: Organizes API routes under a versioned `/api/v1` group.
 * - Dependency Injection: The server holds the sponsorship services and the
 *   websocket hub, which are passed to HTTP handlers.
 */

package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/poly-pro/gas-station/internal/config"
	"github.com/poly-pro/gas-station/internal/services"
	"github.com/poly-pro/gas-station/internal/websocket"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP layer delegates to.
type Dependencies struct {
	Quotas       *services.QuotaService
	Sponsorships *services.SponsorshipService
	Hub          *websocket.Hub
	// Auth validates the caller and stores their wallet address in the context.
	Auth gin.HandlerFunc
}

// Server serves HTTP requests for the gas station.
type Server struct {
	config       config.Config
	Router       *gin.Engine
	logger       *zap.Logger
	quotas       *services.QuotaService
	sponsorships *services.SponsorshipService
	hub          *websocket.Hub
}

/**
 * @description
 * NewServer creates a new HTTP server and sets up all the necessary routing.
 *
 * @param ctx The root context for the server, used for graceful shutdown.
 * @param cfg The application configuration.
 * @param deps The services, hub and auth middleware.
 * @param logger The component logger.
 * @returns A pointer to a new Server instance.
 */
func NewServer(ctx context.Context, cfg config.Config, deps Dependencies, logger *zap.Logger) *Server {
	registerValidators()

	server := &Server{
		config:       cfg,
		logger:       logger,
		quotas:       deps.Quotas,
		sponsorships: deps.Sponsorships,
		hub:          deps.Hub,
	}

	router := gin.New()
	router.Use(correlationID(), requestLogger(logger), gin.Recovery(), cors(cfg.AllowedOrigins))

	// ------------------------------------------------------------------
	// Route Definitions
	// ------------------------------------------------------------------
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Gas station is healthy and running!",
		})
	})

	limiter := NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst, logger)

	v1 := router.Group("/api/v1")
	v1.Use(deps.Auth)
	{
		// The token may arrive as a query parameter for the websocket upgrade.
		v1.GET("/ws", server.serveWs)

		sponsorship := v1.Group("/sponsorship")
		sponsorship.Use(limiter.Middleware())
		{
			sponsorship.GET("/quota", server.getQuota)
			sponsorship.POST("/prepare", server.prepareSponsorship)
			sponsorship.POST("/submit", server.submitSponsorship)
		}
	}

	server.Router = router
	return server
}
