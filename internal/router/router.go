package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"asr_server/internal/bootstrap"
	"asr_server/internal/handlers"
	"asr_server/internal/middleware"
	"asr_server/internal/ws"
)

// NewRouter creates and configures the router with all routes.
// All dependencies are explicitly injected through AppDependencies.
func NewRouter(deps *bootstrap.AppDependencies) *gin.Engine {
	ginRouter := gin.New()

	// Use custom structured logger and standard recovery
	ginRouter.Use(middleware.RequestID())
	ginRouter.Use(middleware.Logger())
	ginRouter.Use(gin.Recovery())

	// Create WebSocket handler with explicit dependencies
	wsHandler := ws.NewHandler(deps.Config, deps.Validator, deps.Pipeline, deps.Supervisor, deps.Metrics, deps.Registry)

	// Register base routes
	ginRouter.GET("/ws", func(c *gin.Context) {
		wsHandler.HandleWebSocket(c.Writer, c.Request)
	})
	ginRouter.GET("/health", handlers.HealthHandler(deps))
	ginRouter.GET("/stats", handlers.StatsHandler(deps))
	ginRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Static file service
	ginRouter.Static("/static", "./static")
	ginRouter.StaticFile("/", "./static/index.html")

	return ginRouter
}
