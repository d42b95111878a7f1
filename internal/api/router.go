package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/gopost/repost/internal/config"
	"github.com/gopost/repost/internal/database"
)

const (
	healthStatusHealthy  = "healthy"
	healthStatusDegraded = "degraded"
	healthCheckTimeout   = 2 * time.Second
	serviceVersion       = "1.0.0"
)

// Router holds the API dependencies
type Router struct {
	handlers    *Handlers
	repo        *database.Repository
	redisClient *redis.Client
	registry    *prometheus.Registry
	cfg         *config.Config
}

// NewRouter creates a new API router
func NewRouter(
	handlers *Handlers,
	repo *database.Repository,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	cfg *config.Config,
) *Router {
	return &Router{
		handlers:    handlers,
		repo:        repo,
		redisClient: redisClient,
		registry:    registry,
		cfg:         cfg,
	}
}

// SetupRoutes builds the gin engine with middleware and all routes.
func (r *Router) SetupRoutes() *gin.Engine {
	if !r.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(r.cfg.Server.CORSOrigins))

	// Health check and metrics (public, no auth)
	router.GET("/health", r.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	v1.POST("/pipeline/run", r.handlers.RunPipeline)
	v1.GET("/queue/status", r.handlers.GetQueueStatus)
	v1.GET("/jobs/:id", r.handlers.GetJobStatus)
	v1.GET("/diagnostics", r.handlers.GetDiagnostics)
	v1.GET("/history", r.handlers.GetHistory)

	return router
}

// healthCheck returns the service health status
func (r *Router) healthCheck(c *gin.Context) {
	health := gin.H{
		"status":  healthStatusHealthy,
		"service": "repost",
		"version": serviceVersion,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	dbConnected := true
	if err := r.repo.Ping(ctx); err != nil {
		dbConnected = false
		health["status"] = healthStatusDegraded
	}
	health["database"] = gin.H{
		"connected": dbConnected,
	}

	redisConnected := true
	if r.redisClient == nil {
		redisConnected = false
	} else if err := r.redisClient.Ping(ctx).Err(); err != nil {
		redisConnected = false
	}
	if !redisConnected && health["status"] == healthStatusHealthy {
		health["status"] = healthStatusDegraded
	}
	health["redis"] = gin.H{
		"connected": redisConnected,
	}

	c.JSON(http.StatusOK, health)
}
