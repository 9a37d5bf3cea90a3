package http

import (
	"time"

	"github.com/GriffinCanCode/webview-mcp/internal/api/middleware"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/tracing"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig wires the gateway's routes and middleware.
type RouterConfig struct {
	Handlers *Handlers
	// Stream serves /api/stream. Omitted when nil.
	Stream  gin.HandlerFunc
	Metrics *monitoring.Metrics
	Logger  *zap.Logger
	// CORS defaults to middleware.DefaultCORSConfig when it has no origins.
	CORS middleware.CORSConfig
	// RateLimit enables limiting when non-nil.
	RateLimit *middleware.RateLimitConfig
	// Tracer opens a span per request when non-nil.
	Tracer *tracing.Tracer
}

// NewRouter builds the gateway engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Tracer != nil {
		router.Use(tracing.HTTPMiddleware(cfg.Tracer))
	}
	router.Use(middleware.Logger(logger, time.Second))
	if cfg.Metrics != nil {
		router.Use(monitoring.Middleware(cfg.Metrics))
	}
	corsCfg := cfg.CORS
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg = middleware.DefaultCORSConfig()
	}
	router.Use(middleware.CORS(corsCfg))
	if cfg.RateLimit != nil {
		router.Use(middleware.Limit(*cfg.RateLimit))
	}

	h := cfg.Handlers
	api := router.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/stats", h.Stats)
		api.POST("/execute", h.Execute)
		api.POST("/invoke", h.Invoke)
		api.POST("/results", h.StoreResult)
		if cfg.Stream != nil {
			api.GET("/stream", cfg.Stream)
		}
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	return router
}
