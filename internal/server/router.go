package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/cassiama/LicenseGuard-API/internal/handlers"
	"github.com/cassiama/LicenseGuard-API/internal/middleware"
)

type RouterConfig struct {
	ServiceName        string
	AllowOrigins       []string
	TracingEnabled     bool
	AuthMiddleware     *middleware.AuthMiddleware
	UserHandler        *handlers.UserHandler
	AnalyzeHandler     *handlers.AnalyzeHandler
	HealthcheckHandler *handlers.HealthcheckHandler
	DeprecatedHandler  *handlers.DeprecatedHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	if cfg.TracingEnabled {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:8000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", cfg.HealthcheckHandler.Get)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/users/", cfg.UserHandler.Register)
	router.POST("/users/token", cfg.UserHandler.Token)

	// Retired surface, kept only to emit deprecation signaling.
	router.GET("/", cfg.DeprecatedHandler.Root)
	router.POST("/llm/guess", cfg.DeprecatedHandler.LlmGuess)
	router.GET("/status/:project_id", cfg.DeprecatedHandler.Status)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	protected.POST("/analyze", cfg.AnalyzeHandler.Analyze)
	protected.GET("/users/me", cfg.UserHandler.Me)

	return router
}
