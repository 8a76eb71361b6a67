package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/application-intake/internal/adapters/http/dto"
	"github.com/jsamuelsen/application-intake/internal/adapters/http/handlers"
	"github.com/jsamuelsen/application-intake/internal/adapters/http/middleware"
	"github.com/jsamuelsen/application-intake/internal/domain"
	"github.com/jsamuelsen/application-intake/internal/platform/config"
	"github.com/jsamuelsen/application-intake/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// ApplicationsPath is where the intake form posts.
const ApplicationsPath = "/api/v1/applications"

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	Logger     *slog.Logger
	AuthConfig *config.AuthConfig
	AppConfig  *config.AppConfig

	HealthHandler *handlers.HealthHandler
	IntakeHandler *handlers.IntakeHandler
	AdminHandler  *handlers.AdminHandler

	// RateLimiter throttles the intake routes per client IP. Nil disables it.
	RateLimiter *middleware.ClientRateLimiter

	// Timeout is the request deadline for /api/v1 routes. Zero disables it.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Global middleware, first to last:
//  1. Recovery
//  2. Context logger
//  3. Request ID and correlation ID
//  4. OpenTelemetry tracing, then HTTP metrics
//  5. Request logging (skips /-/)
//
// Route groups:
//   - /-/: health and metrics, no auth
//   - /api/v1/applications: public intake, rate limited
//   - /api/v1/admin: gateway claims plus a capability per route
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.ContextLogger(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.AppConfig.Name),
		telemetry.Middleware(),
		middleware.Logging(cfg.Logger),
	)

	engine.NoRoute(func(c *gin.Context) {
		dto.RespondWithCode(c, dto.ErrorCodeNotFound, "route not found")
	})

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.SimpleTimeout(cfg.Timeout))
	}

	setupAPIRoutes(apiV1, cfg)
}

func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.IntakeHandler != nil {
		intake := rg.Group("/applications")
		if cfg.RateLimiter != nil {
			intake.Use(middleware.RateLimit(cfg.RateLimiter))
		}

		cfg.IntakeHandler.RegisterRoutes(intake)
	}

	if cfg.AdminHandler != nil {
		admin := rg.Group("/admin")
		admin.Use(middleware.RequireAuth(cfg.AuthConfig))

		canRead := middleware.RequireCapability(cfg.AuthConfig, domain.CapReadPrivateApps)
		canManage := middleware.RequireCapability(cfg.AuthConfig, domain.CapManageOptions)

		admin.GET("/applications", canRead, cfg.AdminHandler.ListApplications)
		admin.GET("/settings", canRead, cfg.AdminHandler.GetSettings)
		admin.PUT("/settings", canManage, cfg.AdminHandler.UpdateSettings)
	}
}
