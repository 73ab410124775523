package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/qrstock/inventory-api/docs"
	"github.com/qrstock/inventory-api/internal/api/handler"
	"github.com/qrstock/inventory-api/internal/api/middleware"
	"github.com/qrstock/inventory-api/internal/core/domain"
	"github.com/qrstock/inventory-api/internal/core/ports"
	"github.com/qrstock/inventory-api/internal/infrastructure/http/handlers"
)

// Dependencies carries everything the router wires into handlers.
type Dependencies struct {
	Scans    ports.ScanService
	Auth     ports.AuthService
	Location *time.Location
	// JWTSecret enables bearer tokens on the user management routes.
	JWTSecret string
	// Checks are pinged by the readiness probe, keyed by dependency name.
	Checks    map[string]handlers.PingFunc
	StaticDir string
	Logger    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// HTTP metrics get their own registry so several routers can coexist.
	reg := prometheus.NewRegistry()

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORS())
	e.Use(requestLogger(deps.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "inventory",
		Subsystem:  "http",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	// --- Dependencies ---
	scanHandler := handler.NewScanHandler(deps.Scans, deps.Location)
	authHandler := handler.NewAuthHandler(deps.Auth)
	userHandler := handler.NewUserHandler(deps.Auth)
	bearer := middleware.BearerToken(deps.JWTSecret)

	// --- Scan routes ---
	apiGroup := e.Group("/api")
	apiGroup.POST("/save-qr", scanHandler.SaveQR, bearer)
	apiGroup.GET("/recent-scans", scanHandler.RecentScans)
	apiGroup.GET("/stats", scanHandler.Stats)
	apiGroup.POST("/validate-user", authHandler.ValidateUser)

	// --- User management (superadmin only) ---
	users := apiGroup.Group("/users", bearer, middleware.Credentials(deps.Auth), middleware.RBAC(domain.RoleSuperadmin))
	users.GET("", userHandler.List)
	users.POST("", userHandler.Save)
	users.PUT("/:usuario", userHandler.Update)
	users.DELETE("/:usuario", userHandler.Delete)

	// --- Health probes (no auth required) ---
	healthHandler := handlers.NewHealthHandler()
	readinessHandler := handlers.NewReadinessHandler(deps.Checks)

	apiGroup.GET("/health", healthHandler.Liveness)
	apiGroup.GET("/health/ready", readinessHandler.Readiness)

	// --- Metrics & docs ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, reg},
	}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	if deps.StaticDir != "" {
		e.Static("/", deps.StaticDir)
	}

	return e
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Warn().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
