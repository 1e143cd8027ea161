package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/videotube/account-service/docs"
	"github.com/videotube/account-service/internal/api/handler"
	"github.com/videotube/account-service/internal/api/middleware"
	"github.com/videotube/account-service/internal/core/ports"
)

const basePath = "/api/v1"

// Dependencies is everything the HTTP layer needs from the rest of the service.
type Dependencies struct {
	Sessions    ports.SessionService
	Verifier    ports.TokenVerifier
	Checks      map[string]handler.Check
	Cookies     handler.CookieConfig
	CORSOrigins []string
	BodyLimit   string
	Logger      zerolog.Logger
	DisableDocs bool

	// Registry receives the HTTP metrics. nil uses the default registry,
	// which also holds the service's own metrics.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	bodyLimit := deps.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "10M"
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Logger))
	e.Use(echomiddleware.BodyLimit(bodyLimit))
	if len(deps.CORSOrigins) > 0 {
		e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
			AllowOrigins:     deps.CORSOrigins,
			AllowCredentials: true,
		}))
	}
	mwCfg := echoprometheus.MiddlewareConfig{Subsystem: "account"}
	var metricsHandler echo.HandlerFunc
	if deps.Registry != nil {
		mwCfg.Registerer = deps.Registry
		metricsHandler = echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: deps.Registry})
	} else {
		metricsHandler = echoprometheus.NewHandler()
	}
	e.Use(echoprometheus.NewMiddlewareWithConfig(mwCfg))

	e.GET("/metrics", metricsHandler)
	if !deps.DisableDocs {
		e.GET("/swagger/*", echoSwagger.WrapHandler)
	}

	v1 := e.Group(basePath)

	// --- Health probes (no auth required) ---
	health := handler.NewHealthHandler(deps.Checks, deps.Logger)
	v1.GET("/healthcheck", health.Liveness)
	v1.GET("/healthcheck/ready", health.Readiness)

	// --- Session routes ---
	sessions := handler.NewSessionHandler(deps.Sessions, deps.Cookies)
	users := v1.Group("/users")
	users.POST("/register", sessions.Register)
	users.POST("/login", sessions.Login)
	users.POST("/refresh-token", sessions.Refresh)
	users.POST("/logout", sessions.Logout, middleware.Auth(deps.Verifier))

	return e
}
