package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/assurminut/crm-identity/internal/api/handler"
	"github.com/assurminut/crm-identity/internal/api/middleware"
	"github.com/assurminut/crm-identity/internal/core/policy"
	"github.com/assurminut/crm-identity/internal/core/ports"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Auth      ports.AuthService
	Accounts  ports.AccountService
	JWTSecret string

	// Revocations rejects tokens ended by logout. Nil disables the check.
	Revocations ports.TokenRevoker

	// LoginRate is requests per second per client IP on /auth/login.
	LoginRate  float64
	LoginBurst int

	// Readiness checks run by /health/ready, keyed by dependency name.
	Readiness map[string]handler.Check

	// Registerer receives the HTTP request metrics and Gatherer serves
	// /metrics. Nil Registerer means the default Prometheus registry; nil
	// Gatherer means the Registerer itself when it can gather.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Log zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	registerer, gatherer := metricsRegistry(deps)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(deps.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "crm_identity",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || strings.HasPrefix(c.Path(), "/health")
		},
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(deps.Auth, deps.Accounts)
	accountHandler := handler.NewAccountHandler(deps.Accounts)
	authMiddleware := middleware.Auth(deps.JWTSecret, deps.Revocations)

	// --- Auth routes ---
	e.POST("/auth/login", authHandler.Login, middleware.LoginRateLimit(deps.LoginRate, deps.LoginBurst))
	e.POST("/auth/logout", authHandler.Logout, authMiddleware)
	e.GET("/auth/me", authHandler.Me, authMiddleware)

	// --- Account routes ---
	v1 := e.Group("/v1", authMiddleware)
	v1.GET("/accounts", accountHandler.List, middleware.RBAC(policy.ActionView))
	v1.POST("/accounts", accountHandler.Create, middleware.RBAC(policy.ActionCreate))
	v1.GET("/accounts/stats", accountHandler.Stats, middleware.RBAC(policy.ActionViewStats))
	v1.GET("/accounts/:id", accountHandler.Get, middleware.RBAC(policy.ActionView))
	v1.PATCH("/accounts/:id", accountHandler.Update, middleware.RBAC(policy.ActionUpdate))
	v1.DELETE("/accounts/:id", accountHandler.Delete, middleware.RBAC(policy.ActionDelete))
	v1.POST("/accounts/:id/reset-password", accountHandler.ResetPassword, middleware.RBAC(policy.ActionResetPassword))

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(deps.Readiness)

	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))

	return e
}

func metricsRegistry(deps Deps) (prometheus.Registerer, prometheus.Gatherer) {
	registerer := deps.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		if g, ok := registerer.(prometheus.Gatherer); ok {
			gatherer = g
		} else {
			gatherer = prometheus.DefaultGatherer
		}
	}
	return registerer, gatherer
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil || v.Status >= 500 {
				event = log.Warn()
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
