package api

import (
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/anonychat/anonychat-api/docs"
	"github.com/anonychat/anonychat-api/internal/api/handler"
	"github.com/anonychat/anonychat-api/internal/api/middleware"
	"github.com/anonychat/anonychat-api/internal/core/ports"
	"github.com/anonychat/anonychat-api/pkg/metrics"
)

// Services bundles the core services the HTTP layer exposes.
type Services struct {
	Accounts     ports.AccountService
	Verification ports.VerificationService
	Messages     ports.MessageService
	Sessions     ports.SessionService
	Insights     ports.InsightService
}

// Options configures the ambient parts of the router.
type Options struct {
	Logger    zerolog.Logger
	Readiness []handler.Dependency
	Features  map[string]bool

	// TrustedProxies lists the networks whose X-Forwarded-For header is
	// honored. Empty means the TCP peer address is the client address.
	TrustedProxies []*net.IPNet

	// Registry receives HTTP metrics; nil uses the default Prometheus registry.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(svc Services, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.JSONSerializer = handler.StrictJSONSerializer{}
	e.HTTPErrorHandler = NewHTTPErrorHandler(opts.Logger)
	e.IPExtractor = ipExtractor(opts.TrustedProxies)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if opts.Registry != nil {
		registerer, gatherer = opts.Registry, opts.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(opts.Logger))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  metrics.Namespace,
		Subsystem:  "http",
		Registerer: registerer,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))
	e.Use(echomiddleware.BodyLimit("64K"))

	// --- Handlers ---
	accountHandler := handler.NewAccountHandler(svc.Accounts)
	sessionHandler := handler.NewSessionHandler(svc.Sessions)
	verificationHandler := handler.NewVerificationHandler(svc.Verification)
	messageHandler := handler.NewMessageHandler(svc.Messages)
	insightHandler := handler.NewInsightHandler(svc.Insights)

	auth := middleware.Auth(svc.Sessions)
	verified := middleware.RequireVerified()

	// --- Accounts & sessions ---
	e.POST("/accounts", accountHandler.Register)
	e.GET("/accounts/username-available", accountHandler.UsernameAvailable)
	e.GET("/eligibility", accountHandler.Eligibility)
	e.POST("/sessions", sessionHandler.SignIn)
	e.GET("/sessions/me", sessionHandler.Me, auth)

	// --- Verification codes ---
	e.POST("/verify", verificationHandler.Verify)
	e.POST("/resend-verification", verificationHandler.Resend)
	e.POST("/reset-password/request", verificationHandler.RequestPasswordReset)
	e.POST("/reset-password/verify", verificationHandler.ResetPassword)

	// --- Inbox ---
	e.POST("/messages", messageHandler.Send)
	e.GET("/messages", messageHandler.List, auth, verified)
	e.DELETE("/messages/:id", messageHandler.Delete, auth, verified)
	e.GET("/accept-messages", accountHandler.GetAcceptMessages, auth, verified)
	e.POST("/accept-messages", accountHandler.SetAcceptMessages, auth, verified)

	// --- Insights ---
	e.POST("/suggest-messages", insightHandler.Suggest)
	e.POST("/summarize-messages", insightHandler.Summarize, auth, verified)

	// --- Ops ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(opts.Readiness, opts.Features)
	e.GET("/health", healthHandler.Liveness)           // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}

// ipExtractor resolves c.RealIP. Forwarding headers are only trusted when
// the immediate peer is one of the configured proxies.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := make([]echo.TrustOption, 0, len(trusted)+1)
	opts = append(opts, echo.TrustLoopback(false), echo.TrustLinkLocal(false), echo.TrustPrivateNet(false))
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// requestLogger writes one zerolog access-log entry per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Status >= http.StatusInternalServerError {
				evt = log.Error().Err(v.Error)
			} else if v.Status >= http.StatusBadRequest {
				evt = log.Warn()
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Str("account_id", middleware.AccountIDFrom(c)).
				Msg("request")
			return nil
		},
	})
}
