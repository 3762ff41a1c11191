package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/offer"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
	"github.com/practicas-ubb/practicas/services/ratelimit"
)

type (
	// Pinger reports whether the database is reachable.
	Pinger interface {
		PingContext(ctx context.Context) error
	}

	// Deps holds everything the handlers need.
	Deps struct {
		Validate       *validator.Validate
		Translator     ut.Translator
		DB             Pinger // optional
		LoginLimiter   ratelimit.Limiter
		UserSvc        user.Service
		OfferSvc       offer.Service
		ApplicationSvc application.Service
		PracticeSvc    practice.Service
	}

	Server struct {
		conf     *core.Config
		logger   core.Logger
		deps     *Deps
		auth     *Auth
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(conf *core.Config, logger core.Logger, deps *Deps) *Server {
	if deps.LoginLimiter == nil {
		deps.LoginLimiter = ratelimit.Unlimited{}
	}

	s := &Server{
		conf:     conf,
		logger:   logger,
		deps:     deps,
		auth:     NewAuth(conf),
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug
	s.app.Server.ReadTimeout = s.conf.Server.ReadTimeout
	s.app.Server.WriteTimeout = s.conf.Server.WriteTimeout
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !s.conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{s.conf.FrontendBaseURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	s.app.Use(metricsMiddleware)

	s.app.GET("/", home)
	s.app.GET("/health", s.health)
	s.app.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")
	jwt := s.auth.Middleware()

	registerUserAPI(v1, jwt, s.auth, s.deps)
	registerOfferAPI(v1, jwt, s.deps)
	registerApplicationAPI(v1, jwt, s.deps)
	registerPracticeAPI(v1, jwt, s.deps)
}

// Start listens on the configured address; a failure is reported on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

// Close stops the server immediately.
func (s *Server) Close() error {
	signal.Stop(s.shutdown)
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

// Auth exposes the token issuer, for tests and tooling.
func (s *Server) Auth() *Auth {
	return s.auth
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Prácticas API!")
}

func (s *Server) health(ctx echo.Context) error {
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(ctx.Request().Context()); err != nil {
			s.logger.Error("health check: database unreachable", err)
			return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "build": s.conf.Build})
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.conf.Build})
}
