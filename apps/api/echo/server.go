package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/studywala/backend/core"
	"github.com/studywala/backend/core/plan"
	"github.com/studywala/backend/core/user"
	exportsvc "github.com/studywala/backend/services/export"
)

type (
	// ServerDeps carries everything the API server needs.
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		UserSvc        *user.Service
		PlanSvc        *plan.Service
		ExportSvc      *exportsvc.Service
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps       *ServerDeps
		app        *echo.Echo
		errCh      chan error
		shutdownCh chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps *ServerDeps) Server {
	s := &server{
		deps:       deps,
		app:        echo.New(),
		errCh:      make(chan error, 1),
		shutdownCh: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdownCh, os.Interrupt, syscall.SIGTERM)
	initAuth(deps.Conf)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", s.hello)
	s.app.GET("/health", s.health)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig)

	registerUserAPI(v1, jwt, s.deps.UserSvc, s.deps.Validate)
	registerPlanAPI(v1, jwt, s.deps.PlanSvc, s.deps.ExportSvc, s.deps.Validate)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errCh <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errCh
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdownCh
}

// signalShutdown lets the error handler request a graceful stop when an
// integrity error surfaces.
func (s *server) signalShutdown() {
	s.shutdownCh <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) hello(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to StudyWala API!")
}

func (s *server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"status":  "ok",
		"env":     s.deps.Conf.Env,
		"version": s.deps.Conf.Build,
	})
}
