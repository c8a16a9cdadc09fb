package echoapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/justinas/alice"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/rs/cors"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/attendance"
	"github.com/paridhisingla/unisync/core/complaint"
	"github.com/paridhisingla/unisync/core/course"
	"github.com/paridhisingla/unisync/core/dashboard"
	"github.com/paridhisingla/unisync/core/fee"
	"github.com/paridhisingla/unisync/core/hostel"
	"github.com/paridhisingla/unisync/core/library"
	"github.com/paridhisingla/unisync/core/notice"
	"github.com/paridhisingla/unisync/core/transport"
	"github.com/paridhisingla/unisync/core/user"
)

// Deps are the services the API is built on.
type Deps struct {
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       user.ServiceInterface
	ComplaintSvc  *complaint.Service
	LibrarySvc    *library.Service
	HostelSvc     *hostel.Service
	TransportSvc  *transport.Service
	FeeSvc        *fee.Service
	CourseSvc     *course.Service
	AttendanceSvc *attendance.Service
	NoticeSvc     *notice.Service
	DashboardSvc  *dashboard.Service
	Feed          *NoticeFeed
}

type Server struct {
	conf     *core.Config
	logger   core.Logger
	deps     *Deps
	auth     *Auth
	app      *echo.Echo
	server   *http.Server
	errors   chan error
	shutdown chan os.Signal
}

func NewServer(conf *core.Config, logger core.Logger, deps *Deps) *Server {
	s := &Server{
		conf:     conf,
		logger:   logger,
		deps:     deps,
		auth:     NewAuth(conf),
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = s.conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := s.auth.Middleware()
	users := s.deps.UserSvc

	registerUserAPI(v1, jwt, s.auth, users, s.deps.Validate)
	registerComplaintAPI(v1, jwt, s.deps.ComplaintSvc, users, s.deps.Validate)
	registerLibraryAPI(v1, jwt, s.deps.LibrarySvc, users, s.deps.Validate)
	registerHostelAPI(v1, jwt, s.deps.HostelSvc, users, s.deps.Validate)
	registerTransportAPI(v1, jwt, s.deps.TransportSvc, users, s.deps.Validate)
	registerFeeAPI(v1, jwt, s.deps.FeeSvc, users, s.deps.Validate)
	registerCourseAPI(v1, jwt, s.deps.CourseSvc, s.deps.AttendanceSvc, users, s.deps.Validate)
	registerNoticeAPI(v1, jwt, s.auth.QueryMiddleware(), s.deps.NoticeSvc, s.deps.Feed, users, s.deps.Validate)
	registerDashboardAPI(v1, jwt, s.deps.DashboardSvc)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.conf.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	})
	s.server = &http.Server{
		Addr:    s.conf.Server.Address,
		Handler: alice.New(securityHeaders, c.Handler).Then(s.app),
	}
}

// Start listens for requests until the server is shut down. Listening errors are sent to Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.logger.Info(fmt.Sprintf("API listening on %s", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

// Shutdown stops accepting requests and waits for the outstanding ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.Feed != nil {
		s.deps.Feed.Close()
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) Close() error {
	if s.deps.Feed != nil {
		s.deps.Feed.Close()
	}
	return s.server.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to UniSync API!")
}
