// Package api exposes the clip pipeline over HTTP with echo. Responses are
// JSON, or msgpack when the client sends Accept: application/msgpack.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	defaultBodyLimitMB     = 100
	rateLimiterExpiry      = 3 * time.Minute
)

// Server is the HTTP surface.
type Server struct {
	echo            *echo.Echo
	debug           bool
	corsOrigins     []string
	rateLimit       float64
	bodyLimitMB     int
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithDebug includes internal error details in error responses.
func WithDebug(debug bool) Option {
	return func(s *Server) { s.debug = debug }
}

// WithCORSOrigins sets the allowed origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRateLimit allows rps requests per second per client IP. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(s *Server) { s.rateLimit = rps }
}

// WithBodyLimitMB caps request bodies. Uploads get one extra megabyte for
// multipart framing.
func WithBodyLimitMB(mb int) Option {
	return func(s *Server) {
		if mb > 0 {
			s.bodyLimitMB = mb
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets the logger for access and server logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New builds the server and registers every route.
func New(svc pipeline, opts ...Option) *Server {
	s := &Server{
		corsOrigins:     []string{"*"},
		bodyLimitMB:     defaultBodyLimitMB,
		shutdownTimeout: defaultShutdownTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = ErrorHandler(s.debug)

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			s.logger.Error("panic recovered", "error", err, "path", c.Path(), "stack", string(stack))
			return err
		},
	}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(s.logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.corsOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
	if s.rateLimit > 0 {
		e.Use(rateLimiter(s.rateLimit))
	}
	e.Use(middleware.BodyLimit(fmt.Sprintf("%dM", s.bodyLimitMB+1)))

	h := &handler{svc: svc, rateLimit: s.rateLimit}
	e.GET("/health", h.health)
	e.GET("/search", h.search)
	e.POST("/search", h.search)
	e.POST("/download", h.download)
	e.GET("/download/formats", h.formats)
	e.POST("/cut", h.cut)
	e.GET("/cut/metadata", h.metadata)
	e.POST("/transcribe", h.transcribe)
	e.GET("/transcribe/engines", h.engines)
	e.GET("/translate/languages", h.languages)
	e.GET("/files", h.serveFile)
	e.DELETE("/files", h.deleteFile)

	s.echo = e
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errc <- s.echo.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// requestLogger bridges echo's request logger to slog.
func requestLogger(l *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			switch {
			case v.Status >= http.StatusInternalServerError:
				level = slog.LevelError
			case v.Status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			l.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// rateLimiter allows rps requests per second per client IP. Health checks
// are never limited.
func rateLimiter(rps float64) echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool { return c.Path() == "/health" },
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(rps),
			Burst:     int(math.Ceil(rps)),
			ExpiresIn: rateLimiterExpiry,
		}),
	})
}
