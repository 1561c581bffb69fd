// Package http provides the Echo server scaffolding shared by the docdb
// process: standard middleware, graceful start/stop, and the error-to-status
// mapping at the HTTP boundary.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"docdb/common"
	"docdb/enginerr"
)

// ServerConfig controls the Echo instance NewEchoServer builds. The listen
// address itself is not part of this config: it's a plain string threaded
// through to StartWithGracefulShutdown directly, since it comes from
// config.Config.ListenAddr rather than the HTTP layer's own defaults.
type ServerConfig struct {
	Debug           bool
	BodyLimit       string // e.g. "10M"
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	RateLimit       float64 // requests/sec; 0 disables the limiter
}

// DefaultServerConfig returns sane defaults for a local, single-node
// deployment.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		BodyLimit:       "10M",
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
	}
}

// NewEchoServer builds an Echo instance with the standard middleware stack:
// request ID, request logging through common.Logger, panic recovery, body
// limit, and CORS.
func NewEchoServer(config ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = config.Debug
	e.HTTPErrorHandler = CustomHTTPErrorHandler

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(requestLoggerMiddleware)
	e.Use(middleware.Recover())

	if config.BodyLimit != "" {
		e.Use(middleware.BodyLimit(config.BodyLimit))
	}
	if len(config.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: config.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{echo.HeaderContentType, "X-API-Key"},
		}))
	}
	if config.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(config.RateLimit))))
	}

	return e
}

// requestLoggerMiddleware logs one line per request through common.Logger,
// so request logs share the OutputSplitter routing with everything else.
func requestLoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		logger := common.RequestLogger(c.Request().Method, c.Path(), c.Response().Header().Get(echo.HeaderXRequestID))
		logger = logger.WithField("status", c.Response().Status).WithField("latency_ms", time.Since(start).Milliseconds())
		if err != nil {
			logger.WithError(err).Error("request failed")
		} else {
			logger.Info("request handled")
		}
		return err
	}
}

// StartWithGracefulShutdown serves e in the background and blocks until ctx
// is cancelled, then shuts the server down within timeout.
func StartWithGracefulShutdown(ctx context.Context, e *echo.Echo, addr string, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

// ErrorResponse is the JSON body returned for any non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusForKind maps an engine error kind to its HTTP status, per the
// propagation policy: not found, malformed, unauthorized, transient and
// fatal storage errors each get a distinct status; cancelled requests get
// no response at all.
func statusForKind(k enginerr.Kind) int {
	switch k {
	case enginerr.KindNotFound:
		return http.StatusNotFound
	case enginerr.KindMalformed:
		return http.StatusBadRequest
	case enginerr.KindUnauthorized:
		return http.StatusUnauthorized
	case enginerr.KindTransient:
		return http.StatusServiceUnavailable
	case enginerr.KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler maps engine errors and Echo's own HTTP errors to a
// JSON error response. A cancelled request gets no response body: the
// client is already gone.
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if enginerr.KindOf(err) == enginerr.KindCancelled {
		return
	}

	code := http.StatusInternalServerError
	message := err.Error()

	if eerr, ok := err.(*enginerr.Error); ok {
		code = statusForKind(eerr.Kind)
	} else if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	if werr := c.JSON(code, ErrorResponse{Error: message}); werr != nil {
		common.Logger.WithError(werr).Error("failed to write error response")
	}
}

// APIKeyMiddleware gates every route except the ones skipped by skip behind
// a fixed API key carried in the X-API-Key header. An empty validKey
// disables the check entirely.
func APIKeyMiddleware(validKey string, skip func(c echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if validKey == "" || (skip != nil && skip(c)) {
				return next(c)
			}
			key := c.Request().Header.Get("X-API-Key")
			if key == "" || key != validKey {
				return enginerr.Unauthorized("missing or invalid API key")
			}
			return next(c)
		}
	}
}
