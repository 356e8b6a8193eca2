// Package http provides the REST API for annotationd: auth, project CRUD,
// PDF upload, rendered page images and per-page annotation documents.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/auth"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/convert"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/project"
	"github.com/RahulSGosavi/KABS-Annotation-AI/internal/store"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// ReadTimeout / WriteTimeout bound request processing. Write must be
	// generous enough for page image downloads and upload conversion.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxUploadBytes caps multipart upload size.
	MaxUploadBytes int64

	// UploadDir holds the original uploaded PDFs.
	UploadDir string
}

// Server provides the HTTP endpoints.
type Server struct {
	echo    *echo.Echo
	logger  *zap.Logger
	config  *Config
	auth    auth.Service
	project project.Service
	convert convert.Service
	store   store.Store
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg *Config, authSvc auth.Service, projectSvc project.Service, convertSvc convert.Service, st store.Store, logger *zap.Logger) (*Server, error) {
	if authSvc == nil || projectSvc == nil || convertSvc == nil || st == nil {
		return nil, fmt.Errorf("http: all services are required")
	}
	if logger == nil {
		return nil, fmt.Errorf("http: logger is required")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 8080}
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "data/uploads"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:    e,
		logger:  logger,
		config:  cfg,
		auth:    authSvc,
		project: projectSvc,
		convert: convertSvc,
		store:   st,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")

	v1.POST("/auth/signup", s.handleSignup)
	v1.POST("/auth/login", s.handleLogin)

	authed := v1.Group("", s.requireAuth)
	authed.POST("/auth/logout", s.handleLogout)

	authed.GET("/projects", s.handleListProjects)
	authed.POST("/projects", s.handleCreateProject)
	authed.GET("/projects/:id", s.handleGetProject)
	authed.PATCH("/projects/:id", s.handleRenameProject)
	authed.DELETE("/projects/:id", s.handleDeleteProject)

	authed.POST("/projects/:id/upload", s.handleUpload)
	authed.GET("/projects/:id/thumbnail", s.handleThumbnail)
	authed.GET("/projects/:id/pages", s.handlePages)
	authed.GET("/projects/:id/pages/:page/image", s.handlePageImage)

	authed.GET("/projects/:id/pages/:page/annotations", s.handleGetAnnotations)
	authed.PUT("/projects/:id/pages/:page/annotations", s.handlePutAnnotations)
	authed.DELETE("/projects/:id/pages/:page/annotations", s.handleDeleteAnnotations)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// errorHandler maps service errors to HTTP status codes and renders the
// error envelope.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := "internal server error"

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			msg = fmt.Sprintf("%v", he.Message)
		case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials):
			status = http.StatusUnauthorized
			msg = err.Error()
		case errors.Is(err, auth.ErrEmailTaken):
			status = http.StatusConflict
			msg = err.Error()
		case errors.Is(err, project.ErrNotFound), errors.Is(err, store.ErrNotFound),
			errors.Is(err, convert.ErrNotConverted):
			status = http.StatusNotFound
			msg = err.Error()
		case errors.Is(err, project.ErrInvalidName), errors.Is(err, convert.ErrInvalidPDF),
			errors.Is(err, convert.ErrTooManyPages):
			status = http.StatusBadRequest
			msg = err.Error()
		default:
			logger.Error("unhandled request error", zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, ErrorResponse{Error: msg})
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
