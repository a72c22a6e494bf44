// Package server exposes the bot over HTTP: the Zalo webhook, CSV export
// downloads and previews, health endpoints and a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgard/zalobot/internal/bot/handlers"
	"github.com/edgard/zalobot/internal/config"
	"github.com/edgard/zalobot/internal/logger"
	"github.com/edgard/zalobot/internal/zalo"
)

// ServiceName identifies the service in info responses.
const ServiceName = "Zalo OA Bot Webhook Server"

// Version is reported by the info endpoints.
var Version = "dev"

// EventDispatcher handles one decoded webhook event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev zalo.Event) handlers.Outcome
}

// ExportFiles resolves export file names from URLs to paths on disk.
type ExportFiles interface {
	Resolve(name string) (string, error)
}

// GroupAdmin manages GMF groups on the OA.
type GroupAdmin interface {
	GroupQuota(ctx context.Context) ([]zalo.GroupQuota, error)
	CreateGroup(ctx context.Context, req zalo.CreateGroupRequest) (json.RawMessage, error)
}

// Deps holds what the HTTP layer needs. Handlers carries the store, analyzer
// and sender shared with the command pipelines.
type Deps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Handlers   handlers.HandlerDeps
	Dispatcher EventDispatcher
	Exports    ExportFiles
	Groups     GroupAdmin
}

// Server is the gin HTTP server.
type Server struct {
	deps       Deps
	logger     *slog.Logger
	router     *gin.Engine
	httpServer *http.Server
}

// New builds the router and the underlying http.Server.
func New(deps Deps) *Server {
	if deps.Config.Server.Mode != "" {
		gin.SetMode(deps.Config.Server.Mode)
	}

	log := deps.Logger.With("component", "http_server")
	router := gin.New()
	router.Use(gin.Recovery(), logger.Middleware(log))

	s := &Server{
		deps:   deps,
		logger: log,
		router: router,
	}
	s.routes()

	s.httpServer = &http.Server{
		Addr:              deps.Config.Server.Addr,
		Handler:           router,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		ReadHeaderTimeout: deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	r := s.router

	r.GET("/", s.handleRoot)
	r.GET("/health", s.handleHealth)

	r.GET("/webhook", s.handleWebhookVerify)
	r.POST("/webhook", s.handleWebhookEvent)
	r.POST("/", s.handleWebhookEvent)

	r.GET("/exports/:name", s.handleExportDownload)
	r.GET("/exports/view/:name", s.handleExportView)

	api := r.Group("/api")
	{
		api.GET("/info", s.handleAPIInfo)
		api.GET("/groups", s.handleAPIGroups)
		api.GET("/groups/quota", s.handleAPIGroupQuota)
		api.POST("/groups/create", s.handleAPICreateGroup)
		api.POST("/groups/message", s.handleAPISendMessage)
		api.GET("/messages/:group_id", s.handleAPIMessages)
		api.GET("/stats/:group_id", s.handleAPIStats)
		api.POST("/analyze", s.handleAPIAnalyze)
		api.POST("/query", s.handleAPIQuery)
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := s.deps.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	s.logger.Info("HTTP server stopped.")
	return nil
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": ServiceName,
		"status":  "running",
		"endpoints": gin.H{
			"webhook": "GET/POST /webhook",
			"health":  "GET /health",
			"info":    "GET /api/info",
			"exports": "GET /exports/:name, GET /exports/view/:name",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if s.deps.Handlers.Store != nil {
		if err := s.deps.Handlers.Store.Ping(c.Request.Context()); err != nil {
			logger.FromContext(c, s.logger).Error("Health check database ping failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   ServiceName,
	})
}
