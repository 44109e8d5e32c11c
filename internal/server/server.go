// Package server exposes the webhook, health and metrics endpoints over gin.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"barbearia-twowell/internal/common/logger"
)

// DefaultWebhookPath is where the chat platform posts notifications.
const DefaultWebhookPath = "/webhook"

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouteRegistrar mounts extra routes, e.g. the WhatsApp webhook.
type RouteRegistrar interface {
	RegisterRoutes(r gin.IRoutes, path string)
}

// Options configures the HTTP surface.
type Options struct {
	Address     string
	WebhookPath string
	Webhook     RouteRegistrar
	// Ready is closed once the dispatcher is consuming messages.
	Ready        <-chan struct{}
	Dependencies map[string]Pinger
	PingTimeout  time.Duration
}

// Server wraps the gin engine and its http.Server.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	opts   Options
	logger logger.Logger
	now    func() time.Time
}

func New(opts Options, log logger.Logger) *Server {
	if opts.WebhookPath == "" {
		opts.WebhookPath = DefaultWebhookPath
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 2 * time.Second
	}

	s := &Server{opts: opts, logger: log, now: time.Now}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", s.health)
	engine.GET("/ready", s.ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if opts.Webhook != nil {
		opts.Webhook.RegisterRoutes(engine, opts.WebhookPath)
	}

	s.engine = engine
	s.http = &http.Server{
		Addr:              opts.Address,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the engine, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server stops. A clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", map[string]interface{}{"address": s.opts.Address})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	})
}

func (s *Server) ready(c *gin.Context) {
	checks := gin.H{}
	ok := true

	if s.opts.Ready != nil {
		select {
		case <-s.opts.Ready:
			checks["dispatcher"] = "ok"
		default:
			checks["dispatcher"] = "starting"
			ok = false
		}
	}

	for name, dep := range s.opts.Dependencies {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.PingTimeout)
		err := dep.Ping(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			ok = false
			continue
		}
		checks[name] = "ok"
	}

	status, label := http.StatusOK, "ready"
	if !ok {
		status, label = http.StatusServiceUnavailable, "not_ready"
		s.logger.Warn("Readiness check failed", map[string]interface{}{"checks": checks})
	}
	c.JSON(status, gin.H{
		"status": label,
		"checks": checks,
		"time":   s.now().Format(time.RFC3339),
	})
}
