package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/actyvystom/cloudinary-demo/modules/imageservice"
	"github.com/gin-gonic/gin"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the HTTP server settings.
type Config struct {
	Port          int
	MaxUploadSize int64
	// UploadDir receives uploads while they are forwarded. Defaults to os.TempDir().
	UploadDir string
}

// Module implements an HTTP server using the Gin framework.
type Module struct {
	cfg         Config
	server      *http.Server
	engine      *gin.Engine
	handlers    *Handlers
	imageModule *imageservice.Module
	registry    *prometheus.Registry
	metrics     *httpMetrics
	logger      types.Logger
}

// Compile-time interface checks
var _ mono.Module = (*Module)(nil)

// NewModule creates a new HTTP server module. Metrics are served from
// registry; a private registry is created when it is nil.
func NewModule(cfg Config, registry *prometheus.Registry, logger types.Logger) *Module {
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Module{
		cfg:      cfg,
		registry: registry,
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "http-server"
}

// SetImageModule sets the image service module dependency.
func (m *Module) SetImageModule(imageModule *imageservice.Module) {
	m.imageModule = imageModule
}

// Start initializes and starts the HTTP server.
func (m *Module) Start(ctx context.Context) error {
	handler, err := m.Handler()
	if err != nil {
		return err
	}

	// Create HTTP server
	m.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", m.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		m.logger.Info("HTTP server starting", "port", m.cfg.Port)
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (m *Module) Stop(ctx context.Context) error {
	if m.server != nil {
		m.logger.Info("Shutting down HTTP server")
		return m.server.Shutdown(ctx)
	}
	return nil
}

// Handler returns the router, building it on first use.
func (m *Module) Handler() (http.Handler, error) {
	if m.engine == nil {
		if err := m.buildEngine(); err != nil {
			return nil, err
		}
	}
	return m.engine, nil
}

// buildEngine wires middleware, handlers and routes.
func (m *Module) buildEngine() error {
	if m.imageModule == nil || m.imageModule.Service() == nil {
		return fmt.Errorf("image-service module not set or not started")
	}
	if err := os.MkdirAll(m.cfg.UploadDir, 0o700); err != nil {
		return fmt.Errorf("prepare upload dir: %w", err)
	}
	metrics, err := newHTTPMetrics(m.registry)
	if err != nil {
		return err
	}
	m.metrics = metrics

	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	m.engine = gin.New()
	m.engine.HandleMethodNotAllowed = true

	// Add middleware
	m.engine.Use(gin.Recovery())
	m.engine.Use(m.loggingMiddleware())
	m.engine.Use(m.metricsMiddleware())
	m.engine.Use(m.corsMiddleware())

	m.handlers = NewHandlers(m.imageModule.Service(), m.imageModule.Health, m.cfg.UploadDir, m.cfg.MaxUploadSize)

	m.registerRoutes()
	return nil
}

// registerRoutes sets up all HTTP routes.
func (m *Module) registerRoutes() {
	m.engine.NoMethod(m.handlers.MethodNotAllowed)

	m.engine.GET("/health", m.handlers.HealthCheck)
	m.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))

	api := m.engine.Group("/api")
	{
		api.POST("/upload", m.handlers.UploadImage)
		api.GET("/images", m.handlers.ListImages)
		api.GET("/images/*public_id", m.handlers.GetImage)
	}
}

// loggingMiddleware provides request logging.
func (m *Module) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		m.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers for browser clients on another origin.
func (m *Module) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
