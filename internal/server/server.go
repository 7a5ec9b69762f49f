package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/pkg/config"
	"github.com/sirosfoundation/go-httpservice/pkg/middleware"
)

// AdminRoutes contributes handlers to the admin server
type AdminRoutes interface {
	// AdminStatus answers the unauthenticated status probe
	AdminStatus(c *gin.Context)
	// RegisterRoutes mounts the token-protected routes
	RegisterRoutes(group *gin.RouterGroup)
}

// ServerConfig holds unified server configuration
type ServerConfig struct {
	Address    string
	Port       int
	AdminPort  int
	AdminToken string

	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig

	LoggingLevel string
}

// NewServerConfig derives the server settings from the loaded config
func NewServerConfig(cfg *config.Config) *ServerConfig {
	return &ServerConfig{
		Address:      cfg.Server.Host,
		Port:         cfg.Server.Port,
		AdminPort:    cfg.Server.AdminPort,
		AdminToken:   cfg.Server.AdminToken,
		CORS:         cfg.CORS,
		RateLimit:    cfg.RateLimit,
		LoggingLevel: cfg.Logging.Level,
	}
}

// Manager owns the public and admin HTTP servers
type Manager struct {
	cfg    *ServerConfig
	logger *zap.Logger

	host     http.Handler
	admin    AdminRoutes
	gatherer prometheus.Gatherer

	limiter *middleware.RateLimiter
	token   string

	mu          sync.Mutex
	httpServer  *http.Server
	adminServer *http.Server
	httpAddr    net.Addr
	adminAddr   net.Addr
}

// NewManager creates a new server manager. host receives every public
// request no other route claims. admin and gatherer may be nil.
func NewManager(cfg *ServerConfig, host http.Handler, admin AdminRoutes, gatherer prometheus.Gatherer, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		logger:   logger.Named("server"),
		host:     host,
		admin:    admin,
		gatherer: gatherer,
	}
}

// Start builds routers and starts the servers
func (m *Manager) Start(ctx context.Context) error {
	if m.cfg.LoggingLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	httpServer, httpAddr, err := m.listen("HTTP", m.cfg.Port, m.PublicRouter(), 60*time.Second)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.httpServer, m.httpAddr = httpServer, httpAddr
	m.mu.Unlock()

	if m.cfg.AdminPort > 0 {
		if err := m.startAdminServer(); err != nil {
			_ = httpServer.Close()
			return fmt.Errorf("failed to start admin server: %w", err)
		}
	}

	return nil
}

func (m *Manager) listen(name string, port int, handler http.Handler, idle time.Duration) (*http.Server, net.Addr, error) {
	addr := fmt.Sprintf("%s:%d", m.cfg.Address, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("%s server listen on %s: %w", name, addr, err)
	}

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  idle,
	}

	go func() {
		m.logger.Info(name+" server listening", zap.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error(name+" server error", zap.Error(err))
		}
	}()

	return srv, ln.Addr(), nil
}

// Shutdown gracefully shuts down all servers
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	httpServer, adminServer := m.httpServer, m.adminServer
	m.mu.Unlock()

	var errs []error

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
		}
	}

	if adminServer != nil {
		if err := adminServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("admin server shutdown: %w", err))
		}
	}

	if m.limiter != nil {
		m.limiter.Stop()
	}

	return errors.Join(errs...)
}

// buildRouter creates a new router with common middleware
func (m *Manager) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(m.logger))
	if len(m.cfg.CORS.AllowedOrigins) > 0 {
		router.Use(cors.New(corsConfig(m.cfg.CORS)))
	}
	return router
}

func corsConfig(c config.CORSConfig) cors.Config {
	cfg := cors.Config{
		AllowMethods:     c.AllowedMethods,
		AllowHeaders:     c.AllowedHeaders,
		ExposeHeaders:    c.ExposedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           time.Duration(c.MaxAge) * time.Second,
	}
	if slices.Contains(c.AllowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = c.AllowedOrigins
	}
	return cfg
}

// PublicRouter returns the public router: a health probe in front of the
// container host.
func (m *Manager) PublicRouter() *gin.Engine {
	router := m.buildRouter()
	// Trailing slashes belong to the host's routing, not gin's.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.NoRoute(func(c *gin.Context) {
		// gin presets 404 for NoRoute; the host decides the status.
		c.Status(http.StatusOK)
		m.host.ServeHTTP(c.Writer, c.Request)
	})
	return router
}

// AdminRouter returns the admin router. The token is generated on first
// use when none is configured.
func (m *Manager) AdminRouter() (*gin.Engine, error) {
	if m.token == "" {
		token := m.cfg.AdminToken
		if token == "" {
			var err error
			token, err = middleware.GenerateAdminToken()
			if err != nil {
				return nil, fmt.Errorf("failed to generate admin token: %w", err)
			}
			m.logger.Info("Generated admin API token (set HTTPSERVICE_SERVER_ADMIN_TOKEN to use a fixed token)",
				zap.String("token", token))
		}
		m.token = token
	}

	router := m.buildRouter()
	if m.cfg.RateLimit.Enabled {
		if m.limiter == nil {
			m.limiter = middleware.NewRateLimiter(m.cfg.RateLimit, m.logger)
		}
		router.Use(middleware.RateLimitMiddleware(m.limiter))
	}

	auth := middleware.AdminAuthMiddleware(m.token, m.logger)

	if m.admin != nil {
		router.GET("/admin/status", m.admin.AdminStatus)
		m.admin.RegisterRoutes(router.Group("/admin", auth))
	}
	if m.gatherer != nil {
		router.GET("/metrics", auth, gin.WrapH(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})))
	}

	return router, nil
}

func (m *Manager) startAdminServer() error {
	router, err := m.AdminRouter()
	if err != nil {
		return err
	}

	// Longer idle timeout for the event stream.
	srv, addr, err := m.listen("Admin", m.cfg.AdminPort, router, 120*time.Second)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.adminServer, m.adminAddr = srv, addr
	m.mu.Unlock()
	return nil
}

// HTTPAddr returns the bound public address, nil before Start
func (m *Manager) HTTPAddr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.httpAddr
}

// AdminAddr returns the bound admin address, nil when disabled
func (m *Manager) AdminAddr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adminAddr
}

// AdminToken returns the token guarding the admin API
func (m *Manager) AdminToken() string {
	return m.token
}
