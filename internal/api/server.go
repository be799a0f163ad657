// Package api exposes the dashboard's HTTP surface: session endpoints,
// firewall rule and proxy config CRUD, panels, the audit query endpoint,
// and the live event websocket. Handlers orchestrate the repository and the
// packet-filter sync adapter; responses always reflect repository state.
package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/beavernet/beavernet/internal/audit"
	"github.com/beavernet/beavernet/internal/auth"
	"github.com/beavernet/beavernet/internal/clock"
	"github.com/beavernet/beavernet/internal/config"
	"github.com/beavernet/beavernet/internal/events"
	"github.com/beavernet/beavernet/internal/logging"
	"github.com/beavernet/beavernet/internal/packetfilter"
	"github.com/beavernet/beavernet/internal/ratelimit"
	"github.com/beavernet/beavernet/internal/store"
)

// ServerConfig holds HTTP server hardening settings.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// DefaultServerConfig returns the default server hardening settings.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
}

// Server handles API requests.
type Server struct {
	cfg      *config.Config
	repo     *store.Repository
	users    *auth.Store
	authMw   *auth.Middleware
	sync     *packetfilter.Adapter
	auditLog *audit.Store
	hub      *events.Hub
	logger   *logging.Logger

	rateLimiter   *ratelimit.Limiter
	loginAttempts int
	loginWindow   time.Duration

	wsManager *WSManager
	startTime time.Time

	mux *http.ServeMux
}

// ServerOptions holds dependencies for the API server.
type ServerOptions struct {
	Config   *config.Config
	Repo     *store.Repository
	Users    *auth.Store
	Sync     *packetfilter.Adapter
	AuditLog *audit.Store // optional, disables audit recording when nil
	Hub      *events.Hub
	Logger   *logging.Logger
}

// NewServer creates a new API server with the provided options.
func NewServer(opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	hub := opts.Hub
	if hub == nil {
		hub = events.NewHub()
	}

	rateLimiter := ratelimit.NewLimiter()
	rateLimiter.StartCleanup(10*time.Minute, 1*time.Hour)

	loginWindow, err := cfg.LoginWindow()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:           cfg,
		repo:          opts.Repo,
		users:         opts.Users,
		authMw:        auth.NewMiddleware(opts.Users),
		sync:          opts.Sync,
		auditLog:      opts.AuditLog,
		hub:           hub,
		logger:        logger.WithComponent("api"),
		rateLimiter:   rateLimiter,
		loginAttempts: cfg.RateLimit.LoginAttempts,
		loginWindow:   loginWindow,
		startTime:     clock.Now(),
	}

	s.wsManager = NewWSManager(s.hub, s.logger)
	s.initRoutes()
	return s, nil
}

// initRoutes initializes the HTTP router.
func (s *Server) initRoutes() {
	mux := http.NewServeMux()
	s.mux = mux

	// Public endpoints (no auth required)
	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/panneaux", s.handleListPanels)

	// Metrics (public - for scraping)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Websocket (session check inside the handler, before upgrade)
	mux.HandleFunc("GET /api/ws/events", s.handleEventsWS)

	// Session-protected endpoints
	mux.Handle("POST /api/logout", s.require(s.handleLogout))
	mux.Handle("GET /api/user", s.require(s.handleGetUser))
	mux.Handle("PATCH /api/user", s.require(s.handleUpdateUser))

	mux.Handle("GET /api/firewall/rules", s.require(s.handleListRules))
	mux.Handle("POST /api/firewall/rules", s.require(s.handleCreateRule))
	mux.Handle("DELETE /api/firewall/rules/{id}", s.require(s.handleDeleteRule))

	mux.Handle("GET /api/proxy/configs", s.require(s.handleListProxies))
	mux.Handle("POST /api/proxy/configs", s.require(s.handleCreateProxy))
	mux.Handle("DELETE /api/proxy/configs/{id}", s.require(s.handleDeleteProxy))

	mux.Handle("POST /api/panneaux", s.require(s.handleCreatePanel))
	mux.Handle("DELETE /api/panneaux/{id}", s.require(s.handleDeletePanel))

	mux.Handle("GET /api/audit", s.require(s.handleAuditQuery))
}

// require wraps a handler with session authentication.
func (s *Server) require(h http.HandlerFunc) http.Handler {
	return s.authMw.RequireAuth(h)
}

// Handler returns the full middleware-wrapped handler chain.
func (s *Server) Handler() http.Handler {
	return s.accessLog(s.mux)
}

// HTTPServer builds a hardened http.Server bound to addr.
func (s *Server) HTTPServer(addr string, sc *ServerConfig) *http.Server {
	if sc == nil {
		sc = DefaultServerConfig()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
		ReadTimeout:       sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
		IdleTimeout:       sc.IdleTimeout,
		MaxHeaderBytes:    sc.MaxHeaderBytes,
	}
}

// Close stops the server's background goroutines. Safe to call more than
// once; the HTTP listener is shut down separately by the caller.
func (s *Server) Close() {
	s.wsManager.Stop()
}

// recordAudit writes a best-effort audit entry for a mutating request.
func (s *Server) recordAudit(r *http.Request, action, resource string, status int, details map[string]any) {
	if s.auditLog == nil {
		return
	}

	username := ""
	if user := auth.GetUserFromContext(r.Context()); user != nil {
		username = user.Username
	}

	evt := audit.Event{
		User:     username,
		Action:   action,
		Resource: resource,
		Details:  details,
		Status:   status,
		IP:       getClientIP(r),
	}
	if err := s.auditLog.Write(evt); err != nil {
		s.logger.Warn("audit write failed", "action", action, "error", err)
	}
}
