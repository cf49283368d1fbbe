package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shvydak/homelab-dashboard/internal/audit"
	"github.com/shvydak/homelab-dashboard/internal/auth"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/config"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/influxdb"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/logging"
	"github.com/shvydak/homelab-dashboard/internal/infrastructure/mqtt"
	"github.com/shvydak/homelab-dashboard/internal/ratelimit"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
//
// Config, Logger and Auth are required. The rest are optional: without an
// audit repository nothing is recorded, without MQTT or InfluxDB events are
// not forwarded, and without a limiter the auth routes are unthrottled.
type Deps struct {
	Config    *config.Config
	Logger    *logging.Logger
	Auth      *auth.Authenticator
	AuditRepo audit.Repository
	MQTT      *mqtt.Client
	Influx    *influxdb.Client
	Limiter   ratelimit.Limiter

	// Registry receives the HTTP and auth metrics. A private registry is
	// created when nil.
	Registry *prometheus.Registry

	Version string
}

// Server is the HTTP API server for the homelab dashboard.
//
// It manages the HTTP listener, routes, middleware, the audit pipeline and
// the admin event hub. The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	dashboard   config.DashboardConfig
	environment string
	production  bool
	storeDriver string
	logger      *logging.Logger
	auth        *auth.Authenticator
	auditRepo   audit.Repository
	auditCh     chan *audit.AuditLog
	mqtt        *mqtt.Client
	influx      *influxdb.Client
	limiter     ratelimit.Limiter
	metrics     *metrics
	hub         *Hub
	tickets     *ticketStore
	version     string
	startTime   time.Time

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // cancels background goroutines on Close()
	bg       sync.WaitGroup
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}

	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		cfg:         deps.Config.API,
		wsCfg:       deps.Config.WebSocket,
		dashboard:   deps.Config.Dashboard,
		environment: deps.Config.Environment,
		production:  deps.Config.IsProduction(),
		storeDriver: deps.Config.Store.Driver,
		logger:      deps.Logger,
		auth:        deps.Auth,
		auditRepo:   deps.AuditRepo,
		auditCh:     make(chan *audit.AuditLog, auditChanSize),
		mqtt:        deps.MQTT,
		influx:      deps.Influx,
		limiter:     deps.Limiter,
		tickets:     newTicketStore(),
		version:     deps.Version,
		startTime:   time.Now(),
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	s.metrics = newMetrics(reg, s.hub)

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the event hub, the audit writer and the ticket sweeper, binds
// the listener, and serves in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln

	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		s.drainAuditLog(srvCtx)
	}()

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// flushes queued audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	shutdownErr := s.server.Shutdown(ctx)

	// Cancel background goroutines (hub, ticket cleanup, audit drain)
	if s.cancel != nil {
		s.cancel()
	}
	s.bg.Wait()

	if shutdownErr != nil {
		return fmt.Errorf("shutting down API server: %w", shutdownErr)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
