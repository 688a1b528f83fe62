package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"lulu_studio/logging"
	"lulu_studio/metrics"
	"lulu_studio/studio"
)

// WebUIServer is the `lulu serve` HTTP server: the embedded page, the
// studio and dashboard APIs, Prometheus metrics and the WebSocket feed.
type WebUIServer struct {
	httpServer    *http.Server
	mux           *http.ServeMux
	config        ServerConfig
	logger        *logging.Logger
	studio        Studio
	metrics       metrics.MetricsCollector
	loggingMw     *LoggingMiddleware
	originGuard   *OriginGuard
	studioAPI     *StudioAPI
	dashboardAPI  *DashboardAPI
	wsBroadcaster *WebSocketBroadcaster
	staticHandler *StaticAssetHandler

	mu          sync.Mutex
	unsubscribe func()
}

// ServerConfig configures the WebUIServer.
type ServerConfig struct {
	Port int
	Host string

	ReadTimeout time.Duration
	// WriteTimeout must outlast a synchronous (?wait=true) generation.
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	StaticConfig StaticAssetConfig
	LogSkipPaths []string
	VersionInfo  VersionInfo
}

// DefaultServerConfig binds localhost:3000.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            3000,
		Host:            "localhost",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		StaticConfig:    DefaultStaticAssetConfig(),
		LogSkipPaths:    []string{"/health", "/metrics"},
		VersionInfo:     VersionInfo{Version: "dev"},
	}
}

// ServerDeps are the components the server exposes.
type ServerDeps struct {
	Studio Studio
	Images ImageSource
	// Metrics backs the dashboard API and /health.
	Metrics metrics.MetricsCollector
	// Prometheus serves /metrics when set.
	Prometheus http.Handler
	// Broadcaster is created when nil. Pass one in to also use it as a
	// task recorder.
	Broadcaster *WebSocketBroadcaster
	// Activity serves /api/activity when set.
	Activity ActivityLog
	// Runner tracks background operations; nil runs them untracked.
	Runner Runner
	Logger *logging.Logger
}

// NewServer wires the handlers and middleware.
func NewServer(config ServerConfig, deps ServerDeps) (*WebUIServer, error) {
	if deps.Studio == nil {
		return nil, errors.New("webui: studio cannot be nil")
	}
	if deps.Images == nil {
		return nil, errors.New("webui: image source cannot be nil")
	}
	if deps.Metrics == nil {
		return nil, errors.New("webui: metrics cannot be nil")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	broadcaster := deps.Broadcaster
	if broadcaster == nil {
		broadcaster = NewWebSocketBroadcaster(logger)
	}
	logCfg := DefaultLoggingMiddlewareConfig(logger)
	if config.LogSkipPaths != nil {
		logCfg.SkipPaths = config.LogSkipPaths
	}
	dashCfg := DefaultDashboardAPIConfig()
	dashCfg.VersionInfo = config.VersionInfo
	dashCfg.Activity = deps.Activity

	s := &WebUIServer{
		mux:           http.NewServeMux(),
		config:        config,
		logger:        logger.Named("webui"),
		studio:        deps.Studio,
		metrics:       deps.Metrics,
		loggingMw:     NewLoggingMiddleware(logCfg),
		originGuard:   NewOriginGuard(logger, "/api/", "/ws"),
		studioAPI:     NewStudioAPI(deps.Studio, deps.Images, deps.Runner, logger),
		dashboardAPI:  NewDashboardAPI(deps.Metrics, dashCfg),
		wsBroadcaster: broadcaster,
		staticHandler: NewStaticAssetHandler(config.StaticConfig),
	}
	broadcaster.SetInitialState(func() WSMessage {
		return NewInitialMessage(s.studio.Snapshot())
	})

	s.setupRoutes(deps.Prometheus)

	addr := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s, nil
}

func (s *WebUIServer) setupRoutes(prom http.Handler) {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if prom != nil {
		s.mux.Handle("GET /metrics", prom)
	}
	s.mux.HandleFunc("GET /ws", s.wsBroadcaster.HandleConnection)
	s.staticHandler.RegisterRoutes(s.mux)
	s.studioAPI.RegisterRoutes(s.mux)
	s.dashboardAPI.RegisterRoutes(s.mux)
}

// Handler returns the root handler with middleware applied.
func (s *WebUIServer) Handler() http.Handler {
	return s.loggingMw.Handler(s.originGuard.Handler(s.mux))
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Health  string `json:"health"`
	Version string `json:"version"`
	// Clients is the number of connected WebSocket clients.
	Clients int `json:"clients"`
}

func (s *WebUIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.metrics.GetSystemStatus()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Health:  status.Health,
		Version: s.config.VersionInfo.Version,
		Clients: s.wsBroadcaster.ClientCount(),
	})
}

// Attach starts the broadcaster and streams state changes to it. Start
// calls it; tests that serve Handler directly call it themselves.
func (s *WebUIServer) Attach(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	go s.wsBroadcaster.Start(ctx)
	s.unsubscribe = s.studio.Subscribe(func(snap studio.Snapshot) {
		s.wsBroadcaster.BroadcastMessage(NewStateMessage(snap))
	})
}

// Start serves until Shutdown. It returns nil after a clean shutdown.
func (s *WebUIServer) Start(ctx context.Context) error {
	s.Attach(ctx)
	s.logger.Info("Web UI listening", zap.String("url", "http://"+s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webui: serve: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for open ones, then
// disconnects WebSocket clients.
func (s *WebUIServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.mu.Unlock()

	shutdownCtx := ctx
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	// Hijacked WebSocket connections are not tracked by http.Server.
	s.wsBroadcaster.Close()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("webui: shutdown: %w", err)
	}
	s.logger.Info("Web UI stopped")
	return nil
}

// Addr returns the listen address.
func (s *WebUIServer) Addr() string {
	return s.httpServer.Addr
}
