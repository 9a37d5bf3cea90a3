package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/webview-mcp/internal/api/http"
	"github.com/GriffinCanCode/webview-mcp/internal/api/middleware"
	"github.com/GriffinCanCode/webview-mcp/internal/api/ws"
	"github.com/GriffinCanCode/webview-mcp/internal/bridge"
	"github.com/GriffinCanCode/webview-mcp/internal/commands"
	"github.com/GriffinCanCode/webview-mcp/internal/correlator"
	"github.com/GriffinCanCode/webview-mcp/internal/events"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/config"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/webview-mcp/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/webview-mcp/internal/results"
	"github.com/GriffinCanCode/webview-mcp/internal/surface"
	"github.com/GriffinCanCode/webview-mcp/internal/webview"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the HTTP gateway and the components behind it
type Server struct {
	config     *config.Config
	logger     *logging.Logger
	metrics    *monitoring.Metrics
	tracer     *tracing.Tracer
	hub        *events.Hub
	store      *results.Store
	windows    *webview.Manager
	resolver   *surface.Resolver
	injector   *bridge.Injector
	commands   *commands.Registry
	correlator *correlator.Correlator
	router     *gin.Engine
}

// New wires the gateway. Windows are not opened here; call Windows().Open.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing webview-mcp gateway",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("callback", cfg.CallbackURL()),
		zap.Duration("wait_budget", cfg.WaitBudget()),
	)

	// Metrics first; the other components report into it
	metrics := monitoring.NewMetrics()
	hub := events.NewHub(logger.Named("events"))
	tracer := tracing.New("gateway", logger.Named("trace"))

	store := results.New(results.Options{
		TTL:        cfg.Results.TTL,
		MaxEntries: cfg.Results.MaxEntries,
	})
	store.OnEvict(func(id string) {
		metrics.IncResultsEvicted()
		logger.Debug("Evicted unclaimed result", zap.String("id", id))
	})
	metrics.RegisterPending(store.Len)

	windows := webview.NewManager(webview.Config{
		ScriptTimeout: cfg.Webview.ScriptTimeout,
		ConsoleBuffer: cfg.Webview.ConsoleBuffer,
		FetchTimeout:  cfg.Webview.FetchTimeout,
	}, logger.Named("webview"))

	resolver := surface.NewResolver(windows, logger.Named("surface"))
	windows.OnClose(resolver.Invalidate)

	injector := bridge.NewInjector(resolver, logger.Named("bridge"))
	injector.Preload(windows)

	sink := apihttp.NewResultSink(store, metrics, hub)
	registry := commands.NewRegistry(logger.Named("commands"))
	registry.MustRegister(commands.StoreResult(sink))
	windows.SetInvoker(registry)

	corr := correlator.New(injector, store, correlator.Options{
		MaxAttempts:  cfg.Bridge.MaxAttempts,
		PollInterval: cfg.Bridge.PollInterval,
		CallbackURL:  cfg.CallbackURL(),
	}, logger.Named("correlator"),
		correlator.WithMetrics(metrics),
		correlator.WithEvents(hub),
	)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:     cfg,
		logger:     logger,
		metrics:    metrics,
		tracer:     tracer,
		hub:        hub,
		store:      store,
		windows:    windows,
		resolver:   resolver,
		injector:   injector,
		commands:   registry,
		correlator: corr,
	}

	var rateLimit *middleware.RateLimitConfig
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Bool("global", cfg.RateLimit.Global),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		rl.Global = cfg.RateLimit.Global
		rateLimit = &rl
	}

	handlers := apihttp.NewHandlers(corr, injector, sink, s.stats, logger.Named("http"))
	stream := ws.NewHandler(hub, metrics, logger.Named("stream"))
	s.router = apihttp.NewRouter(apihttp.RouterConfig{
		Handlers:  handlers,
		Stream:    stream.HandleConnection,
		Metrics:   metrics,
		Logger:    logger.Logger,
		RateLimit: rateLimit,
		Tracer:    tracer,
	})

	logger.Info("Gateway initialized successfully")
	return s, nil
}

// Windows returns the window manager scripts are dispatched into.
func (s *Server) Windows() *webview.Manager {
	return s.windows
}

// Commands returns the host command registry page scripts invoke through.
func (s *Server) Commands() *commands.Registry {
	return s.commands
}

// Correlator returns the invocation bridge.
func (s *Server) Correlator() *correlator.Correlator {
	return s.correlator
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.Close()
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully: in-flight requests finish, windows close, the event stream
// ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.store.Run(ctx, s.config.Results.ReapInterval)

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	}

	s.logger.Info("Shutting down gateway...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP shutdown failed", zap.Error(err))
	}
	s.Close()
	return serveErr
}

// Close releases windows, ends event subscriptions and flushes spans.
func (s *Server) Close() {
	s.windows.CloseAll()
	s.hub.Close()
	s.tracer.Close()
	_ = s.logger.Sync()
}

func (s *Server) stats() map[string]interface{} {
	return map[string]interface{}{
		"results_pending": s.store.Len(),
		"windows":         len(s.windows.Surfaces()),
		"stream_clients":  s.hub.Len(),
		"events_dropped":  s.hub.Dropped(),
		"wait_budget_ms":  s.correlator.Budget().Milliseconds(),
		"commands":        s.commands.Stats(),
	}
}
