package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/razy-dev/razy/internal/bridge"
	"github.com/razy-dev/razy/internal/config"
	"github.com/razy-dev/razy/internal/dispatcher"
	"github.com/razy-dev/razy/internal/distributor"
	"github.com/razy-dev/razy/internal/logging"
	"github.com/razy-dev/razy/internal/metrics"
	"github.com/razy-dev/razy/internal/middleware"
	"github.com/razy-dev/razy/internal/module"
	"github.com/razy-dev/razy/internal/ratelimit"
	"github.com/razy-dev/razy/internal/session"
)

// Server owns the assembled runtime and its HTTP listener.
type Server struct {
	cfg        *config.Config
	configPath string

	httpServer   *http.Server
	dispatcher   *dispatcher.Dispatcher
	sessions     *session.Manager
	metrics      *metrics.Metrics
	limits       *ratelimit.Registry
	rdb          *redis.Client
	distributors map[string]*distributor.Distributor
	watcher      *config.Watcher
	startTime    time.Time
}

// NewServer assembles the runtime from configuration. configPath enables
// hot reload of the site table; pass "" to disable.
func NewServer(cfg *config.Config, configPath string) (*Server, error) {
	s := &Server{
		cfg:          cfg,
		configPath:   configPath,
		rdb:          buildRedis(cfg.Redis),
		distributors: make(map[string]*distributor.Distributor),
		startTime:    time.Now(),
	}

	driver, err := buildSessionDriver(cfg.Session, s.rdb)
	if err != nil {
		return nil, err
	}
	if err := driver.Open(); err != nil {
		return nil, fmt.Errorf("session driver: %w", err)
	}
	s.sessions = session.NewManager(driver, cfg.Session.Cookie)

	if cfg.Metrics.Enabled {
		s.metrics = metrics.New()
	}
	s.limits = ratelimit.NewRegistry(buildRateLimiter(s.rdb))

	sessionOpts := middleware.SessionOptions{}
	throttle := middleware.RateLimitConfig{Name: "default"}
	if s.metrics != nil {
		sessionOpts.OnNew = s.metrics.RecordSessionStarted
		throttle.Record = s.metrics.RecordRateLimitRejection
	}

	s.dispatcher = dispatcher.New(s.sessions, s.metrics)
	s.dispatcher.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.SessionWithOptions(s.sessions, sessionOpts),
	)
	s.dispatcher.RegisterMiddleware("csrf", middleware.CSRF())
	s.dispatcher.RegisterMiddleware("throttle", middleware.RateLimit(s.limits, throttle))

	if err := s.initDistributors(); err != nil {
		return nil, err
	}
	s.dispatcher.SetSites(buildSiteTable(cfg))

	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// initDistributors instantiates and boots every configured distributor.
func (s *Server) initDistributors() error {
	for _, dc := range s.cfg.Distributors {
		id := distributor.MustParseID(dc.Dist)

		dist := distributor.New(distributor.Config{
			ID:           id,
			BaseURL:      dc.BaseURL,
			BridgeSecret: dc.InternalBridge.Secret,
			Allow:        dc.InternalBridge.Allow,
		})
		dist.SetBridge(bridgeFunc(s.buildConnector(id)))

		include := dc.Modules
		if dc.Greedy {
			include = nil
		}
		codes, err := selectModules(include, dc.ExcludeModule)
		if err != nil {
			return fmt.Errorf("distributor %s: %w", id, err)
		}
		for _, code := range codes {
			reg, _ := lookupModule(code)
			info := reg.info
			if want := dc.Modules[code]; want != "" && want != info.Version {
				return fmt.Errorf("distributor %s: module %s: version %s requested, %s registered",
					id, code, want, info.Version)
			}
			if info.RootPath == "" && dc.ModulePath != "" {
				info.RootPath = dc.ModulePath + "/" + code
			}
			if err := dist.Register(info, reg.build(), reg.deps...); err != nil {
				return fmt.Errorf("distributor %s: %w", id, err)
			}
		}

		if err := dist.Boot(); err != nil {
			return err
		}

		s.distributors[id.String()] = dist
		s.dispatcher.AddDistributor(dist)
		if dc.InternalBridge.Enabled {
			s.dispatcher.EnableBridge(dist, dc.InternalBridge.Path)
		}
		if dc.Fallback != "" {
			s.dispatcher.SetFallback(id.String(), distributor.MustParseID(dc.Fallback).String())
		}
	}
	return nil
}

// buildConnector assembles the outbound bridge transport for one
// distributor: every other configured distributor with a bound host gets an
// HTTP endpoint; the rest are reached by subprocess.
func (s *Server) buildConnector(caller distributor.ID) *bridge.Connector {
	var opts []bridge.ConnectorOption
	if s.metrics != nil {
		opts = append(opts, bridge.WithRecorder(s.metrics.RecordBridgeCall))
	}
	conn := bridge.NewConnector(caller, opts...)

	for _, other := range s.cfg.Distributors {
		oid := distributor.MustParseID(other.Dist)
		if oid == caller || other.BaseURL == "" {
			continue
		}
		conn.SetEndpoint(oid, bridge.Endpoint{
			BaseURL: other.BaseURL,
			Secret:  other.InternalBridge.Secret,
			Path:    other.InternalBridge.Path,
		})
	}
	return conn
}

// bridgeFunc adapts a connector to the façade modules call. Envelope-level
// failures come back as errors so the emitter can flatten them.
func bridgeFunc(conn *bridge.Connector) module.BridgeFunc {
	return func(ctx context.Context, target, moduleCode, command string, args []any) (any, error) {
		tid, err := distributor.ParseID(target)
		if err != nil {
			return nil, err
		}
		resp, err := conn.Call(ctx, tid, moduleCode, command, args)
		if err != nil {
			return nil, err
		}
		if !resp.Success {
			return nil, fmt.Errorf("bridge %s: %s: %s", target, resp.Code, resp.Error)
		}
		return resp.Result, nil
	}
}

// buildSiteTable derives the host lookup table, giving a catch-all
// distributor the wildcard slot when the config declares none.
func buildSiteTable(cfg *config.Config) *dispatcher.SiteTable {
	domains := make(map[string]map[string]string, len(cfg.Sites.Domains)+1)
	for host, routes := range cfg.Sites.Domains {
		copied := make(map[string]string, len(routes))
		for prefix, dist := range routes {
			copied[prefix] = distributor.MustParseID(dist).String()
		}
		domains[host] = copied
	}
	if _, ok := domains["*"]; !ok {
		for _, dc := range cfg.Distributors {
			if dc.CatchAll {
				domains["*"] = map[string]string{"/": distributor.MustParseID(dc.Dist).String()}
				break
			}
		}
	}
	return dispatcher.NewSiteTable(domains, cfg.Sites.Aliases)
}

// handler composes the metrics endpoint with the dispatcher.
func (s *Server) handler() http.Handler {
	if s.metrics == nil {
		return s.dispatcher
	}
	metricsPath := s.cfg.Metrics.Path
	metricsHandler := s.metrics.Handler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == metricsPath {
			metricsHandler.ServeHTTP(w, r)
			return
		}
		s.dispatcher.ServeHTTP(w, r)
	})
}

// Dispatcher exposes the dispatcher for middleware and site registration.
func (s *Server) Dispatcher() *dispatcher.Dispatcher { return s.dispatcher }

// RateLimits exposes the named limiter registry.
func (s *Server) RateLimits() *ratelimit.Registry { return s.limits }

// Distributor returns a booted distributor by "code@tag" id.
func (s *Server) Distributor(id string) (*distributor.Distributor, bool) {
	d, ok := s.distributors[id]
	return d, ok
}

// ExecuteBridge dispatches a bridge command locally, applying the target's
// allowlist and gates. The subprocess child side uses this path.
func (s *Server) ExecuteBridge(ctx context.Context, source, target distributor.ID, moduleCode, command string, args []any) *bridge.Response {
	resp := &bridge.Response{Source: target.String(), Timestamp: time.Now().Unix()}

	dist, ok := s.distributors[target.String()]
	if !ok {
		resp.Error = fmt.Sprintf("distributor %s is not hosted here", target)
		resp.Code = bridge.CodeModuleNotFound
		return resp
	}
	if !dist.Allows(source) {
		resp.Error = "caller not in allowlist"
		resp.Code = bridge.CodeAccessDenied
		return resp
	}

	result, err := dist.Commands().ExecuteBridge(ctx, source.String(), moduleCode, command, args)
	if err != nil {
		resp.Error = err.Error()
		resp.Code = bridge.CodeFor(err)
		return resp
	}
	resp.Success = true
	resp.Result = result
	return resp
}

// Run serves until SIGINT, SIGTERM, or SIGHUP, then shuts down gracefully.
func (s *Server) Run() error {
	if s.configPath != "" {
		watcher, err := config.NewWatcher(s.configPath)
		if err != nil {
			logging.Warn("Config watcher unavailable", zap.Error(err))
		} else {
			s.watcher = watcher
			watcher.OnChange(func(cfg *config.Config) {
				s.dispatcher.SetSites(buildSiteTable(cfg))
			})
			if err := watcher.Start(); err != nil {
				logging.Warn("Config watcher failed to start", zap.Error(err))
			}
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		logging.Info("Listening", zap.String("addr", s.cfg.Listen))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case sig := <-quit:
			logging.Info("Shutting down", zap.String("signal", sig.String()))
		case <-ctx.Done():
		}
		return s.Shutdown(s.cfg.Shutdown.Timeout)
	})

	return g.Wait()
}

// Shutdown drains in-flight requests and closes drivers.
func (s *Server) Shutdown(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.watcher != nil {
		s.watcher.Stop()
	}

	err := s.httpServer.Shutdown(ctx)

	if closeErr := s.sessions.Driver().Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if s.rdb != nil {
		if closeErr := s.rdb.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	logging.Sync()
	return err
}

// Uptime reports how long the server has been assembled.
func (s *Server) Uptime() time.Duration {
	return time.Since(s.startTime)
}
