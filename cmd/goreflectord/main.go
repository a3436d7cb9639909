// Command goreflectord is the packet reflector daemon: it loads
// configuration, builds the module registry and its bound session,
// routing, and processor-master collaborators, loads every declared
// module, and serves the admin protocol and Prometheus metrics until
// signalled to stop.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dantte-lp/goreflector/internal/admin"
	"github.com/dantte-lp/goreflector/internal/config"
	reflmetrics "github.com/dantte-lp/goreflector/internal/metrics"
	"github.com/dantte-lp/goreflector/internal/module"
	"github.com/dantte-lp/goreflector/internal/netio"
	"github.com/dantte-lp/goreflector/internal/packet"
	"github.com/dantte-lp/goreflector/internal/processor"
	"github.com/dantte-lp/goreflector/internal/routing"
	"github.com/dantte-lp/goreflector/internal/session"
	appversion "github.com/dantte-lp/goreflector/internal/version"
)

// shutdownTimeout bounds how long the metrics HTTP server is given to
// drain on graceful shutdown.
const shutdownTimeout = 10 * time.Second

// msgInterfaceName is the wire name this daemon's admin server reports
// itself under for Gate bookkeeping (§5 RIR mode names one msg-interface
// module at a time; a single built-in admin server is all this daemon
// runs).
const msgInterfaceName = "admin"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()))
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("goreflector starting",
		slog.String("version", appversion.Version),
		slog.String("admin_addr", cfg.Admin.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	reg := prometheus.NewRegistry()
	collector := reflmetrics.NewCollector(reg)

	rt, ok := buildRuntime(cfg, logger, collector)
	if !ok {
		return 1
	}

	if err := runDaemon(cfg, rt, reg, logger, *configPath, logLevel); err != nil {
		logger.Error("goreflector exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("goreflector stopped")
	return 0
}

// runtime bundles every collaborator the module registry's loaded
// modules are wired against, the reflector's analogue of the donor's
// single bfd.Manager (§4.1-§4.6).
type runtime struct {
	registry  *module.Registry
	sessions  *session.Manager
	routing   *routing.Table
	procs     *processor.Master
	pool      *packet.Pool
	collector *reflmetrics.Collector
}

// buildRuntime constructs the registry and its collaborators, registers
// every built-in module initializer, loads and starts the modules
// declared in cfg.Modules, and wires the sender into the processor
// master (§4.5 "direct to sender"). Returns ok=false on a fatal
// initialization failure (§7 "failure during global initialization is
// fatal").
func buildRuntime(cfg *config.Config, logger *slog.Logger, collector *reflmetrics.Collector) (*runtime, bool) {
	registry := module.NewRegistry(logger)
	sessions := session.NewManager(registry, logger)
	rt := routing.NewTable()
	procs := processor.NewMaster(registry, logger)
	pool := packet.NewPool(packet.DefaultBufferSize)

	registry.Register(module.ID{Class: module.ClassListener, Name: "udp"}, netio.NewListenerInitializer(sessions, procs, pool))
	registry.Register(module.ID{Class: module.ClassSender, Name: "sender"}, netio.NewSenderInitializer(sessions))
	registry.Register(module.ID{Class: module.ClassProcessor, Name: "filter"}, processor.NewFilterInitializer(procs))

	ctx := context.Background()
	var senderHandle *module.Handle

	for _, mc := range cfg.Modules {
		class, ok := module.ParseClass(mc.Class)
		if !ok {
			logger.Error("skipping declared module with unknown class", slog.String("class", mc.Class))
			continue
		}
		id := module.ID{Class: class, Name: mc.Name}
		h, err := registry.Load(ctx, id)
		if err != nil {
			logger.Error("failed to load declared module", slog.String("module", id.String()), slog.Any("error", err))
			return nil, false
		}
		for name, value := range mc.Params {
			if setErr := h.Params().Set(name, value); setErr != nil {
				logger.Error("failed to set module parameter",
					slog.String("module", id.String()), slog.String("param", name), slog.Any("error", setErr))
				return nil, false
			}
		}
		if err := registry.Init(ctx, h); err != nil {
			logger.Error("failed to init declared module", slog.String("module", id.String()), slog.Any("error", err))
			return nil, false
		}
		if err := registry.Start(ctx, h); err != nil {
			logger.Error("failed to start declared module", slog.String("module", id.String()), slog.Any("error", err))
			return nil, false
		}
		if class == module.ClassSender && senderHandle == nil {
			senderHandle = h
		}
	}

	if senderHandle != nil {
		procs.SetSender(senderHandle)
	} else {
		logger.Warn("no sender module declared; dispatched packets with an exhausted path will be dropped")
	}

	return &runtime{
		registry:  registry,
		sessions:  sessions,
		routing:   rt,
		procs:     procs,
		pool:      pool,
		collector: collector,
	}, true
}

// runDaemon serves the admin protocol and metrics HTTP endpoint, runs
// the stale-client reaper and path-cache evictor, and blocks until a
// termination signal arrives, then drains every loaded module.
func runDaemon(
	cfg *config.Config,
	rt *runtime,
	reg *prometheus.Registry,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	adminMaster := admin.NewMaster(rt.registry, rt.sessions, rt.routing, logger)
	adminSrv := &admin.Server{
		Addr:     cfg.Admin.Addr,
		Master:   adminMaster,
		Name:     msgInterfaceName,
		MaxConns: cfg.Admin.MaxConns,
		Logger:   logger,
	}
	g.Go(func() error { return adminSrv.ListenAndServe(gCtx) })

	metricsSrv := newMetricsServer(cfg.Metrics, reg)
	g.Go(func() error { return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr) })

	g.Go(func() error { return runReaper(gCtx, cfg.Sessions, rt, logger) })
	g.Go(func() error { return runWatchdog(gCtx, logger) })

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(gCtx, sigHUP, configPath, logLevel, logger)
		return nil
	})

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, rt, logger, adminSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// runReaper periodically sweeps every registered listener's stale,
// non-permanent clients (§4.6 evict_stale) and evicts unreferenced
// memoized processor paths (§3 "freed when no metadata still
// references them"), mirroring the sweep cadence the donor's own
// session reconciliation loop used for a different purpose.
//
// A non-positive DefaultTimeout means clients never expire
// (session.NeverExpires), so the client-eviction half of the sweep is
// skipped entirely; the path-cache eviction half always runs.
func runReaper(ctx context.Context, cfg config.SessionsConfig, rt *runtime, logger *slog.Logger) error {
	interval := cfg.ReapInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if cfg.DefaultTimeout > 0 {
				rt.sessions.EvictStaleAll(now.Add(-cfg.DefaultTimeout))
			}
			rt.procs.EvictUnreferenced()
			if rt.collector != nil {
				rt.collector.PathCacheSize.Set(float64(rt.procs.CacheSize()))
			}
		}
	}
}

func handleSIGHUP(ctx context.Context, sigHUP <-chan os.Signal, configPath string, logLevel *slog.LevelVar, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			newCfg, err := loadConfig(configPath)
			if err != nil {
				logger.Error("failed to reload configuration, keeping current settings", slog.String("error", err.Error()))
				continue
			}
			oldLevel := logLevel.Level()
			newLevel := config.ParseLogLevel(newCfg.Log.Level)
			logLevel.Set(newLevel)
			logger.Info("configuration reloaded",
				slog.String("old_log_level", oldLevel.String()),
				slog.String("new_log_level", newLevel.String()))
		}
	}
}

// gracefulShutdown stops every running module (newest state first is not
// required; Registry.Stop is idempotent-safe per handle) and shuts down
// the metrics HTTP server within shutdownTimeout. The admin server is not
// drained here; its ListenAndServe returns once ctx is done.
func gracefulShutdown(ctx context.Context, rt *runtime, logger *slog.Logger, adminSrv *admin.Server, metricsSrv *http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	rt.registry.ForEach(module.ClassAll, func(h *module.Handle) {
		if h.State() != module.StateRunning {
			return
		}
		if err := rt.registry.Stop(h); err != nil {
			logger.Warn("failed to stop module during shutdown", slog.String("module", h.ID().String()), slog.Any("error", err))
		}
	})

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown metrics server: %w", err))
	}
	_ = adminSrv // admin.Server.ListenAndServe returns once ctx is done; nothing further to drain.
	return shutdownErr
}

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd at half the
// configured interval, exiting immediately if the watchdog is not
// configured.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		return nil
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", err.Error()))
			}
		}
	}
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
