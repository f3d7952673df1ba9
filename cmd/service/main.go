package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/project-tracker-service/internal/circuitbreaker"
	"github.com/kjstillabower/project-tracker-service/internal/config"
	httphandler "github.com/kjstillabower/project-tracker-service/internal/http"
	"github.com/kjstillabower/project-tracker-service/internal/lifecycle"
	"github.com/kjstillabower/project-tracker-service/internal/observability"
	"github.com/kjstillabower/project-tracker-service/internal/service"
	"github.com/kjstillabower/project-tracker-service/internal/session"
	"github.com/kjstillabower/project-tracker-service/internal/store"
	"github.com/kjstillabower/project-tracker-service/internal/structure"
	"github.com/kjstillabower/project-tracker-service/internal/traffic"
)

// sessionSweepInterval is how often expired in-memory sessions are dropped.
const sessionSweepInterval = 10 * time.Minute

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	outcomes := traffic.New(cfg.DegradedWindow)
	fs := store.NewFS(cfg.DataDir, logger, outcomes)
	if err := fs.MkdirAll(fs.Root()); err != nil {
		logger.Fatal("data dir", zap.Error(err))
	}
	svc := service.New(fs, cfg.TemplatesDir, logger)
	if err := svc.ApplyDebugMode(context.Background()); err != nil {
		logger.Warn("global settings unreadable; debug mode left off", zap.Error(err))
	}

	tool, err := structure.New(structure.Options{
		BaseDir:    cfg.StructureBaseDir,
		Manifest:   cfg.StructureManifest,
		BackupDir:  cfg.StructureBackupDir,
		IgnoreDirs: cfg.StructureIgnoreDirs,
		Logger:     logger.Named("structure"),
	})
	if err != nil {
		logger.Fatal("structure tool", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sessions session.Store
	var sessionPing func() error
	var memcacheCloser *session.MemcachedStore
	switch cfg.SessionBackend {
	case "memcached":
		mc := session.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err := mc.Ping(); err != nil {
			logger.Warn("memcached not reachable at startup", zap.String("addrs", cfg.MemcachedAddrs), zap.Error(err))
		}
		memcacheCloser = mc
		sessions, sessionPing = mc, mc.Ping
		if cfg.SessionCircuitEnabled {
			cb := circuitbreaker.New(circuitbreaker.Config{
				FailureThreshold: cfg.SessionCircuitFailureThreshold,
				SuccessThreshold: cfg.SessionCircuitSuccessThreshold,
				Timeout:          cfg.SessionCircuitTimeout,
				OnStateChange: func(from, to circuitbreaker.State) {
					observability.RecordSessionCircuitTransition(from.String(), to.String(), int(to))
					logger.Warn("session backend circuit", zap.String("from", from.String()), zap.String("to", to.String()))
				},
			})
			guarded := session.NewGuardedStore(mc, cb)
			sessions, sessionPing = guarded, guarded.Ping
			observability.SessionCircuitState.Set(0)
			logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.SessionCircuitFailureThreshold), zap.Duration("timeout", cfg.SessionCircuitTimeout))
		}
		logger.Info("session backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		mem := session.NewInMemoryStore()
		observability.RegisterSessionGauge(mem.Count)
		go sweepSessions(ctx, mem)
		sessions = mem
		logger.Info("session backend: in_memory")
	}

	opts := httphandler.Options{
		CookieName:       cfg.SessionCookieName,
		CookieSecure:     cfg.SessionCookieSecure,
		SessionTTL:       cfg.SessionTTL,
		PagesDir:         cfg.PagesDir,
		StaticDir:        cfg.StaticDir,
		DataDir:          cfg.DataDir,
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		SessionPing:      sessionPing,
	}
	handler := httphandler.NewHandler(svc, sessions, tool, outcomes, logger, opts)

	limiter := rate.NewLimiter(rate.Limit(cfg.LoginRateLimitRPS), cfg.LoginRateLimitBurst)
	if cfg.TestingMode {
		logger.Warn("Testing mode enabled; /test endpoint exposed")
	}
	router := httphandler.NewRouter(handler, httphandler.RouterOptions{
		LoginLimiter:   limiter,
		RequestTimeout: cfg.RequestTimeout,
		TestingMode:    cfg.TestingMode,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		lifecycle.MarkStarted(time.Now())
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort), zap.String("dataDir", cfg.DataDir))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

// sweepSessions drops expired in-memory sessions until ctx is done.
func sweepSessions(ctx context.Context, mem *session.InMemoryStore) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mem.Count()
		}
	}
}
