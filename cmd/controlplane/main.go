package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"agentplane/internal/catalog"
	"agentplane/internal/channels"
	"agentplane/internal/config"
	"agentplane/internal/forwardproxy"
	"agentplane/internal/gatewayproxy"
	"agentplane/internal/httpapi"
	"agentplane/internal/ledger"
	"agentplane/internal/logger"
	"agentplane/internal/monitor"
	"agentplane/internal/orchestrator"
	"agentplane/internal/provider"
	"agentplane/internal/provider/elastic"
	"agentplane/internal/provider/fixed"
	"agentplane/internal/provider/sprite"
	"agentplane/internal/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	logger.Init()
	logger.Info("=== Control Plane Starting ===")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	db, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Info("✓ Database initialized")

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Warn("Redis URL invalid, ledger will write straight through to Postgres: %v", err)
		} else {
			rdb = redis.NewClient(opts)
			if err := rdb.Ping(context.Background()).Err(); err != nil {
				logger.Warn("Redis ping failed, ledger will write straight through to Postgres: %v", err)
				rdb = nil
			} else {
				logger.Info("✓ Redis initialized")
			}
		}
	}

	users := store.NewUserRepo(db)
	agents := store.NewAgentRepo(db)
	vpses := store.NewVpsRepo(db)
	plans := store.NewPlanRepo(db)
	vpsConfigs := store.NewVpsConfigRepo(db)
	budgets := store.NewBudgetRepo(db)
	usage := store.NewUsageRepo(db)
	channelRepo := store.NewChannelRepo(db)

	if entries, err := catalog.Load(cfg.VPSConfigCatalogPath); err != nil {
		logger.Warn("vps config catalog not loaded: %v", err)
	} else if len(entries) > 0 {
		if err := catalog.Seed(context.Background(), vpsConfigs, entries); err != nil {
			logger.Warn("vps config catalog seed failed: %v", err)
		} else {
			logger.Info("✓ VPS config catalog seeded (%d entries)", len(entries))
		}
	}

	providers, err := provider.Build(cfg, elastic.New, fixed.New, sprite.New)
	if err != nil {
		logger.Fatalf("failed to initialize providers: %v", err)
	}
	logger.Info("✓ Providers registered: %v", providers.Available())

	l := ledger.New(usage, rdb)
	channelsSvc := channels.NewService(channelRepo)
	orch := orchestrator.NewService(agents, vpses, vpsConfigs, plans, users, providers, cfg.ProxyExternalAddr, cfg.GatewayProxyPort)
	gateway := gatewayproxy.NewServer(agents, vpses, l, cfg.JWTSecret, cfg.GatewayProxyPort)

	server := httpapi.NewServer(users, agents, vpses, plans, vpsConfigs, budgets, usage, channelsSvc, orch, l, gateway, providers, cfg.JWTSecret, cfg.FrontendOrigin)

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if rdb != nil {
		go l.RunFlusher(shutdownCtx, cfg.LedgerFlushInterval)
	}

	mon := monitor.New(vpses, users, plans, budgets, l, providers)
	go mon.Run(shutdownCtx, cfg.MonitorInterval)
	logger.Info("✓ Enforcement monitor started, interval=%s", cfg.MonitorInterval)

	fwdProxy := forwardproxy.NewServer(agents, vpses, users, plans, budgets, l)
	go func() {
		if err := fwdProxy.ListenAndServe(shutdownCtx, cfg.ProxyListenAddr); err != nil {
			logger.Fatalf("forward proxy failed: %v", err)
		}
	}()

	// No WriteTimeout/IdleTimeout here: this listener also serves the
	// gateway reverse proxy's long-lived WebSocket relay, which a
	// blanket write deadline would kill mid-session.
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("=== Control Plane Ready - Listening on %s ===", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Fatalf("server failed: %v", err)
	case <-shutdownCtx.Done():
		logger.Info("=== Shutting down gracefully ===")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn("error during API server shutdown: %v", err)
		}
		logger.Info("shutdown complete")
	}
}
