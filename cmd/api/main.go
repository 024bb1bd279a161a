package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lnbridge/swap-gateway/internal/admission"
	"github.com/lnbridge/swap-gateway/internal/cache"
	"github.com/lnbridge/swap-gateway/internal/config"
	"github.com/lnbridge/swap-gateway/internal/executor"
	"github.com/lnbridge/swap-gateway/internal/ledger"
	"github.com/lnbridge/swap-gateway/internal/routes"
	"github.com/lnbridge/swap-gateway/internal/server"
	"github.com/lnbridge/swap-gateway/internal/swap"
)

// loadEnv loads .env from the project root before anything reads os.Getenv.
func loadEnv(logger *logrus.Logger) {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	loadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Swap-execution provider client and the tradeable-asset catalog.
	// Without the catalog no request can resolve, so startup fails hard.
	exec := executor.NewClient(cfg.ExecutorBaseURL, cfg.ExecutorAPIKey, cfg.RequestTimeout, logger)
	assets, err := exec.Assets(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to load asset catalog from swap executor")
	}
	catalog := routes.NewCatalog(assets)
	resolver := routes.NewResolver(catalog, true)
	logger.WithFields(logrus.Fields{
		"assets":  len(assets),
		"network": cfg.LightningNetwork,
	}).Info("asset catalog loaded")

	// Ledger signing account.
	account, err := ledger.NewAccount(ledger.AccountConfig{
		RPCURL:     cfg.LedgerRPCURL,
		Address:    cfg.LedgerAccount,
		PrivateKey: cfg.LedgerPrivateKey,
		Timeout:    cfg.RequestTimeout,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create ledger account")
	}
	if err := account.Ping(ctx); err != nil {
		logger.WithError(err).Warn("ledger RPC unreachable at startup, continuing")
	}

	// Optional Redis-backed swap history.
	var history *cache.History
	if cfg.RedisAddr != "" {
		rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rclient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, swap history disabled")
		} else if history, err = cache.NewHistory(rclient, logger); err != nil {
			logger.WithError(err).Warn("failed to create swap history")
		}
	}

	orch := swap.NewOrchestrator(exec, account, swap.OrchestratorConfig{
		AwaitTimeout: cfg.AwaitTimeout,
		MaxFeePPM:    cfg.MaxPriceDeviationPPM,
	}, logger)

	h := &server.Handlers{
		Orchestrator: orch,
		Resolver:     resolver,
		Catalog:      catalog,
		Limiter: admission.NewLimiter(admission.LimiterConfig{
			Window: cfg.RateLimitWindow,
			Limit:  cfg.RateLimitMax,
		}),
		Ledger:  account,
		History: history,
		Logger:  logger,
		DevMode: cfg.DevMode,
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("swap gateway starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("swap gateway failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
