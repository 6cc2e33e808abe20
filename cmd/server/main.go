// Command server runs the wallet profile HTTP API and, when wallets are
// configured, the account watcher that invalidates their cached profiles.
//
// Configuration comes from the environment (and an optional .env file);
// flags override the matching variables.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"wallet-profiler/internal/api"
	"wallet-profiler/internal/app"
	"wallet-profiler/internal/config"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/solana"
	"wallet-profiler/internal/watcher"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := observability.NewLogger("info", "json", "wallet-profiler")
		bootLogger.Fatal().Err(err).Msg("load config")
	}

	// Flags default to the loaded configuration.
	flag.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "HTTP listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, console)")
	flag.StringVar(&cfg.DurableBackend, "durable", cfg.DurableBackend, "Durable tier backend (postgres, badger, memory)")
	flag.BoolVar(&cfg.RunMigrations, "migrate", cfg.RunMigrations, "Apply database migrations on startup")
	flag.Parse()

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, "wallet-profiler")
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Info().
		Str("addr", cfg.HTTPAddr).
		Str("rpc", cfg.SolanaRPCEndpoint).
		Str("helius_key", cfg.MaskedHeliusKey()).
		Str("durable", cfg.DurableBackend).
		Int("watch_wallets", len(cfg.WatchWallets)).
		Msg("starting wallet profiler")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Build(ctx, cfg, observability.DefaultMetrics, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build application")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("close resources")
		}
	}()

	server := api.NewServer(a.Orchestrator, api.Options{
		Addr:           cfg.HTTPAddr,
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        observability.DefaultMetrics,
		Logger:         logger,
	})

	// Channel to signal completion
	done := make(chan struct{})
	defer close(done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var sig os.Signal
		select {
		case sig = <-sigCh:
		case <-done:
			return
		}
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Error().Dur("timeout", shutdownTimeout).Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	var w *watcher.Watcher
	if len(cfg.WatchWallets) > 0 {
		ws, err := solana.NewWSClient(ctx, cfg.SolanaWSEndpoint, nil, logger)
		if err != nil {
			logger.Error().Err(err).Msg("connect to solana websocket")
			return
		}
		defer ws.Close()

		w = watcher.New(ws, a.Orchestrator, watcher.Config{
			Wallets:  cfg.WatchWallets,
			Debounce: cfg.WatchDebounce,
		}, observability.DefaultMetrics, logger)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		return server.Shutdown(shutdownCtx)
	})
	if w != nil {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("server stopped with error")
		cancel()
		return
	}

	logger.Info().Msg("shutdown complete")
}
