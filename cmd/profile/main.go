// Command profile computes or fetches a single wallet profile and prints it
// as JSON. It uses the same configuration and storage tiers as the server.
//
// Usage:
//
//	profile -wallet <address> [-refresh] [-history N]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"wallet-profiler/internal/app"
	"wallet-profiler/internal/config"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/orchestrator"
)

func main() {
	wallet := flag.String("wallet", "", "Wallet address to profile")
	refresh := flag.Bool("refresh", false, "Recompute, ignoring cached profiles")
	history := flag.Int("history", 0, "Print up to N stored profiles instead of the current one")
	logLevel := flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flag.Parse()

	logger := observability.NewLogger(*logLevel, "console", "wallet-profiler-cli")

	if *wallet == "" {
		fmt.Fprintln(os.Stderr, "-wallet is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, *wallet, *refresh, *history); err != nil {
		logger.Error().Err(err).Str("wallet", *wallet).Msg("profile failed")
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, wallet string, refresh bool, history int) error {
	a, err := app.Build(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var out any
	switch {
	case history > 0:
		out, err = a.Orchestrator.History(ctx, wallet, history)
	case refresh:
		out, err = a.Orchestrator.Refresh(ctx, wallet)
	default:
		out, err = a.Orchestrator.GetProfile(ctx, wallet, orchestrator.GetOptions{})
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
