// Package app assembles the profiler from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"wallet-profiler/internal/config"
	"wallet-profiler/internal/events"
	"wallet-profiler/internal/holdings"
	"wallet-profiler/internal/normalization"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/orchestrator"
	"wallet-profiler/internal/pricing"
	"wallet-profiler/internal/retry"
	"wallet-profiler/internal/scoring"
	"wallet-profiler/internal/solana"
	"wallet-profiler/internal/source/helius"
	"wallet-profiler/internal/storage"
	badgerstore "wallet-profiler/internal/storage/badger"
	chstore "wallet-profiler/internal/storage/clickhouse"
	"wallet-profiler/internal/storage/memory"
	"wallet-profiler/internal/storage/migrations"
	pgstore "wallet-profiler/internal/storage/postgres"
	redisstore "wallet-profiler/internal/storage/redis"
	"wallet-profiler/internal/tokenmeta"
)

// App holds the assembled orchestrator and the resources behind it.
type App struct {
	Orchestrator *orchestrator.Orchestrator
	RPC          *solana.HTTPClient

	closers []func() error
	logger  zerolog.Logger
}

// stores groups the storage tiers selected by configuration.
type stores struct {
	hot      storage.ProfileCache
	durable  storage.ProfileStore
	ledger   storage.TradeLedger
	metadata storage.TokenMetadataStore
}

// Build wires every component from cfg. On error, anything already opened
// is closed before returning. metrics may be nil.
func Build(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) (*App, error) {
	if cfg.HeliusAPIKey == "" {
		return nil, errors.New("HELIUS_API_KEY is required")
	}

	a := &App{logger: logger}

	s, err := a.createStores(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	policy := retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		Jitter:      cfg.RetryJitter,
	}

	a.RPC = solana.NewHTTPClient(cfg.SolanaRPCEndpoint, solana.WithRetryPolicy(policy))

	// memory cache -> stored metadata -> mint account
	resolver := tokenmeta.NewCachedResolver(
		tokenmeta.NewStoredResolver(tokenmeta.NewRPCResolver(a.RPC), s.metadata, tokenmeta.DefaultStoreMaxAge, logger),
		0, 0, logger,
	)
	prices := pricing.NewDexScreener(cfg.DexScreenerBaseURL, pricing.DefaultPriceTTL)

	ttl := orchestrator.DefaultClassTTLPolicy(scoring.ModelVersion)
	ttl.Volatile = cfg.TTLVolatile
	ttl.Behavioral = cfg.TTLBehavioral
	ttl.LowConfidence = cfg.TTLLowConfidence

	orch, err := orchestrator.New(orchestrator.Options{
		Hot:        s.hot,
		Durable:    s.durable,
		Ledger:     s.ledger,
		Source:     helius.NewClient(cfg.HeliusAPIKey, helius.WithBaseURL(cfg.HeliusBaseURL), helius.WithLogger(logger)),
		Normalizer: normalization.New(resolver, prices, logger),
		Holdings:   holdings.NewRPCProvider(a.RPC, prices, resolver, logger),
		Scorer:     scoring.NewEngine(scoring.DefaultConfig()),
		Publisher:  a.createPublisher(cfg),
		TTL:        ttl,
		Retry:      policy,
		Metrics:    metrics,
		Logger:     logger,

		FetchTimeout:    cfg.FetchTimeout,
		ComputeTimeout:  cfg.ComputeTimeout,
		MaxTrades:       cfg.MaxTrades,
		MaxFetchRecords: cfg.MaxFetchRecords,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create orchestrator: %w", err)
	}
	a.Orchestrator = orch

	return a, nil
}

// Close releases every opened resource in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *App) createStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{
		hot:      memory.NewProfileCache(),
		durable:  memory.NewProfileStore(),
		ledger:   memory.NewTradeLedger(),
		metadata: memory.NewTokenMetadataStore(),
	}

	// Hot tier
	if cfg.RedisAddr != "" {
		client, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, hot tier will miss until it recovers")
		}
		a.onClose(client.Close)
		s.hot = redisstore.NewProfileCache(client)
	}

	// Durable tier
	switch cfg.DurableBackend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, int32(cfg.PostgresMaxConns))
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.onClose(func() error { pool.Close(); return nil })

		if cfg.RunMigrations {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				return nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		s.durable = pgstore.NewProfileStore(pool)
		s.metadata = pgstore.NewTokenMetadataStore(pool)

	case config.BackendBadger:
		store, err := badgerstore.Open(cfg.BadgerDir)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		a.onClose(store.Close)
		s.durable = store
	}

	// Trade ledger
	if cfg.ClickhouseDSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.RunMigrations {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		a.onClose(conn.Close)
		s.ledger = chstore.NewTradeLedger(conn)
	}

	a.logger.Info().
		Bool("redis", cfg.RedisAddr != "").
		Str("durable", cfg.DurableBackend).
		Bool("clickhouse", cfg.ClickhouseDSN != "").
		Msg("storage tiers ready")

	return s, nil
}

func (a *App) createPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Noop{}
	}
	pub := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	a.onClose(pub.Close)
	a.logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka publisher enabled")
	return pub
}
