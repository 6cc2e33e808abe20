// Package orchestrator serves wallet profiles from a tiered cache.
// It coordinates: hot tier → durable tier → fresh computation
// (transaction source → normalizer → ledger → scoring engine).
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/events"
	"wallet-profiler/internal/holdings"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/retry"
	"wallet-profiler/internal/solana"
	"wallet-profiler/internal/source"
	"wallet-profiler/internal/storage"
)

// Defaults applied by New when the corresponding option is zero.
const (
	DefaultFetchTimeout    = 30 * time.Second
	DefaultComputeTimeout  = 60 * time.Second
	DefaultMaxTrades       = 1000
	DefaultMaxFetchRecords = 5000
)

// Normalizer turns raw records into trades for one wallet.
type Normalizer interface {
	Normalize(ctx context.Context, wallet string, records iter.Seq2[domain.RawRecord, error]) ([]domain.Trade, error)
}

// Scorer computes a profile from trades and holdings.
type Scorer interface {
	Score(trades []domain.Trade, holdings *domain.Holdings) (*domain.WalletProfile, error)
}

// GetOptions modifies a single GetProfile call.
type GetOptions struct {
	// ForceRefresh skips the hot tier. The durable tier is still consulted.
	ForceRefresh bool
	// Recompute skips both tiers and always joins or starts a computation.
	Recompute bool
}

// Options for creating Orchestrator.
type Options struct {
	// Required collaborators
	Hot        storage.ProfileCache
	Durable    storage.ProfileStore
	Ledger     storage.TradeLedger
	Source     source.TransactionSource
	Normalizer Normalizer
	Holdings   holdings.Provider
	Scorer     Scorer

	// Optional
	Publisher events.Publisher       // defaults to events.Noop
	TTL       TTLPolicy              // defaults to FixedTTLPolicy{5m, 6h}
	Retry     retry.Policy           // defaults to retry.DefaultPolicy()
	Metrics   *observability.Metrics // defaults to observability.DefaultMetrics
	Logger    zerolog.Logger
	Now       func() time.Time

	FetchTimeout    time.Duration // bounds the transaction source fetch
	ComputeTimeout  time.Duration // bounds a whole fresh computation
	MaxTrades       int           // ledger window passed to the scorer
	MaxFetchRecords int           // records fetched per computation
}

// Orchestrator serves profiles hot → durable → fresh and guarantees at most
// one concurrent computation per wallet.
type Orchestrator struct {
	hot        storage.ProfileCache
	durable    storage.ProfileStore
	ledger     storage.TradeLedger
	source     source.TransactionSource
	normalizer Normalizer
	holdings   holdings.Provider
	scorer     Scorer
	publisher  events.Publisher
	ttl        TTLPolicy
	retry      retry.Policy
	metrics    *observability.Metrics
	logger     zerolog.Logger
	now        func() time.Time

	fetchTimeout    time.Duration
	computeTimeout  time.Duration
	maxTrades       int
	maxFetchRecords int

	flights singleflight.Group

	mu      sync.Mutex
	wallets map[string]*walletState
}

// walletState tracks a wallet while a caller, computation or invalidation
// references it, and is dropped when the last reference is released.
//
// epoch advances on Invalidate. A computation started under an older
// epoch still answers the callers that joined it, but writes neither tier
// and is not handed to callers that observed the newer epoch.
type walletState struct {
	commit sync.Mutex // serializes tier writes against Invalidate
	epoch  atomic.Uint64
	refs   int // guarded by Orchestrator.mu
}

// commitIfCurrent runs write under the commit lock unless the wallet was
// invalidated after epoch.
func (st *walletState) commitIfCurrent(epoch uint64, write func() error) (bool, error) {
	st.commit.Lock()
	defer st.commit.Unlock()
	if st.epoch.Load() != epoch {
		return false, nil
	}
	return true, write()
}

// flight is the outcome of one computation and the epoch it started under.
type flight struct {
	profile *domain.WalletProfile
	epoch   uint64
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Hot == nil:
		return nil, errors.New("orchestrator: hot tier is required")
	case opts.Durable == nil:
		return nil, errors.New("orchestrator: durable tier is required")
	case opts.Ledger == nil:
		return nil, errors.New("orchestrator: trade ledger is required")
	case opts.Source == nil:
		return nil, errors.New("orchestrator: transaction source is required")
	case opts.Normalizer == nil:
		return nil, errors.New("orchestrator: normalizer is required")
	case opts.Holdings == nil:
		return nil, errors.New("orchestrator: holdings provider is required")
	case opts.Scorer == nil:
		return nil, errors.New("orchestrator: scorer is required")
	}

	o := &Orchestrator{
		hot:             opts.Hot,
		durable:         opts.Durable,
		ledger:          opts.Ledger,
		source:          opts.Source,
		normalizer:      opts.Normalizer,
		holdings:        opts.Holdings,
		scorer:          opts.Scorer,
		publisher:       opts.Publisher,
		ttl:             opts.TTL,
		retry:           opts.Retry,
		metrics:         opts.Metrics,
		logger:          opts.Logger.With().Str("component", "orchestrator").Logger(),
		now:             opts.Now,
		fetchTimeout:    opts.FetchTimeout,
		computeTimeout:  opts.ComputeTimeout,
		maxTrades:       opts.MaxTrades,
		maxFetchRecords: opts.MaxFetchRecords,
		wallets:         make(map[string]*walletState),
	}
	if o.publisher == nil {
		o.publisher = events.Noop{}
	}
	if o.ttl == nil {
		o.ttl = FixedTTLPolicy{Hot: 5 * time.Minute, Durable: 6 * time.Hour}
	}
	if o.retry.MaxAttempts == 0 {
		o.retry = retry.DefaultPolicy()
	}
	if o.metrics == nil {
		o.metrics = observability.DefaultMetrics
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.fetchTimeout <= 0 {
		o.fetchTimeout = DefaultFetchTimeout
	}
	if o.computeTimeout <= 0 {
		o.computeTimeout = DefaultComputeTimeout
	}
	if o.maxTrades <= 0 {
		o.maxTrades = DefaultMaxTrades
	}
	if o.maxFetchRecords <= 0 {
		o.maxFetchRecords = DefaultMaxFetchRecords
	}
	return o, nil
}

// GetProfile returns the profile for wallet.
//
// Fails with domain.ErrInvalidAddress, domain.ErrUpstreamUnavailable,
// domain.ErrComputeFailed, or ctx's error when the caller stops waiting.
// A caller that stops waiting does not cancel the computation it joined.
func (o *Orchestrator) GetProfile(ctx context.Context, wallet string, opts GetOptions) (*domain.WalletProfile, error) {
	if err := solana.ValidateAddress(wallet); err != nil {
		return nil, err
	}
	log := o.logger.With().Str("wallet", short(wallet)).Logger()

	if !opts.ForceRefresh && !opts.Recompute {
		if p := o.lookupHot(ctx, wallet, log); p != nil {
			log.Debug().Str("tier", string(domain.TierHot)).Msg("profile served")
			return p, nil
		}
	}

	if !opts.Recompute {
		if p := o.lookupDurable(ctx, wallet, log); p != nil {
			log.Debug().Str("tier", string(domain.TierDurable)).Msg("profile served")
			return p, nil
		}
	}

	return o.join(ctx, wallet, !opts.Recompute, log)
}

// Refresh recomputes the profile for wallet, bypassing both tiers.
// It still joins a computation already running for wallet.
func (o *Orchestrator) Refresh(ctx context.Context, wallet string) (*domain.WalletProfile, error) {
	return o.GetProfile(ctx, wallet, GetOptions{Recompute: true})
}

// Invalidate forces the next read of wallet to recompute. A computation
// already running keeps serving the callers that joined it; later callers
// wait for it to settle and start a new one.
// Hot-tier failures are logged; durable-tier failures are returned.
func (o *Orchestrator) Invalidate(ctx context.Context, wallet string) error {
	if err := solana.ValidateAddress(wallet); err != nil {
		return err
	}

	st := o.acquire(wallet)
	defer o.release(wallet, st)

	st.commit.Lock()
	defer st.commit.Unlock()
	st.epoch.Add(1)

	if err := o.hot.Delete(ctx, wallet); err != nil {
		o.logger.Warn().Err(err).Str("wallet", short(wallet)).Msg("hot tier delete failed")
	}
	if err := o.durable.Invalidate(ctx, wallet); err != nil {
		return fmt.Errorf("invalidate durable profile: %w", err)
	}
	return nil
}

// History returns up to limit past profiles for wallet, newest first.
func (o *Orchestrator) History(ctx context.Context, wallet string, limit int) ([]*domain.WalletProfile, error) {
	if err := solana.ValidateAddress(wallet); err != nil {
		return nil, err
	}
	history, err := o.durable.History(ctx, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("profile history: %w", err)
	}
	return history, nil
}

// lookupHot returns the hot-tier profile or nil. Errors count as misses.
func (o *Orchestrator) lookupHot(ctx context.Context, wallet string, log zerolog.Logger) *domain.WalletProfile {
	tier := string(domain.TierHot)
	entry, err := o.hot.Get(ctx, wallet)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		o.metrics.RecordTierLookup(tier, observability.ResultMiss)
		return nil
	case err != nil:
		o.metrics.RecordTierLookup(tier, observability.ResultError)
		log.Warn().Err(err).Msg("hot tier lookup failed, treating as miss")
		return nil
	case entry == nil || entry.Value == nil:
		o.metrics.RecordTierLookup(tier, observability.ResultMiss)
		return nil
	case !entry.Fresh(o.now()),
		entry.Value.Age(o.now()) >= o.ttl.TTL(entry.Value, domain.TierHot):
		o.metrics.RecordTierLookup(tier, observability.ResultExpired)
		return nil
	}

	o.metrics.RecordTierLookup(tier, observability.ResultHit)
	p := entry.Value.Clone()
	p.SourceTier = domain.TierHot
	return p
}

// lookupDurable returns an unexpired durable-tier profile or nil, and
// repopulates the hot tier on a hit. Errors count as misses.
func (o *Orchestrator) lookupDurable(ctx context.Context, wallet string, log zerolog.Logger) *domain.WalletProfile {
	tier := string(domain.TierDurable)
	st := o.acquire(wallet)
	defer o.release(wallet, st)
	epoch := st.epoch.Load()

	p, err := o.durable.Get(ctx, wallet)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		o.metrics.RecordTierLookup(tier, observability.ResultMiss)
		return nil
	case err != nil:
		o.metrics.RecordTierLookup(tier, observability.ResultError)
		log.Warn().Err(err).Msg("durable tier lookup failed, treating as miss")
		return nil
	case p == nil:
		o.metrics.RecordTierLookup(tier, observability.ResultMiss)
		return nil
	}

	now := o.now()
	if p.Age(now) >= o.ttl.TTL(p, domain.TierDurable) {
		o.metrics.RecordTierLookup(tier, observability.ResultExpired)
		return nil
	}
	o.metrics.RecordTierLookup(tier, observability.ResultHit)

	_, _ = st.commitIfCurrent(epoch, func() error {
		o.writeHot(ctx, p, now, log)
		return nil
	})

	out := p.Clone()
	out.SourceTier = domain.TierDurable
	return out
}

// writeHot caches p for the rest of its hot lifetime, never past its
// durable lifetime.
func (o *Orchestrator) writeHot(ctx context.Context, p *domain.WalletProfile, now time.Time, log zerolog.Logger) {
	age := p.Age(now)
	ttl := min(o.ttl.TTL(p, domain.TierHot), o.ttl.TTL(p, domain.TierDurable)) - age
	if ttl <= 0 {
		return
	}
	if err := o.hot.Set(ctx, p, ttl); err != nil {
		log.Warn().Err(err).Msg("hot tier write failed")
	}
}

// join waits for the wallet's in-flight computation, starting one if none
// exists. recheck lets the computation serve a durable entry written by a
// computation that finished after this caller's own lookup.
func (o *Orchestrator) join(ctx context.Context, wallet string, recheck bool, log zerolog.Logger) (*domain.WalletProfile, error) {
	st := o.acquire(wallet)
	defer o.release(wallet, st)

	for {
		seen := st.epoch.Load()
		leader := false
		ch := o.flights.DoChan(wallet, func() (any, error) {
			leader = true
			return o.run(context.WithoutCancel(ctx), wallet, recheck, log)
		})

		select {
		case res := <-ch:
			if f := res.Val.(*flight); f.epoch < seen {
				log.Debug().Msg("joined computation predates invalidation, joining again")
				continue
			}
			if !leader {
				o.metrics.JoinedWaiters.Inc()
			}
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.(*flight).profile.Clone(), nil
		case <-ctx.Done():
			log.Debug().Err(ctx.Err()).Msg("caller stopped waiting for computation")
			return nil, ctx.Err()
		}
	}
}

// run is the body of one flight. It holds its own reference to the wallet
// state because it may outlive every caller.
func (o *Orchestrator) run(ctx context.Context, wallet string, recheck bool, log zerolog.Logger) (*flight, error) {
	st := o.acquire(wallet)
	defer o.release(wallet, st)

	f := &flight{epoch: st.epoch.Load()}
	if recheck {
		if p := o.lookupDurable(ctx, wallet, log); p != nil {
			f.profile = p
			return f, nil
		}
	}
	p, err := o.compute(ctx, wallet, st, f.epoch, log)
	f.profile = p
	return f, err
}

func (o *Orchestrator) acquire(wallet string) *walletState {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.wallets[wallet]
	if !ok {
		st = &walletState{}
		o.wallets[wallet] = st
	}
	st.refs++
	return st
}

func (o *Orchestrator) release(wallet string, st *walletState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	st.refs--
	if st.refs == 0 && o.wallets[wallet] == st {
		delete(o.wallets, wallet)
	}
}

// compute runs a fresh computation and commits it durable-first.
// Nothing is written to either tier on failure.
func (o *Orchestrator) compute(ctx context.Context, wallet string, st *walletState, epoch uint64, log zerolog.Logger) (p *domain.WalletProfile, err error) {
	ctx, cancel := context.WithTimeout(ctx, o.computeTimeout)
	defer cancel()

	start := time.Now()
	o.metrics.InFlight.Inc()
	defer func() {
		o.metrics.InFlight.Dec()
		o.metrics.RecordComputation(time.Since(start), err)
		if err != nil {
			log.Error().Err(err).Dur("duration", time.Since(start)).Msg("profile computation failed")
		}
	}()

	var (
		trades []domain.Trade
		snap   *domain.Holdings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		trades, err = o.syncTrades(gctx, wallet)
		return err
	})
	g.Go(func() error {
		var err error
		snap, err = o.holdings.Holdings(gctx, wallet)
		if err != nil {
			return &domain.ComputeError{Stage: "holdings", Wallet: wallet, Err: err}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	p, err = o.scorer.Score(trades, snap)
	if err != nil {
		var ce *domain.ComputeError
		if errors.As(err, &ce) {
			if ce.Wallet == "" {
				ce.Wallet = wallet
			}
			return nil, ce
		}
		return nil, &domain.ComputeError{Stage: "score", Wallet: wallet, Err: err}
	}

	now := o.now()
	p.WalletAddress = wallet
	p.ComputedAt = now
	p.RunID = uuid.NewString()
	p.SourceTier = domain.TierFresh

	committed, cerr := st.commitIfCurrent(epoch, func() error {
		if err := o.durable.Upsert(ctx, p); err != nil {
			return &domain.ComputeError{Stage: "persist", Wallet: wallet, Err: err}
		}
		o.writeHot(ctx, p, now, log)
		return nil
	})
	if cerr != nil {
		return nil, cerr
	}
	if !committed {
		log.Info().Msg("profile invalidated during computation, not caching")
		return p, nil
	}

	err = o.publisher.PublishProfile(ctx, p)
	o.metrics.RecordEventPublish(err)
	if err != nil {
		log.Warn().Err(err).Msg("profile event publish failed")
		err = nil
	}

	log.Info().
		Str("tier", string(domain.TierFresh)).
		Str("run_id", p.RunID).
		Str("archetype", string(p.Archetype)).
		Int("trades", p.TradeCount).
		Dur("duration", time.Since(start)).
		Msg("profile computed")
	return p, nil
}

// syncTrades fetches records newer than the ledger head, appends the
// normalized trades and returns the scoring window.
func (o *Orchestrator) syncTrades(ctx context.Context, wallet string) ([]domain.Trade, error) {
	until, err := o.ledger.LatestSignature(ctx, wallet)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, &domain.ComputeError{Stage: "ledger", Wallet: wallet, Err: err}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, o.fetchTimeout)
	defer cancel()

	records := source.Fetch(fetchCtx, o.source, wallet, source.FetchOptions{
		Until:      until,
		MaxRecords: o.maxFetchRecords,
		Retry:      o.retry,
	})
	trades, err := o.normalizer.Normalize(fetchCtx, wallet, records)
	if err != nil {
		return nil, classifyFetchError(wallet, err)
	}
	o.metrics.TradesNormalized.Add(float64(len(trades)))

	if len(trades) > 0 {
		if _, err := o.ledger.Append(ctx, wallet, trades); err != nil {
			return nil, &domain.ComputeError{Stage: "ledger", Wallet: wallet, Err: err}
		}
	}

	window, err := o.ledger.Recent(ctx, wallet, o.maxTrades)
	if err != nil {
		return nil, &domain.ComputeError{Stage: "ledger", Wallet: wallet, Err: err}
	}
	return window, nil
}

// classifyFetchError keeps upstream failures distinguishable from compute
// failures. A fetch that ran out of time is an unavailable upstream.
func classifyFetchError(wallet string, err error) error {
	var ce *domain.ComputeError
	switch {
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return fmt.Errorf("fetch transactions: %w", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: fetch transactions: %w", domain.ErrUpstreamUnavailable, err)
	case errors.As(err, &ce):
		return err
	default:
		return &domain.ComputeError{Stage: "normalize", Wallet: wallet, Err: err}
	}
}

// short abbreviates a wallet address for logs.
func short(wallet string) string {
	if len(wallet) <= 10 {
		return wallet
	}
	return wallet[:4] + ".." + wallet[len(wallet)-4:]
}
