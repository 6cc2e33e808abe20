// Package watcher invalidates cached profiles when a watched wallet
// lands a new transaction on chain.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/solana"
)

// Defaults.
const (
	DefaultDebounce          = 5 * time.Second
	DefaultInvalidateTimeout = 10 * time.Second
)

// ErrSubscriptionsClosed is returned by Run when every subscription channel
// was closed by the client.
var ErrSubscriptionsClosed = errors.New("all wallet subscriptions closed")

// Invalidator drops cached state for a wallet.
type Invalidator interface {
	Invalidate(ctx context.Context, wallet string) error
}

// Config configures a Watcher.
type Config struct {
	Wallets           []string
	Debounce          time.Duration
	InvalidateTimeout time.Duration
}

// Watcher subscribes to logs mentioning each wallet and invalidates it
// once per debounce window after a successful transaction.
type Watcher struct {
	ws       solana.WSClient
	inv      Invalidator
	cfg      Config
	metrics  *observability.Metrics
	logger   zerolog.Logger
	afterFn  func(d time.Duration, f func()) *time.Timer
	pendingM sync.Mutex
	pending  map[string]*time.Timer
}

// New creates a watcher. A nil metrics uses observability.DefaultMetrics.
func New(ws solana.WSClient, inv Invalidator, cfg Config, metrics *observability.Metrics, logger zerolog.Logger) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.InvalidateTimeout <= 0 {
		cfg.InvalidateTimeout = DefaultInvalidateTimeout
	}
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}
	return &Watcher{
		ws:      ws,
		inv:     inv,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With().Str("component", "watcher").Logger(),
		afterFn: time.AfterFunc,
		pending: make(map[string]*time.Timer),
	}
}

// Run subscribes to every configured wallet and blocks until ctx is done
// or all subscriptions close. Some providers accept a single address per
// logsSubscribe, so each wallet gets its own subscription.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.cfg.Wallets) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, wallet := range w.cfg.Wallets {
		ch, err := w.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{wallet}})
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("subscribe %s: %w", wallet, err)
		}
		w.logger.Info().Str("wallet", wallet).Msg("watching wallet")

		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consume(ctx, wallet, ch)
		}()
	}

	wg.Wait()
	w.stopPending()

	if ctx.Err() != nil {
		return nil
	}
	return ErrSubscriptionsClosed
}

func (w *Watcher) consume(ctx context.Context, wallet string, ch <-chan solana.LogNotification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				w.logger.Warn().Str("wallet", wallet).Msg("subscription closed")
				return
			}
			if n.Failed() {
				continue
			}
			w.schedule(ctx, wallet, n.Signature)
		}
	}
}

// schedule arms a single invalidation per wallet; notifications arriving
// while it is armed are folded into it.
func (w *Watcher) schedule(ctx context.Context, wallet, signature string) {
	w.pendingM.Lock()
	defer w.pendingM.Unlock()

	if _, armed := w.pending[wallet]; armed {
		return
	}
	w.logger.Debug().Str("wallet", wallet).Str("signature", signature).Msg("activity detected")

	w.pending[wallet] = w.afterFn(w.cfg.Debounce, func() {
		w.pendingM.Lock()
		delete(w.pending, wallet)
		w.pendingM.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.invalidate(ctx, wallet)
	})
}

func (w *Watcher) invalidate(ctx context.Context, wallet string) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.InvalidateTimeout)
	defer cancel()

	if err := w.inv.Invalidate(ctx, wallet); err != nil {
		w.logger.Error().Err(err).Str("wallet", wallet).Msg("invalidate failed")
		return
	}
	w.metrics.RecordInvalidation("watcher")
	w.logger.Info().Str("wallet", wallet).Msg("profile invalidated")
}

func (w *Watcher) stopPending() {
	w.pendingM.Lock()
	defer w.pendingM.Unlock()

	for wallet, t := range w.pending {
		t.Stop()
		delete(w.pending, wallet)
	}
}
