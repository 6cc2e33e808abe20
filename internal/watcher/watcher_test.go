package watcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/solana"
)

const (
	walletA = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"
	walletB = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type fakeWS struct {
	mu        sync.Mutex
	subs      map[string]chan solana.LogNotification
	failOn    string
	subscribe chan string
}

func newFakeWS() *fakeWS {
	return &fakeWS{
		subs:      make(map[string]chan solana.LogNotification),
		subscribe: make(chan string, 10),
	}
}

func (f *fakeWS) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	wallet := filter.Mentions[0]
	if wallet == f.failOn {
		return nil, errors.New("subscription rejected")
	}
	ch := make(chan solana.LogNotification, 16)
	f.mu.Lock()
	f.subs[wallet] = ch
	f.mu.Unlock()
	f.subscribe <- wallet
	return ch, nil
}

func (f *fakeWS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for w, ch := range f.subs {
		close(ch)
		delete(f.subs, w)
	}
	return nil
}

func (f *fakeWS) send(wallet string, n solana.LogNotification) {
	f.mu.Lock()
	ch := f.subs[wallet]
	f.mu.Unlock()
	ch <- n
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
	done  chan string
}

func newRecordingInvalidator() *recordingInvalidator {
	return &recordingInvalidator{calls: make(map[string]int), done: make(chan string, 10)}
}

func (r *recordingInvalidator) Invalidate(_ context.Context, wallet string) error {
	r.mu.Lock()
	r.calls[wallet]++
	r.mu.Unlock()
	r.done <- wallet
	return r.err
}

func (r *recordingInvalidator) count(wallet string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[wallet]
}

func startWatcher(t *testing.T, ws *fakeWS, inv Invalidator, wallets []string, metrics *observability.Metrics) (context.CancelFunc, <-chan error) {
	t.Helper()

	w := New(ws, inv, Config{Wallets: wallets, Debounce: 30 * time.Millisecond}, metrics, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	for range wallets {
		select {
		case <-ws.subscribe:
		case <-time.After(time.Second):
			t.Fatal("watcher did not subscribe")
		}
	}
	return cancel, errCh
}

func waitInvalidated(t *testing.T, inv *recordingInvalidator) string {
	t.Helper()
	select {
	case w := <-inv.done:
		return w
	case <-time.After(time.Second):
		t.Fatal("no invalidation")
		return ""
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	ws := newFakeWS()
	inv := newRecordingInvalidator()
	metrics := observability.NewMetrics("watcher_test", prometheus.NewRegistry())

	cancel, errCh := startWatcher(t, ws, inv, []string{walletA}, metrics)
	defer cancel()

	for i := 0; i < 5; i++ {
		ws.send(walletA, solana.LogNotification{Signature: "sig", Slot: int64(i)})
	}

	assert.Equal(t, walletA, waitInvalidated(t, inv))

	// Nothing else fires for the same burst.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, inv.count(walletA))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Invalidations.WithLabelValues("watcher")))

	// A later burst invalidates again.
	ws.send(walletA, solana.LogNotification{Signature: "sig2"})
	waitInvalidated(t, inv)
	assert.Equal(t, 2, inv.count(walletA))

	cancel()
	assert.NoError(t, <-errCh)
}

func TestWatcher_IgnoresFailedTransactions(t *testing.T) {
	ws := newFakeWS()
	inv := newRecordingInvalidator()

	cancel, _ := startWatcher(t, ws, inv, []string{walletA}, observability.NewMetrics("watcher_test", prometheus.NewRegistry()))
	defer cancel()

	ws.send(walletA, solana.LogNotification{Signature: "failed", Err: map[string]any{"InstructionError": []any{0, "Custom"}}})
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, inv.count(walletA))
}

func TestWatcher_WalletsAreIndependent(t *testing.T) {
	ws := newFakeWS()
	inv := newRecordingInvalidator()

	cancel, _ := startWatcher(t, ws, inv, []string{walletA, walletB}, observability.NewMetrics("watcher_test", prometheus.NewRegistry()))
	defer cancel()

	ws.send(walletA, solana.LogNotification{Signature: "a"})
	ws.send(walletB, solana.LogNotification{Signature: "b"})

	got := map[string]bool{waitInvalidated(t, inv): true, waitInvalidated(t, inv): true}
	assert.True(t, got[walletA])
	assert.True(t, got[walletB])
}

func TestWatcher_InvalidateErrorNotCounted(t *testing.T) {
	ws := newFakeWS()
	inv := newRecordingInvalidator()
	inv.err = errors.New("durable down")
	metrics := observability.NewMetrics("watcher_test", prometheus.NewRegistry())

	cancel, _ := startWatcher(t, ws, inv, []string{walletA}, metrics)
	defer cancel()

	ws.send(walletA, solana.LogNotification{Signature: "a"})
	waitInvalidated(t, inv)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Invalidations.WithLabelValues("watcher")))
}

func TestWatcher_SubscriptionsClosed(t *testing.T) {
	ws := newFakeWS()
	inv := newRecordingInvalidator()

	cancel, errCh := startWatcher(t, ws, inv, []string{walletA}, observability.NewMetrics("watcher_test", prometheus.NewRegistry()))
	defer cancel()

	require.NoError(t, ws.Close())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSubscriptionsClosed)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestWatcher_SubscribeError(t *testing.T) {
	ws := newFakeWS()
	ws.failOn = walletB

	w := New(ws, newRecordingInvalidator(), Config{Wallets: []string{walletA, walletB}}, nil, zerolog.Nop())
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), walletB)
}

func TestWatcher_NoWallets(t *testing.T) {
	w := New(newFakeWS(), newRecordingInvalidator(), Config{}, nil, zerolog.Nop())
	assert.NoError(t, w.Run(context.Background()))
}
