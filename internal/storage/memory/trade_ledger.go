package memory

import (
	"context"
	"sync"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/storage"
)

var _ storage.TradeLedger = (*TradeLedger)(nil)

// TradeLedger is an in-memory implementation of storage.TradeLedger.
type TradeLedger struct {
	mu     sync.RWMutex
	trades map[string][]domain.Trade      // keyed by wallet, kept sorted
	seen   map[string]map[string]struct{} // wallet -> signatures
}

// NewTradeLedger creates a new in-memory trade ledger.
func NewTradeLedger() *TradeLedger {
	return &TradeLedger{
		trades: make(map[string][]domain.Trade),
		seen:   make(map[string]map[string]struct{}),
	}
}

// Append stores trades whose signature is new for wallet.
func (l *TradeLedger) Append(_ context.Context, wallet string, trades []domain.Trade) (int, error) {
	if wallet == "" {
		return 0, storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seen, ok := l.seen[wallet]
	if !ok {
		seen = make(map[string]struct{})
		l.seen[wallet] = seen
	}

	added := 0
	for _, t := range trades {
		if t.Signature == "" {
			return added, storage.ErrInvalidInput
		}
		if _, dup := seen[t.Signature]; dup {
			continue
		}
		seen[t.Signature] = struct{}{}
		l.trades[wallet] = append(l.trades[wallet], t)
		added++
	}

	if added > 0 {
		domain.SortTrades(l.trades[wallet])
	}
	return added, nil
}

// LatestSignature returns the newest stored signature for wallet.
func (l *TradeLedger) LatestSignature(_ context.Context, wallet string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows := l.trades[wallet]
	if len(rows) == 0 {
		return "", storage.ErrNotFound
	}
	return rows[len(rows)-1].Signature, nil
}

// Recent returns up to limit newest trades, oldest first.
func (l *TradeLedger) Recent(_ context.Context, wallet string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	rows := l.trades[wallet]
	start := max(0, len(rows)-limit)
	result := make([]domain.Trade, len(rows)-start)
	copy(result, rows[start:])
	return result, nil
}
