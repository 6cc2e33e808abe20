package memory

import (
	"context"
	"slices"
	"sync"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/storage"
)

var _ storage.ProfileStore = (*ProfileStore)(nil)

// ProfileStore is an in-memory implementation of storage.ProfileStore.
type ProfileStore struct {
	mu      sync.RWMutex
	history map[string][]*domain.WalletProfile // keyed by wallet, ComputedAt then insertion order
	latest  map[string]*domain.WalletProfile   // keyed by wallet
	runIDs  map[string]struct{}
}

// NewProfileStore creates a new in-memory profile store.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		history: make(map[string][]*domain.WalletProfile),
		latest:  make(map[string]*domain.WalletProfile),
		runIDs:  make(map[string]struct{}),
	}
}

// Get returns the latest profile for wallet. Returns ErrNotFound if none or invalidated.
func (s *ProfileStore) Get(_ context.Context, wallet string) (*domain.WalletProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.latest[wallet]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return p.Clone(), nil
}

// Upsert adds p to history and moves the latest pointer unless the current
// latest was computed after p. Returns ErrDuplicateKey if RunID exists.
func (s *ProfileStore) Upsert(_ context.Context, p *domain.WalletProfile) error {
	if p == nil || p.WalletAddress == "" || p.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runIDs[p.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	profileCopy := p.Clone()
	s.runIDs[p.RunID] = struct{}{}

	rows := s.history[p.WalletAddress]
	i := slices.IndexFunc(rows, func(r *domain.WalletProfile) bool {
		return r.ComputedAt.After(p.ComputedAt)
	})
	if i < 0 {
		i = len(rows)
	}
	s.history[p.WalletAddress] = slices.Insert(rows, i, profileCopy)

	if cur, ok := s.latest[p.WalletAddress]; !ok || !cur.ComputedAt.After(p.ComputedAt) {
		s.latest[p.WalletAddress] = profileCopy
	}
	return nil
}

// Invalidate removes the latest pointer for wallet. History is kept.
func (s *ProfileStore) Invalidate(_ context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.latest, wallet)
	return nil
}

// History returns up to limit profiles for wallet, newest first.
func (s *ProfileStore) History(_ context.Context, wallet string, limit int) ([]*domain.WalletProfile, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.history[wallet]
	result := make([]*domain.WalletProfile, 0, min(limit, len(rows)))
	for i := len(rows) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, rows[i].Clone())
	}
	return result, nil
}
