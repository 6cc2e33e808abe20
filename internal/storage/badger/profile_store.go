// Package badger provides an embedded durable tier for single-node
// deployments that run without PostgreSQL.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/storage"
)

// Key layout:
//
//	latest/<wallet>                    -> latestPointer JSON
//	hist/<wallet>/<unix nanos BE><run> -> WalletProfile JSON
//	run/<run id>                       -> wallet
const (
	latestPrefix  = "latest/"
	historyPrefix = "hist/"
	runPrefix     = "run/"
)

type latestPointer struct {
	Key        []byte    `json:"key"`
	ComputedAt time.Time `json:"computed_at"`
}

// ProfileStore implements storage.ProfileStore on an embedded badger database.
type ProfileStore struct {
	db *badgerdb.DB
}

// Compile-time interface check.
var _ storage.ProfileStore = (*ProfileStore)(nil)

// Open opens (or creates) a store under dir. An empty dir keeps data in memory.
func Open(dir string) (*ProfileStore, error) {
	opts := badgerdb.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &ProfileStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}

// Get returns the latest profile for wallet. Returns ErrNotFound if none.
func (s *ProfileStore) Get(_ context.Context, wallet string) (p *domain.WalletProfile, err error) {
	defer observe("get", time.Now(), &err)

	err = s.db.View(func(txn *badgerdb.Txn) error {
		ptr, err := readPointer(txn, wallet)
		if err != nil {
			return err
		}
		p, err = readProfile(txn, ptr.Key)
		return err
	})
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Upsert appends p to history and moves the latest pointer unless it
// already references a newer computation.
func (s *ProfileStore) Upsert(_ context.Context, p *domain.WalletProfile) (err error) {
	defer observe("upsert", time.Now(), &err)

	if p == nil || p.WalletAddress == "" || p.RunID == "" {
		return storage.ErrInvalidInput
	}

	stored := p.Clone()
	stored.ComputedAt = stored.ComputedAt.UTC()
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	histKey := historyKey(p.WalletAddress, stored.ComputedAt, p.RunID)

	return s.db.Update(func(txn *badgerdb.Txn) error {
		runKey := []byte(runPrefix + p.RunID)
		if _, err := txn.Get(runKey); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("check run id: %w", err)
		}

		if err := txn.Set(runKey, []byte(p.WalletAddress)); err != nil {
			return fmt.Errorf("set run id: %w", err)
		}
		if err := txn.Set(histKey, data); err != nil {
			return fmt.Errorf("set history: %w", err)
		}

		current, err := readPointer(txn, p.WalletAddress)
		switch {
		case errors.Is(err, badgerdb.ErrKeyNotFound):
		case err != nil:
			return fmt.Errorf("read latest: %w", err)
		case current.ComputedAt.After(stored.ComputedAt):
			return nil
		}

		ptr, err := json.Marshal(latestPointer{Key: histKey, ComputedAt: stored.ComputedAt})
		if err != nil {
			return fmt.Errorf("marshal latest: %w", err)
		}
		return txn.Set([]byte(latestPrefix+p.WalletAddress), ptr)
	})
}

// Invalidate removes the latest pointer for wallet. History is kept.
func (s *ProfileStore) Invalidate(_ context.Context, wallet string) (err error) {
	defer observe("invalidate", time.Now(), &err)

	err = s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(latestPrefix + wallet))
	})
	if err != nil {
		return fmt.Errorf("invalidate profile: %w", err)
	}
	return nil
}

// History returns up to limit profiles for wallet, newest first.
func (s *ProfileStore) History(_ context.Context, wallet string, limit int) (out []*domain.WalletProfile, err error) {
	defer observe("history", time.Now(), &err)

	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	prefix := []byte(historyPrefix + wallet + "/")
	err = s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var p domain.WalletProfile
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			p.SourceTier = domain.TierDurable
			out = append(out, &p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("profile history: %w", err)
	}
	return out, nil
}

func historyKey(wallet string, computedAt time.Time, runID string) []byte {
	key := make([]byte, 0, len(historyPrefix)+len(wallet)+1+8+len(runID))
	key = append(key, historyPrefix...)
	key = append(key, wallet...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, uint64(computedAt.UnixNano()))
	return append(key, runID...)
}

func readPointer(txn *badgerdb.Txn, wallet string) (*latestPointer, error) {
	item, err := txn.Get([]byte(latestPrefix + wallet))
	if err != nil {
		return nil, err
	}
	var ptr latestPointer
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &ptr)
	}); err != nil {
		return nil, fmt.Errorf("decode latest pointer: %w", err)
	}
	return &ptr, nil
}

func readProfile(txn *badgerdb.Txn, key []byte) (*domain.WalletProfile, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	var p domain.WalletProfile
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &p)
	}); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	p.SourceTier = domain.TierDurable
	return &p, nil
}

func observe(op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	observability.RecordDBQuery("badger", op, time.Since(start), err)
}
