// Package stub provides an in-memory transaction source for tests.
package stub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/source"
)

var _ source.TransactionSource = (*Source)(nil)

// Source serves records from memory, newest first, honoring Before/Until/Limit.
type Source struct {
	mu      sync.RWMutex
	records map[string][]domain.RawRecord // keyed by address, newest first

	// Err, when set, is returned by every call.
	Err error
	// Delay is applied before every response.
	Delay time.Duration
	// Gate, when non-nil, blocks each call until it is closed or ctx is done.
	Gate chan struct{}

	calls atomic.Int64
}

// NewSource creates a new stub source.
func NewSource() *Source {
	return &Source{records: make(map[string][]domain.RawRecord)}
}

// SetRecords replaces the history of address. Records must be newest first.
func (s *Source) SetRecords(address string, records []domain.RawRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[address] = append([]domain.RawRecord(nil), records...)
}

// Calls returns how many pages were requested.
func (s *Source) Calls() int64 {
	return s.calls.Load()
}

// FetchPage returns one page of stored records.
func (s *Source) FetchPage(ctx context.Context, address string, opts source.PageOptions) (source.Page, error) {
	s.calls.Add(1)

	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return source.Page{}, ctx.Err()
		}
	}
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return source.Page{}, ctx.Err()
		}
	}
	if s.Err != nil {
		return source.Page{}, s.Err
	}

	s.mu.RLock()
	all := s.records[address]
	s.mu.RUnlock()

	start := 0
	if opts.Before != "" {
		start = len(all)
		for i, r := range all {
			if r.Signature == opts.Before {
				start = i + 1
				break
			}
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = source.DefaultPageSize
	}

	var page source.Page
	for i := start; i < len(all) && len(page.Records) < limit; i++ {
		if opts.Until != "" && all[i].Signature == opts.Until {
			return page, nil
		}
		page.Records = append(page.Records, all[i])
	}
	if len(page.Records) == limit && start+limit < len(all) {
		page.Next = page.Records[len(page.Records)-1].Signature
	}
	return page, nil
}
