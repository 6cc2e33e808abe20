// Package source pages raw transaction records for a wallet from an upstream provider.
package source

import (
	"context"
	"fmt"
	"iter"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/retry"
)

// DefaultPageSize is the provider page size used when none is configured.
const DefaultPageSize = 100

// PageOptions selects one page of history, newest first.
type PageOptions struct {
	Before string // fetch records older than this signature
	Until  string // stop at this signature (exclusive)
	Limit  int    // maximum records in the page
}

// Page is one provider response.
type Page struct {
	Records []domain.RawRecord
	// Next is the cursor for the following page; empty when history is exhausted.
	Next string
}

// TransactionSource fetches pages of raw records.
// Implementations classify failures as domain.ErrRateLimited or
// domain.ErrUpstreamUnavailable and perform a single attempt per call.
type TransactionSource interface {
	FetchPage(ctx context.Context, address string, opts PageOptions) (Page, error)
}

// FetchOptions bounds a full fetch.
type FetchOptions struct {
	Until      string       // newest signature already known; history stops there
	PageSize   int          // records per page
	MaxRecords int          // stop after this many records, 0 means unbounded
	Retry      retry.Policy // applied to each page
}

// Fetch lazily pages records for address, newest first.
// The first error ends the sequence.
func Fetch(ctx context.Context, src TransactionSource, address string, opts FetchOptions) iter.Seq2[domain.RawRecord, error] {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return func(yield func(domain.RawRecord, error) bool) {
		var (
			cursor  string
			emitted int
		)
		for {
			var page Page
			err := opts.Retry.Do(ctx, func(ctx context.Context) error {
				var err error
				page, err = src.FetchPage(ctx, address, PageOptions{
					Before: cursor,
					Until:  opts.Until,
					Limit:  pageSize,
				})
				return err
			})
			if err != nil {
				yield(domain.RawRecord{}, fmt.Errorf("fetch page for %s: %w", address, err))
				return
			}

			for _, rec := range page.Records {
				if opts.Until != "" && rec.Signature == opts.Until {
					return
				}
				if !yield(rec, nil) {
					return
				}
				emitted++
				if opts.MaxRecords > 0 && emitted >= opts.MaxRecords {
					return
				}
			}

			if page.Next == "" || len(page.Records) == 0 || page.Next == cursor {
				return
			}
			cursor = page.Next
		}
	}
}
