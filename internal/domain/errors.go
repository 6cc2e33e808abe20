package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidAddress indicates the wallet address is not a valid base58 public key.
var ErrInvalidAddress = errors.New("invalid wallet address")

// ErrUpstreamUnavailable indicates the transaction source could not serve the request,
// either outright or after rate-limit retries were exhausted.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrRateLimited indicates the upstream asked the caller to slow down.
// Retried with backoff; surfaced to callers only as ErrUpstreamUnavailable.
var ErrRateLimited = errors.New("rate limited")

// ErrComputeFailed indicates a required input or the scoring itself failed.
var ErrComputeFailed = errors.New("profile compute failed")

// ErrCacheUnavailable indicates a cache tier could not be reached.
// Callers treat it as a miss.
var ErrCacheUnavailable = errors.New("cache unavailable")

// ErrInsufficientInput indicates a required input was missing.
var ErrInsufficientInput = errors.New("insufficient input")

// ComputeError is returned when the fresh compute path fails at a given stage.
type ComputeError struct {
	Stage  string // fetch | normalize | ledger | holdings | score | persist
	Wallet string
	Err    error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("compute %s for %s: %v", e.Stage, e.Wallet, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}

// Is makes every ComputeError match ErrComputeFailed.
func (e *ComputeError) Is(target error) bool {
	return target == ErrComputeFailed
}
