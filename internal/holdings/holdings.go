// Package holdings snapshots a wallet's balances and values them in USD.
package holdings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/pricing"
	"wallet-profiler/internal/solana"
	"wallet-profiler/internal/tokenmeta"
)

// Provider returns the current holdings of a wallet.
type Provider interface {
	Holdings(ctx context.Context, wallet string) (*domain.Holdings, error)
}

var _ Provider = (*RPCProvider)(nil)

// RPCProvider reads balances over Solana RPC. Balance failures are errors;
// missing prices or categories only leave the position unvalued or unresolved.
type RPCProvider struct {
	rpc      solana.RPCClient
	prices   pricing.Source
	resolver tokenmeta.Resolver
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRPCProvider creates an RPC-backed holdings provider.
func NewRPCProvider(rpc solana.RPCClient, prices pricing.Source, resolver tokenmeta.Resolver, logger zerolog.Logger) *RPCProvider {
	return &RPCProvider{
		rpc:      rpc,
		prices:   prices,
		resolver: resolver,
		logger:   logger.With().Str("component", "holdings").Logger(),
		now:      time.Now,
	}
}

// Holdings fetches native and SPL balances across both token programs.
func (p *RPCProvider) Holdings(ctx context.Context, wallet string) (*domain.Holdings, error) {
	lamports, err := p.rpc.GetBalance(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}

	h := &domain.Holdings{
		Wallet:     wallet,
		SOLBalance: domain.LamportsToSOL(int64(lamports)),
		FetchedAt:  p.now(),
	}

	amounts := make(map[string]decimal.Decimal)
	if h.SOLBalance.IsPositive() {
		amounts[domain.MintWSOL] = h.SOLBalance
	}

	for _, program := range []string{solana.TokenProgramID, solana.Token2022ProgramID} {
		accounts, err := p.rpc.GetTokenAccountsByOwner(ctx, wallet, program)
		if err != nil {
			return nil, fmt.Errorf("get token accounts (%s): %w", program, err)
		}
		for _, a := range accounts {
			if !a.Amount.IsPositive() {
				continue
			}
			amounts[a.Mint] = amounts[a.Mint].Add(a.Amount)
		}
	}

	mints := make([]string, 0, len(amounts))
	for m := range amounts {
		mints = append(mints, m)
	}
	sort.Strings(mints)

	for _, mint := range mints {
		pos := domain.Position{Mint: mint, Amount: amounts[mint]}
		if p.resolver != nil {
			pos.Category = tokenmeta.CategoryOf(ctx, p.resolver, mint)
		}
		if p.prices != nil {
			price, err := p.prices.PriceUSD(ctx, mint)
			switch {
			case err == nil:
				v := pos.Amount.Mul(price)
				pos.ValueUSD = &v
			case errors.Is(err, pricing.ErrNoPrice):
			default:
				p.logger.Debug().Err(err).Str("mint", mint).Msg("price lookup failed")
			}
		}
		h.Positions = append(h.Positions, pos)
	}

	return h, nil
}

// Static serves a fixed snapshot per wallet, used by tests and offline runs.
type Static struct {
	ByWallet map[string]*domain.Holdings
	Err      error
}

// Holdings returns the stored snapshot, or an empty one stamped with the wallet.
func (s *Static) Holdings(_ context.Context, wallet string) (*domain.Holdings, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if h, ok := s.ByWallet[wallet]; ok {
		c := *h
		c.Positions = append([]domain.Position(nil), h.Positions...)
		return &c, nil
	}
	return &domain.Holdings{Wallet: wallet, SOLBalance: decimal.Zero}, nil
}
