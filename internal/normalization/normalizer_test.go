package normalization

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/pricing"
)

const wallet = "Wa11et1111111111111111111111111111111111111"

func seq(records ...domain.RawRecord) iter.Seq2[domain.RawRecord, error] {
	return func(yield func(domain.RawRecord, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type staticResolver map[string]domain.TokenCategory

func (s staticResolver) Resolve(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	c, ok := s[mint]
	if !ok {
		return nil, errors.New("unknown mint")
	}
	return &domain.TokenMetadata{Mint: mint, Category: c.Ptr()}, nil
}

func newTestNormalizer() *Normalizer {
	prices := pricing.Static{
		domain.MintWSOL: dec("100"),
		domain.MintUSDC: dec("1"),
		"MemeMint":      dec("0.002"),
	}
	resolver := staticResolver{
		"MemeMint":      domain.CategoryMemecoin,
		domain.MintWSOL: domain.CategoryNative,
		domain.MintUSDC: domain.CategoryStablecoin,
	}
	return New(resolver, prices, zerolog.Nop())
}

func buyWithSOL(sig string, ts int64, mint string, tokens string, lamports int64) domain.RawRecord {
	return domain.RawRecord{
		Signature: sig,
		Timestamp: ts,
		Type:      "SWAP",
		Source:    "JUPITER",
		Fee:       5000,
		FeePayer:  wallet,
		NativeTransfers: []domain.NativeTransfer{
			{From: wallet, To: "pool", Lamports: lamports},
		},
		TokenTransfers: []domain.TokenTransfer{
			{Mint: mint, From: "pool", To: wallet, Amount: dec(tokens)},
		},
	}
}

func TestNormalize_BuyWithSOL(t *testing.T) {
	trades, err := newTestNormalizer().Normalize(context.Background(), wallet, seq(
		buyWithSOL("sig1", 1000, "MemeMint", "50000", 500_000_000),
	))
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, domain.DirectionBuy, tr.Direction)
	assert.Equal(t, "MemeMint", tr.TokenMint)
	assert.True(t, tr.AmountRaw.Equal(dec("50000")))
	require.NotNil(t, tr.AmountUSD)
	assert.True(t, tr.AmountUSD.Equal(dec("50")), "got %s", tr.AmountUSD)
	assert.True(t, tr.FeePaid.Equal(dec("0.000005")))
	require.NotNil(t, tr.TokenCategory)
	assert.Equal(t, domain.CategoryMemecoin, *tr.TokenCategory)
	assert.Equal(t, "JUPITER", tr.Venue)
}

func TestNormalize_SellForUSDC(t *testing.T) {
	rec := domain.RawRecord{
		Signature: "sig2",
		Timestamp: 2000,
		FeePayer:  wallet,
		Fee:       5000,
		TokenTransfers: []domain.TokenTransfer{
			{Mint: "MemeMint", From: wallet, To: "pool", Amount: dec("1000")},
			{Mint: domain.MintUSDC, From: "pool", To: wallet, Amount: dec("3.5")},
		},
	}

	trades, err := newTestNormalizer().Normalize(context.Background(), wallet, seq(rec))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.DirectionSell, trades[0].Direction)
	assert.Equal(t, "MemeMint", trades[0].TokenMint)
	require.NotNil(t, trades[0].AmountUSD)
	assert.True(t, trades[0].AmountUSD.Equal(dec("3.5")))
}

func TestNormalize_TokenToTokenSwap(t *testing.T) {
	rec := domain.RawRecord{
		Signature: "sig3",
		Timestamp: 3000,
		TokenTransfers: []domain.TokenTransfer{
			{Mint: "MemeMint", From: wallet, To: "pool", Amount: dec("1000")},
			{Mint: "OtherMint", From: "pool", To: wallet, Amount: dec("10")},
		},
	}

	trades, err := newTestNormalizer().Normalize(context.Background(), wallet, seq(rec))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.DirectionSwap, trades[0].Direction)
	assert.Equal(t, "OtherMint", trades[0].TokenMint)
	assert.Nil(t, trades[0].AmountUSD, "unpriced token must not become zero")
	assert.Nil(t, trades[0].TokenCategory, "unresolved category must stay nil")
	assert.True(t, trades[0].FeePaid.IsZero())
}

func TestNormalize_SOLTransfer(t *testing.T) {
	rec := domain.RawRecord{
		Signature: "sig4",
		Timestamp: 4000,
		NativeTransfers: []domain.NativeTransfer{
			{From: "friend", To: wallet, Lamports: 2_000_000_000},
		},
	}

	trades, err := newTestNormalizer().Normalize(context.Background(), wallet, seq(rec))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.DirectionTransfer, trades[0].Direction)
	assert.Equal(t, domain.MintWSOL, trades[0].TokenMint)
	assert.True(t, trades[0].AmountRaw.Equal(dec("2")))
	require.NotNil(t, trades[0].AmountUSD)
	assert.True(t, trades[0].AmountUSD.Equal(dec("200")))
}

func TestNormalize_DuplicateSignatureLastWriteWins(t *testing.T) {
	first := buyWithSOL("dup", 1000, "MemeMint", "100", 100_000_000)
	second := buyWithSOL("dup", 1000, "MemeMint", "200", 100_000_000)

	trades, err := newTestNormalizer().Normalize(context.Background(), wallet, seq(first, second))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].AmountRaw.Equal(dec("200")))
}

func TestNormalize_DropsFailedAndUnrelated(t *testing.T) {
	failed := buyWithSOL("failed", 1000, "MemeMint", "1", 1)
	failed.Failed = true
	unrelated := domain.RawRecord{
		Signature: "unrelated",
		Timestamp: 1000,
		NativeTransfers: []domain.NativeTransfer{
			{From: "a", To: "b", Lamports: 5},
		},
	}

	trades, err := newTestNormalizer().Normalize(context.Background(), wallet, seq(failed, unrelated))
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestNormalize_OrderedByTimestamp(t *testing.T) {
	trades, err := newTestNormalizer().Normalize(context.Background(), wallet, seq(
		buyWithSOL("c", 3000, "MemeMint", "1", 1000),
		buyWithSOL("a", 1000, "MemeMint", "1", 1000),
		buyWithSOL("b", 2000, "MemeMint", "1", 1000),
	))
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "a", trades[0].Signature)
	assert.Equal(t, "b", trades[1].Signature)
	assert.Equal(t, "c", trades[2].Signature)
}

func TestNormalize_MissingSOLPriceLeavesUSDNil(t *testing.T) {
	n := New(nil, pricing.Static{}, zerolog.Nop())
	trades, err := n.Normalize(context.Background(), wallet, seq(
		buyWithSOL("sig", 1000, "MemeMint", "10", 1_000_000_000),
	))
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.DirectionBuy, trades[0].Direction)
	assert.Nil(t, trades[0].AmountUSD)
	assert.Nil(t, trades[0].TokenCategory)
}

func TestNormalize_IteratorErrorAborts(t *testing.T) {
	boom := errors.New("page fetch failed")
	records := func(yield func(domain.RawRecord, error) bool) {
		if !yield(buyWithSOL("a", 1, "MemeMint", "1", 1), nil) {
			return
		}
		yield(domain.RawRecord{}, boom)
	}

	_, err := newTestNormalizer().Normalize(context.Background(), wallet, records)
	assert.ErrorIs(t, err, boom)
}
