package tokenmeta

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/solana"
	"wallet-profiler/internal/solana/stub"
)

func mintData(supply uint64, decimals byte) string {
	b := make([]byte, 82)
	binary.LittleEndian.PutUint64(b[36:44], supply)
	b[44] = decimals
	b[45] = 1
	return base64.StdEncoding.EncodeToString(b)
}

func borsh(s string) []byte {
	b := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(b, uint32(len(s)))
	copy(b[4:], s)
	return b
}

func metaplexData(name, symbol string) string {
	var buf bytes.Buffer
	buf.WriteByte(4)
	buf.Write(make([]byte, 64))
	buf.Write(borsh(name + "\x00\x00"))
	buf.Write(borsh(symbol))
	buf.Write(borsh("https://example.invalid/meta.json"))
	buf.Write(make([]byte, 32))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func testMint(b byte) string {
	return base58.Encode(bytes.Repeat([]byte{b}, 32))
}

func TestRPCResolver_MintAndMetaplex(t *testing.T) {
	rpc := stub.NewRPCClient()
	mint := testMint(7)
	pda, err := solana.MetadataPDA(mint)
	require.NoError(t, err)

	rpc.Accounts[mint] = &solana.AccountInfo{Data: mintData(1_000_000_000_000_000, 6)}
	rpc.Accounts[pda] = &solana.AccountInfo{Data: metaplexData("Doge Wif Laser", "DWL")}

	meta, err := NewRPCResolver(rpc).Resolve(context.Background(), mint)
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.Equal(t, 6, meta.Decimals)
	require.NotNil(t, meta.Supply)
	assert.InDelta(t, 1e9, *meta.Supply, 0.001)
	require.NotNil(t, meta.Name)
	assert.Equal(t, "Doge Wif Laser", *meta.Name)
	require.NotNil(t, meta.Symbol)
	assert.Equal(t, "DWL", *meta.Symbol)
	require.NotNil(t, meta.Category)
	assert.Equal(t, domain.CategoryMemecoin, *meta.Category)
}

func TestRPCResolver_KnownMintSkipsRPC(t *testing.T) {
	rpc := stub.NewRPCClient()
	meta, err := NewRPCResolver(rpc).Resolve(context.Background(), domain.MintUSDC)
	require.NoError(t, err)
	require.NotNil(t, meta.Category)
	assert.Equal(t, domain.CategoryStablecoin, *meta.Category)
	assert.Equal(t, int64(0), rpc.Calls.Load())
}

func TestRPCResolver_UnknownMint(t *testing.T) {
	meta, err := NewRPCResolver(stub.NewRPCClient()).Resolve(context.Background(), testMint(9))
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestRPCResolver_ShortMintData(t *testing.T) {
	rpc := stub.NewRPCClient()
	mint := testMint(3)
	rpc.Accounts[mint] = &solana.AccountInfo{Data: base64.StdEncoding.EncodeToString(make([]byte, 10))}

	_, err := NewRPCResolver(rpc).Resolve(context.Background(), mint)
	assert.Error(t, err)
}

func TestCategorize(t *testing.T) {
	str := func(s string) *string { return &s }
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		meta *domain.TokenMetadata
		want *domain.TokenCategory
	}{
		{"nil", nil, nil},
		{"known mint", &domain.TokenMetadata{Mint: domain.MintWSOL}, domain.CategoryNative.Ptr()},
		{"stable symbol", &domain.TokenMetadata{Mint: "x", Symbol: str("pyusd")}, domain.CategoryStablecoin.Ptr()},
		{"lst symbol", &domain.TokenMetadata{Mint: "x", Symbol: str("INF-SOL")}, domain.CategoryLiquidStaking.Ptr()},
		{"meme supply", &domain.TokenMetadata{Mint: "x", Symbol: str("BONK"), Supply: f(9e13), Decimals: 5}, domain.CategoryMemecoin.Ptr()},
		{"no symbol", &domain.TokenMetadata{Mint: "x", Supply: f(9e13)}, nil},
		{"undecided", &domain.TokenMetadata{Mint: "x", Symbol: str("ABC"), Supply: f(1000), Decimals: 9}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.meta))
		})
	}
}

type countingResolver struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (r *countingResolver) Resolve(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	r.calls.Add(1)
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &domain.TokenMetadata{Mint: mint, Category: domain.CategoryDefi.Ptr()}, nil
}

func TestCachedResolver_Memoizes(t *testing.T) {
	next := &countingResolver{}
	r := NewCachedResolver(next, time.Hour, time.Second, zerolog.Nop())

	for i := 0; i < 3; i++ {
		meta, err := r.Resolve(context.Background(), "mintA")
		require.NoError(t, err)
		require.NotNil(t, meta)
	}
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedResolver_Expiry(t *testing.T) {
	next := &countingResolver{}
	r := NewCachedResolver(next, time.Minute, time.Second, zerolog.Nop())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	_, _ = r.Resolve(context.Background(), "mintA")
	now = now.Add(2 * time.Minute)
	_, _ = r.Resolve(context.Background(), "mintA")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedResolver_FailureYieldsNil(t *testing.T) {
	next := &countingResolver{err: errors.New("rpc down")}
	r := NewCachedResolver(next, time.Hour, time.Second, zerolog.Nop())

	meta, err := r.Resolve(context.Background(), "mintA")
	assert.NoError(t, err)
	assert.Nil(t, meta)

	// failures are not cached
	_, _ = r.Resolve(context.Background(), "mintA")
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestCachedResolver_Timeout(t *testing.T) {
	next := &countingResolver{delay: time.Second}
	r := NewCachedResolver(next, time.Hour, 10*time.Millisecond, zerolog.Nop())

	start := time.Now()
	meta, err := r.Resolve(context.Background(), "mintA")
	assert.NoError(t, err)
	assert.Nil(t, meta)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Nil(t, CategoryOf(context.Background(), r, "mintA"))
}
