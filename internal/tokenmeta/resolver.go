// Package tokenmeta resolves token metadata and assigns exposure categories.
package tokenmeta

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/solana"
)

// Resolver returns metadata for a mint. A nil result with nil error means
// the mint is unknown.
type Resolver interface {
	Resolve(ctx context.Context, mint string) (*domain.TokenMetadata, error)
}

// AccountFetcher is the subset of solana.RPCClient the resolver needs.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
}

var _ Resolver = (*RPCResolver)(nil)

// RPCResolver reads the SPL mint account and the Metaplex metadata account.
type RPCResolver struct {
	rpc AccountFetcher
	now func() time.Time
}

// NewRPCResolver creates a resolver backed by Solana RPC.
func NewRPCResolver(rpc AccountFetcher) *RPCResolver {
	return &RPCResolver{rpc: rpc, now: time.Now}
}

// Resolve fetches mint decimals and supply, then name and symbol, then categorizes.
func (r *RPCResolver) Resolve(ctx context.Context, mint string) (*domain.TokenMetadata, error) {
	meta := &domain.TokenMetadata{
		Mint:      mint,
		FetchedAt: r.now().UnixMilli(),
	}

	if known, ok := knownMints[mint]; ok {
		known.apply(meta)
		return meta, nil
	}

	mintInfo, err := r.rpc.GetAccountInfo(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("get mint account info: %w", err)
	}
	if mintInfo == nil {
		return nil, nil
	}

	if err := parseMintData(mintInfo.Data, meta); err != nil {
		return nil, err
	}

	if pda, err := solana.MetadataPDA(mint); err == nil {
		metaInfo, err := r.rpc.GetAccountInfo(ctx, pda)
		if err == nil && metaInfo != nil {
			parseMetaplexData(metaInfo.Data, meta)
		}
	}

	meta.Category = Categorize(meta)
	return meta, nil
}

// parseMintData parses SPL Token Mint account data.
// SPL Token Mint layout (82 bytes):
// - mintAuthority: Option<Pubkey> (36 bytes: 4 + 32)
// - supply: u64 (8 bytes)
// - decimals: u8 (1 byte)
// - isInitialized: bool (1 byte)
// - freezeAuthority: Option<Pubkey> (36 bytes: 4 + 32)
func parseMintData(data string, meta *domain.TokenMetadata) error {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode mint data: %w", err)
	}
	if len(decoded) < 82 {
		return fmt.Errorf("mint data too short: %d", len(decoded))
	}

	supply := binary.LittleEndian.Uint64(decoded[36:44])
	meta.Decimals = int(decoded[44])

	supplyUI := float64(supply) / math.Pow(10, float64(meta.Decimals))
	meta.Supply = &supplyUI
	return nil
}

// parseMetaplexData parses the leading fields of a Metaplex metadata account.
// Layout: key u8 (4 = MetadataV1), updateAuthority (32), mint (32),
// then borsh strings name and symbol.
func parseMetaplexData(data string, meta *domain.TokenMetadata) {
	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil || len(decoded) < 69 || decoded[0] != 4 {
		return
	}

	offset := 65
	name, offset, ok := readBorshString(decoded, offset, 100)
	if !ok {
		return
	}
	if name != "" {
		meta.Name = &name
	}

	symbol, _, ok := readBorshString(decoded, offset, 20)
	if ok && symbol != "" {
		meta.Symbol = &symbol
	}
}

func readBorshString(b []byte, offset, maxLen int) (string, int, bool) {
	if offset+4 > len(b) {
		return "", offset, false
	}
	n := int(binary.LittleEndian.Uint32(b[offset:]))
	offset += 4
	if n > maxLen || offset+n > len(b) {
		return "", offset, false
	}
	s := strings.TrimRight(string(b[offset:offset+n]), "\x00")
	return strings.TrimSpace(s), offset + n, true
}
