package tokenmeta

import (
	"strings"

	"wallet-profiler/internal/domain"
)

type knownMint struct {
	name     string
	symbol   string
	decimals int
	category domain.TokenCategory
}

func (k knownMint) apply(meta *domain.TokenMetadata) {
	name, symbol := k.name, k.symbol
	meta.Name = &name
	meta.Symbol = &symbol
	meta.Decimals = k.decimals
	meta.Category = k.category.Ptr()
}

// knownMints short-circuits RPC for the mints that dominate wallet flow.
var knownMints = map[string]knownMint{
	domain.MintWSOL: {"Wrapped SOL", "SOL", 9, domain.CategoryNative},
	domain.MintUSDC: {"USD Coin", "USDC", 6, domain.CategoryStablecoin},
	domain.MintUSDT: {"USDT", "USDT", 6, domain.CategoryStablecoin},
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  {"Marinade staked SOL", "mSOL", 9, domain.CategoryLiquidStaking},
	"J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn": {"Jito Staked SOL", "JitoSOL", 9, domain.CategoryLiquidStaking},
	"bSo13r4TkiE4KumL71LsHTPpL2euBYLFx6h9HP3piy1":  {"BlazeStake Staked SOL", "bSOL", 9, domain.CategoryLiquidStaking},
	"7dHbWXmci3dT8UFYWYZweBLXgycu7Y3iL6trKn1Y7ARj": {"Lido Staked SOL", "stSOL", 9, domain.CategoryLiquidStaking},
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  {"Jupiter", "JUP", 6, domain.CategoryDefi},
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": {"Raydium", "RAY", 6, domain.CategoryDefi},
	"orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE":  {"Orca", "ORCA", 6, domain.CategoryDefi},
	"HZ1JovNiVvGrGNiiYvEozEVgZ58xaU3RKwX8eACQBCt3": {"Pyth Network", "PYTH", 6, domain.CategoryDefi},
	"3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh": {"Wrapped BTC (Wormhole)", "WBTC", 8, domain.CategoryBluechip},
	"7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs": {"Ether (Wormhole)", "ETH", 8, domain.CategoryBluechip},
	"cbbtcf3aa214zXHbiAZQwf4122FBYbraNdFqgw4iMij":  {"Coinbase Wrapped BTC", "cbBTC", 8, domain.CategoryBluechip},
}

var stableSymbols = map[string]bool{
	"USDC": true, "USDT": true, "PYUSD": true, "USDS": true, "UXD": true, "USDH": true, "DAI": true,
}

// Categorize assigns a category from metadata alone. Returns nil when the
// metadata is too thin to decide.
func Categorize(meta *domain.TokenMetadata) *domain.TokenCategory {
	if meta == nil {
		return nil
	}
	if meta.Category != nil {
		c := *meta.Category
		return &c
	}
	if k, ok := knownMints[meta.Mint]; ok {
		return k.category.Ptr()
	}
	if meta.Symbol == nil {
		return nil
	}

	symbol := strings.ToUpper(*meta.Symbol)
	switch {
	case stableSymbols[symbol]:
		return domain.CategoryStablecoin.Ptr()
	case strings.HasSuffix(symbol, "SOL") && len(symbol) > 3:
		return domain.CategoryLiquidStaking.Ptr()
	}

	// Pump-style launches: huge supply, few decimals.
	if meta.Supply != nil && *meta.Supply >= 1e8 && meta.Decimals <= 6 {
		return domain.CategoryMemecoin.Ptr()
	}
	return nil
}
