package domain

// TokenCategory is the coarse classification used for exposure weighting.
type TokenCategory string

const (
	CategoryNative        TokenCategory = "native"
	CategoryStablecoin    TokenCategory = "stablecoin"
	CategoryLiquidStaking TokenCategory = "liquid_staking"
	CategoryBluechip      TokenCategory = "bluechip"
	CategoryDefi          TokenCategory = "defi"
	CategoryMemecoin      TokenCategory = "memecoin"
)

// String returns the string representation of TokenCategory.
func (c TokenCategory) String() string {
	return string(c)
}

// Ptr returns a pointer to a copy of c.
func (c TokenCategory) Ptr() *TokenCategory {
	return &c
}

// TokenMetadata represents token metadata resolved from on-chain accounts.
type TokenMetadata struct {
	Mint      string         // token mint address
	Name      *string        // token name (nullable)
	Symbol    *string        // token symbol (nullable)
	Decimals  int            // token decimals
	Supply    *float64       // total supply in UI units (nullable)
	Category  *TokenCategory // nil when unclassified
	FetchedAt int64          // when metadata was fetched (ms)
}
