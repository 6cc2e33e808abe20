package domain

import "github.com/shopspring/decimal"

// Direction classifies a trade relative to the analyzed wallet.
type Direction string

const (
	DirectionBuy      Direction = "buy"
	DirectionSell     Direction = "sell"
	DirectionSwap     Direction = "swap"
	DirectionTransfer Direction = "transfer"
)

// String returns the string representation of Direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is a known value.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionBuy, DirectionSell, DirectionSwap, DirectionTransfer:
		return true
	}
	return false
}

// Trade is one normalized, economically meaningful event for a wallet.
// Corresponds to wallet_trades table in ClickHouse.
type Trade struct {
	Signature     string           // transaction signature, unique per wallet ledger
	Wallet        string           // analyzed wallet address
	Timestamp     int64            // block time, Unix milliseconds
	Slot          int64            // Solana slot number
	Direction     Direction        // buy | sell | swap | transfer
	TokenMint     string           // primary token of the event
	TokenCategory *TokenCategory   // nil when the category could not be resolved
	AmountRaw     decimal.Decimal  // token amount in UI units
	AmountUSD     *decimal.Decimal // nil when no price was available
	FeePaid       decimal.Decimal  // SOL paid as network fee by the wallet
	Venue         string           // DEX or program reported by the provider
}

// UnitPriceUSD returns the implied USD price per token, or nil when unknown.
func (t *Trade) UnitPriceUSD() *decimal.Decimal {
	if t.AmountUSD == nil || t.AmountRaw.IsZero() {
		return nil
	}
	p := t.AmountUSD.Div(t.AmountRaw)
	return &p
}
