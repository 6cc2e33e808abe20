package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holdings is a point-in-time snapshot of a wallet's balances.
type Holdings struct {
	Wallet     string          // wallet address
	SOLBalance decimal.Decimal // native balance in SOL
	Positions  []Position      // SPL token positions, native SOL included as WSOL
	FetchedAt  time.Time       // snapshot time
}

// Position is one token balance inside Holdings.
type Position struct {
	Mint     string           // token mint address
	Amount   decimal.Decimal  // balance in UI units
	ValueUSD *decimal.Decimal // nil when no price was available
	Category *TokenCategory   // nil when unresolved
}

// TotalValueUSD sums the priced positions.
func (h *Holdings) TotalValueUSD() decimal.Decimal {
	total := decimal.Zero
	for _, p := range h.Positions {
		if p.ValueUSD != nil {
			total = total.Add(*p.ValueUSD)
		}
	}
	return total
}
