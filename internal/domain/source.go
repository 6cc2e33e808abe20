package domain

import "github.com/shopspring/decimal"

// RawRecord is a provider transaction in the enhanced-transactions shape.
// Only the fields listed here are read; unknown provider fields are dropped
// at the decoding boundary.
type RawRecord struct {
	Signature       string           // transaction signature
	Timestamp       int64            // block time, Unix milliseconds
	Slot            int64            // Solana slot number
	Type            string           // provider classification, e.g. SWAP, TRANSFER
	Source          string           // program or DEX reported by the provider
	Fee             int64            // network fee in lamports
	FeePayer        string           // fee payer address
	Failed          bool             // transaction error reported
	NativeTransfers []NativeTransfer // SOL movements
	TokenTransfers  []TokenTransfer  // SPL token movements
}

// NativeTransfer is a SOL movement inside a RawRecord.
type NativeTransfer struct {
	From     string // sender address
	To       string // receiver address
	Lamports int64  // amount in lamports
}

// TokenTransfer is an SPL token movement inside a RawRecord.
type TokenTransfer struct {
	Mint   string          // token mint address
	From   string          // sender owner address
	To     string          // receiver owner address
	Amount decimal.Decimal // amount in UI units
}

// Well-known mints.
const (
	MintWSOL = "So11111111111111111111111111111111111111112"
	MintUSDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	MintUSDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// LamportsToSOL converts lamports to a SOL decimal.
func LamportsToSOL(lamports int64) decimal.Decimal {
	return decimal.New(lamports, -9)
}
