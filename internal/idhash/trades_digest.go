// Package idhash computes deterministic identifiers for profile inputs.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"wallet-profiler/internal/domain"
)

// TradesDigest computes a deterministic digest of the inputs a profile was
// scored from using SHA256.
// Formula: SHA256(wallet|model_version|sig_1|...|sig_n) over trades in
// ledger order. Returns hex-encoded hash (64 characters).
//
// trades must already be in ledger order; two profiles with equal digests
// were scored from the same trade window by the same model.
func TradesDigest(wallet, modelVersion string, trades []domain.Trade) string {
	var b strings.Builder
	b.WriteString(wallet)
	b.WriteByte('|')
	b.WriteString(modelVersion)
	for i := range trades {
		b.WriteByte('|')
		b.WriteString(trades[i].Signature)
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}
