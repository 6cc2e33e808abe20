package solana

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"wallet-profiler/internal/domain"
)

// PublicKeyLength is the byte length of a Solana public key.
const PublicKeyLength = 32

var errNoViableBump = errors.New("unable to find a viable program address bump")

// DecodeAddress decodes a base58 public key.
func DecodeAddress(addr string) ([]byte, error) {
	if addr == "" {
		return nil, fmt.Errorf("%w: empty", domain.ErrInvalidAddress)
	}
	b, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", domain.ErrInvalidAddress, addr, err)
	}
	if len(b) != PublicKeyLength {
		return nil, fmt.Errorf("%w: %q decodes to %d bytes", domain.ErrInvalidAddress, addr, len(b))
	}
	return b, nil
}

// ValidateAddress returns domain.ErrInvalidAddress unless addr is a base58 32-byte key.
func ValidateAddress(addr string) error {
	_, err := DecodeAddress(addr)
	return err
}

// FindProgramAddress derives a Program Derived Address.
// Bumps are tried from 255 downwards and the first off-curve hash wins.
func FindProgramAddress(seeds [][]byte, programID []byte) (string, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, seed := range seeds {
			h.Write(seed)
		}
		h.Write([]byte{byte(bump)})
		h.Write(programID)
		h.Write([]byte("ProgramDerivedAddress"))
		sum := h.Sum(nil)

		if !IsOnCurve(sum) {
			return base58.Encode(sum), uint8(bump), nil
		}
	}
	return "", 0, errNoViableBump
}

// MetadataPDA derives the Metaplex metadata account for mint.
// Seeds: ["metadata", metaplex_program_id, mint]
func MetadataPDA(mint string) (string, error) {
	mintBytes, err := DecodeAddress(mint)
	if err != nil {
		return "", err
	}
	programBytes, err := base58.Decode(MetaplexProgramID)
	if err != nil {
		return "", fmt.Errorf("decode metaplex program id: %w", err)
	}

	pda, _, err := FindProgramAddress([][]byte{[]byte("metadata"), programBytes, mintBytes}, programBytes)
	return pda, err
}

// IsOnCurve reports whether b is a valid compressed ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
