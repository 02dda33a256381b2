package crypto

import (
	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the legacy (pre-NIST) keccak digest used throughout
// Ethereum tooling.
func Keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
