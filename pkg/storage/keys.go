package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based so per-account and per-collection state
// can be range-scanned, with zero-padded numeric components for
// lexicographic ordering.
//
//   floor:<address>                → min nonce (8-byte big-endian)
//   used:<address>:<nonce>         → consumed flag (single 0x01 byte)
//   royalty:<collection>           → RoyaltyRecord (JSON)
//   settle:<timestamp>:<orderHash> → SettlementRecord (JSON)

const (
	prefixFloor      = "floor:"
	prefixUsed       = "used:"
	prefixRoyalty    = "royalty:"
	prefixSettlement = "settle:"
)

func floorKey(addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixFloor, addr.Hex()))
}

// usedNonceKey zero-pads the nonce (20 digits) so range scans over an
// account's consumed nonces come back in order.
func usedNonceKey(addr common.Address, nonce uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixUsed, addr.Hex(), nonce))
}

func royaltyKey(collection common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixRoyalty, collection.Hex()))
}

func settlementKey(timestamp int64, orderHash common.Hash) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixSettlement, timestamp, orderHash.Hex()))
}

func settlementPrefix() []byte {
	return []byte(prefixSettlement)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
