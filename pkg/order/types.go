package order

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StrategyID names the execution strategy a maker order is bound to.
// The settlement engine only accepts IDs present in the strategy registry.
type StrategyID string

// MakerOrder is a signed, off-chain intent to buy (bid) or sell (ask) an
// asset under fixed terms. It is immutable once signed; its identity is the
// EIP-712 fingerprint computed by Codec.Hash. The engine never stores maker
// orders, only the per-nonce consumption flag.
type MakerOrder struct {
	Signer     common.Address // account that signed the order
	IsAsk      bool           // true = sell the asset, false = buy
	Collection common.Address // asset collection the order is about
	TokenID    *big.Int
	Amount     *big.Int // quantity (1 for unique assets)
	Price      *big.Int // total price in currency base units
	Currency   common.Address
	StartTime  int64 // order valid from (unix seconds, inclusive)
	EndTime    int64 // order valid until (unix seconds, exclusive)
	Nonce      uint64
	Strategy   StrategyID
	Params     []byte // strategy-specific parameters, opaque to the engine
}

// TakerOrder is the counter-intent submitted with the matching call.
// It is never persisted. In-process callers authorize it by being the caller;
// remote callers must present a taker signature over Codec.HashTaker, which
// binds the taker order to one maker fingerprint.
type TakerOrder struct {
	Taker   common.Address
	IsAsk   bool
	TokenID *big.Int
	Price   *big.Int
	Amount  *big.Int
	Params  []byte
}

// SigScheme selects the verification path for a maker signature.
type SigScheme uint8

const (
	// SchemeECDSA is a direct secp256k1 signature by the order signer.
	SchemeECDSA SigScheme = 1
	// SchemeDelegated is a BLS signature by a session key the signer
	// registered beforehand.
	SchemeDelegated SigScheme = 2
)

// Signature bundles the raw signature bytes with the scheme they belong to.
type Signature struct {
	Scheme SigScheme
	Bytes  []byte
}

// Cancel is the typed payload an account signs to invalidate nonces without
// a trade. With All set, MinNonce raises the account's nonce floor;
// otherwise Nonce marks a single order consumed.
type Cancel struct {
	Account  common.Address
	All      bool
	Nonce    uint64
	MinNonce uint64
}
