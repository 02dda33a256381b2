package order

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openloot/exchange/pkg/crypto"
)

// ErrInvalidSignature covers every signature failure mode: malformed bytes,
// wrong recovered signer, unknown scheme, missing session key. Callers must
// treat it as fatal for the whole settlement call.
var ErrInvalidSignature = errors.New("invalid signature")

// Verifier checks that an order fingerprint was authorized by the claimed
// signer. Two schemes: direct secp256k1 recovery, and BLS session keys the
// account registered beforehand (scheme v2).
type Verifier struct {
	codec *Codec

	mu        sync.RWMutex
	delegates map[common.Address]*crypto.BLSPubKey
}

func NewVerifier(codec *Codec) *Verifier {
	return &Verifier{
		codec:     codec,
		delegates: make(map[common.Address]*crypto.BLSPubKey),
	}
}

// RegisterDelegate binds a BLS session key to an account. Subsequent orders
// from that account may carry SchemeDelegated signatures made with it.
func (v *Verifier) RegisterDelegate(account common.Address, pk *crypto.BLSPubKey) error {
	if pk == nil {
		return fmt.Errorf("nil delegate key for %s", account.Hex())
	}
	v.mu.Lock()
	v.delegates[account] = pk
	v.mu.Unlock()
	return nil
}

// RevokeDelegate removes an account's session key. Orders signed with it
// stop verifying immediately.
func (v *Verifier) RevokeDelegate(account common.Address) {
	v.mu.Lock()
	delete(v.delegates, account)
	v.mu.Unlock()
}

// VerifyOrder hashes the maker order and checks the signature under the
// scheme the signature declares. Returns the fingerprint on success so the
// caller hashes exactly once per settlement.
func (v *Verifier) VerifyOrder(o *MakerOrder, sig Signature) (common.Hash, error) {
	hash, err := v.codec.Hash(o)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash order: %w", err)
	}

	switch sig.Scheme {
	case SchemeECDSA:
		if !crypto.VerifySignature(o.Signer, hash.Bytes(), sig.Bytes) {
			return common.Hash{}, ErrInvalidSignature
		}
	case SchemeDelegated:
		v.mu.RLock()
		pk := v.delegates[o.Signer]
		v.mu.RUnlock()
		if !crypto.VerifyBLS(pk, sig.Bytes, hash.Bytes()) {
			return common.Hash{}, ErrInvalidSignature
		}
	default:
		return common.Hash{}, ErrInvalidSignature
	}

	return hash, nil
}

// VerifyTaker checks that the taker order was signed by the taker it names,
// bound to one specific maker fingerprint. Taker authorization only supports
// the direct ECDSA scheme: the taker is the calling party, not a delegating
// account.
func (v *Verifier) VerifyTaker(t *TakerOrder, makerHash common.Hash, sigBytes []byte) error {
	hash, err := v.codec.HashTaker(t, makerHash)
	if err != nil {
		return fmt.Errorf("failed to hash taker order: %w", err)
	}
	if !crypto.VerifySignature(t.Taker, hash.Bytes(), sigBytes) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyBid checks that an auction bid was signed by the bidder it names,
// bound to the maker order being bid on. ECDSA only, same rationale as
// VerifyTaker.
func (v *Verifier) VerifyBid(bidder common.Address, amount *big.Int, makerHash common.Hash, sigBytes []byte) error {
	hash, err := v.codec.HashBid(bidder, amount, makerHash)
	if err != nil {
		return fmt.Errorf("failed to hash bid: %w", err)
	}
	if !crypto.VerifySignature(bidder, hash.Bytes(), sigBytes) {
		return ErrInvalidSignature
	}
	return nil
}

// VerifyCancel checks a signed cancellation request. Cancels only support
// the direct ECDSA scheme: revoking orders must not depend on a session key
// that may itself be compromised.
func (v *Verifier) VerifyCancel(cancel *Cancel, sigBytes []byte) error {
	hash, err := v.codec.HashCancel(cancel)
	if err != nil {
		return fmt.Errorf("failed to hash cancel: %w", err)
	}
	if !crypto.VerifySignature(cancel.Account, hash.Bytes(), sigBytes) {
		return ErrInvalidSignature
	}
	return nil
}
