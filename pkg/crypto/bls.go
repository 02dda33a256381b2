package crypto

import (
	bls "github.com/cloudflare/circl/sign/bls"
)

// Session keys use BLS (min-pubkey variant) so that wallets can delegate
// signing to a hot key without exposing the secp256k1 account key.

type scheme = bls.KeyG1SigG2

type BLSPubKey = bls.PublicKey[scheme]

type BLSSigner struct {
	sk *bls.PrivateKey[scheme]
	pk *BLSPubKey
}

// NewBLSSignerFromSeed derives a deterministic session key from seed.
// Seed must be at least 32 bytes of entropy.
func NewBLSSignerFromSeed(seed []byte) *BLSSigner {
	sk, _ := bls.KeyGen[scheme](seed, nil, nil)
	return &BLSSigner{sk: sk, pk: sk.PublicKey()}
}

func (s *BLSSigner) Pubkey() *BLSPubKey { return s.pk }

func (s *BLSSigner) Sign(msg []byte) []byte {
	return bls.Sign(s.sk, msg)
}

func VerifyBLS(pk *BLSPubKey, sigBytes, msg []byte) bool {
	if pk == nil || len(sigBytes) == 0 {
		return false
	}
	return bls.Verify(pk, msg, bls.Signature(sigBytes))
}
