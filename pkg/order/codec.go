package order

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/openloot/exchange/pkg/crypto"
)

// Domain is the EIP-712 domain separator binding fingerprints to one chain,
// one verifying contract and one protocol version. Replay of a signature
// under any other domain fails verification.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// Codec canonicalizes maker orders and cancel payloads into EIP-712
// fingerprints. The domain may be swapped at runtime (protocol upgrade);
// consumed nonces are tracked outside the codec and survive the swap.
type Codec struct {
	mu     sync.RWMutex
	domain Domain
}

func NewCodec(domain Domain) *Codec {
	return &Codec{domain: domain}
}

// UpdateDomain replaces the EIP-712 domain. Orders signed under the old
// domain stop verifying from this point on.
func (c *Codec) UpdateDomain(domain Domain) {
	c.mu.Lock()
	c.domain = domain
	c.mu.Unlock()
}

// Domain returns the current EIP-712 domain.
func (c *Codec) Domain() Domain {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.domain
}

var makerOrderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"MakerOrder": []apitypes.Type{
		{Name: "signer", Type: "address"},
		{Name: "isAsk", Type: "bool"},
		{Name: "collection", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "price", Type: "uint256"},
		{Name: "currency", Type: "address"},
		{Name: "startTime", Type: "uint256"},
		{Name: "endTime", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "strategy", Type: "string"},
		{Name: "paramsHash", Type: "bytes32"},
	},
}

var takerOrderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"TakerOrder": []apitypes.Type{
		{Name: "taker", Type: "address"},
		{Name: "isAsk", Type: "bool"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "price", Type: "uint256"},
		{Name: "amount", Type: "uint256"},
		{Name: "paramsHash", Type: "bytes32"},
		{Name: "makerOrderHash", Type: "bytes32"},
	},
}

var bidTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Bid": []apitypes.Type{
		{Name: "bidder", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "makerOrderHash", Type: "bytes32"},
	},
}

var cancelTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Cancel": []apitypes.Type{
		{Name: "account", Type: "address"},
		{Name: "all", Type: "bool"},
		{Name: "nonce", Type: "uint256"},
		{Name: "minNonce", Type: "uint256"},
	},
}

// Hash computes the order fingerprint: the EIP-712 digest of every
// economically relevant field plus the current domain. Deterministic for
// identical inputs; any single field change yields a different digest.
func (c *Codec) Hash(o *MakerOrder) (common.Hash, error) {
	paramsHash := crypto.Keccak256(o.Params)

	typedData := apitypes.TypedData{
		Types:       makerOrderTypes,
		PrimaryType: "MakerOrder",
		Domain:      c.apiDomain(),
		Message: apitypes.TypedDataMessage{
			"signer":     o.Signer.Hex(),
			"isAsk":      o.IsAsk,
			"collection": o.Collection.Hex(),
			"tokenId":    bigOrZero(o.TokenID).String(),
			"amount":     bigOrZero(o.Amount).String(),
			"price":      bigOrZero(o.Price).String(),
			"currency":   o.Currency.Hex(),
			"startTime":  big.NewInt(o.StartTime).String(),
			"endTime":    big.NewInt(o.EndTime).String(),
			"nonce":      new(big.Int).SetUint64(o.Nonce).String(),
			"strategy":   string(o.Strategy),
			"paramsHash": hexutil.Encode(paramsHash[:]),
		},
	}

	return c.digest(typedData)
}

// HashTaker computes the fingerprint a taker signs to authorize their side
// of a match. Binding the maker fingerprint in prevents replaying the taker
// signature against any other maker order.
func (c *Codec) HashTaker(t *TakerOrder, makerHash common.Hash) (common.Hash, error) {
	paramsHash := crypto.Keccak256(t.Params)

	typedData := apitypes.TypedData{
		Types:       takerOrderTypes,
		PrimaryType: "TakerOrder",
		Domain:      c.apiDomain(),
		Message: apitypes.TypedDataMessage{
			"taker":          t.Taker.Hex(),
			"isAsk":          t.IsAsk,
			"tokenId":        bigOrZero(t.TokenID).String(),
			"price":          bigOrZero(t.Price).String(),
			"amount":         bigOrZero(t.Amount).String(),
			"paramsHash":     hexutil.Encode(paramsHash[:]),
			"makerOrderHash": hexutil.Encode(makerHash[:]),
		},
	}

	return c.digest(typedData)
}

// HashBid computes the fingerprint a bidder signs to place an auction bid,
// bound to the maker order being bid on.
func (c *Codec) HashBid(bidder common.Address, amount *big.Int, makerHash common.Hash) (common.Hash, error) {
	typedData := apitypes.TypedData{
		Types:       bidTypes,
		PrimaryType: "Bid",
		Domain:      c.apiDomain(),
		Message: apitypes.TypedDataMessage{
			"bidder":         bidder.Hex(),
			"amount":         bigOrZero(amount).String(),
			"makerOrderHash": hexutil.Encode(makerHash[:]),
		},
	}

	return c.digest(typedData)
}

// HashCancel computes the fingerprint of a signed cancellation request.
func (c *Codec) HashCancel(cancel *Cancel) (common.Hash, error) {
	typedData := apitypes.TypedData{
		Types:       cancelTypes,
		PrimaryType: "Cancel",
		Domain:      c.apiDomain(),
		Message: apitypes.TypedDataMessage{
			"account":  cancel.Account.Hex(),
			"all":      cancel.All,
			"nonce":    new(big.Int).SetUint64(cancel.Nonce).String(),
			"minNonce": new(big.Int).SetUint64(cancel.MinNonce).String(),
		},
	}

	return c.digest(typedData)
}

func (c *Codec) apiDomain() apitypes.TypedDataDomain {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return apitypes.TypedDataDomain{
		Name:              c.domain.Name,
		Version:           c.domain.Version,
		ChainId:           (*math.HexOrDecimal256)(c.domain.ChainID),
		VerifyingContract: c.domain.VerifyingContract.Hex(),
	}
}

func (c *Codec) digest(typedData apitypes.TypedData) (common.Hash, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash domain: %w", err)
	}

	typedDataHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash message: %w", err)
	}

	// Final digest: keccak256("\x19\x01" || domainSeparator || typedDataHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(typedDataHash)))
	return ethcrypto.Keccak256Hash(rawData), nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
