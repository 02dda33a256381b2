package fees

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openloot/exchange/pkg/asset"
)

// RoyaltyAware is implemented by collections that advertise the
// standardized royalty query. ok reports whether a royalty is configured.
type RoyaltyAware interface {
	RoyaltyInfo(tokenID, salePrice *big.Int) (common.Address, *big.Int, bool)
}

// Split divides a settlement price with no rounding loss:
// ProtocolFee + RoyaltyFee + NetSeller == price exactly. Division
// remainders land on the seller.
type Split struct {
	ProtocolFee       *big.Int
	ProtocolRecipient common.Address
	RoyaltyFee        *big.Int
	RoyaltyRecipient  common.Address
	NetSeller         *big.Int
}

// Resolver computes the fee split for a (collection, tokenId, price)
// triple. The protocol fee is a fixed configured bps; the royalty comes
// from the registry, falling back to the collection's own query.
type Resolver struct {
	registry          *RoyaltyRegistry
	protocolFeeBps    uint16
	protocolRecipient common.Address
}

func NewResolver(registry *RoyaltyRegistry, protocolFeeBps uint16, protocolRecipient common.Address) *Resolver {
	return &Resolver{
		registry:          registry,
		protocolFeeBps:    protocolFeeBps,
		protocolRecipient: protocolRecipient,
	}
}

// Resolve computes the split for a sale of tokenID from collection at
// price. Both fee legs round down; the seller absorbs the remainder.
func (r *Resolver) Resolve(collection asset.Collection, tokenID, price *big.Int) (*Split, error) {
	if price == nil || price.Sign() < 0 {
		return nil, fmt.Errorf("invalid settlement price")
	}

	protocolFee := feeOf(price, r.protocolFeeBps)

	royaltyFee := new(big.Int)
	var royaltyRecipient common.Address

	rec, err := r.registry.Get(collection.Address())
	if err != nil {
		return nil, fmt.Errorf("royalty registry lookup: %w", err)
	}
	switch {
	case rec != nil:
		royaltyFee = feeOf(price, rec.FeeBps)
		royaltyRecipient = rec.Recipient
	default:
		// Registry has no record: fall back to the collection's own
		// standardized royalty query, if it advertises one.
		if ra, ok := collection.(RoyaltyAware); ok {
			// A nil or negative reported amount is treated as no royalty
			// configured rather than trusted arithmetic input.
			if recipient, amount, ok := ra.RoyaltyInfo(tokenID, price); ok && amount != nil && amount.Sign() >= 0 {
				// Collection-reported amounts bypassed registration, so the
				// ceiling is enforced here instead.
				if amount.Cmp(feeOf(price, r.registry.CeilingBps())) > 0 {
					return nil, fmt.Errorf("%w: collection-reported royalty %s", ErrFeeLimitExceeded, amount)
				}
				royaltyFee = amount
				royaltyRecipient = recipient
			}
		}
	}

	netSeller := new(big.Int).Sub(price, protocolFee)
	netSeller.Sub(netSeller, royaltyFee)
	if netSeller.Sign() < 0 {
		return nil, fmt.Errorf("%w: fees exceed price", ErrFeeLimitExceeded)
	}

	return &Split{
		ProtocolFee:       protocolFee,
		ProtocolRecipient: r.protocolRecipient,
		RoyaltyFee:        royaltyFee,
		RoyaltyRecipient:  royaltyRecipient,
		NetSeller:         netSeller,
	}, nil
}

// ProtocolFeeBps returns the configured protocol fee
func (r *Resolver) ProtocolFeeBps() uint16 { return r.protocolFeeBps }

func feeOf(price *big.Int, bps uint16) *big.Int {
	fee := new(big.Int).Mul(price, big.NewInt(int64(bps)))
	return fee.Div(fee, big.NewInt(10000))
}
