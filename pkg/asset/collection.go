// Package asset models the in-process collaborators the engine settles
// against: asset collections of the two supported token standards, and
// fungible currency ledgers with their whitelist.
package asset

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Standard is a collection's declared token standard.
type Standard uint8

const (
	StandardUnknown Standard = iota
	// StandardUnique: one owner per token ID, quantity always 1.
	StandardUnique
	// StandardMulti: per-token-ID balances, arbitrary quantities.
	StandardMulti
)

func (s Standard) String() string {
	switch s {
	case StandardUnique:
		return "unique"
	case StandardMulti:
		return "multi"
	default:
		return "unknown"
	}
}

// Collection is the minimal surface the transfer router needs. Transfer is
// only ever invoked by the router's adapters.
type Collection interface {
	Address() common.Address
	Standard() Standard
	Transfer(from, to common.Address, tokenID, amount *big.Int) error
}

// royaltyConfig backs the standardized royalty query for collections that
// advertise one.
type royaltyConfig struct {
	recipient common.Address
	feeBps    uint16
}

// UniqueCollection is a single-owner-per-token collection.
type UniqueCollection struct {
	addr common.Address

	mu      sync.RWMutex
	owners  map[string]common.Address // tokenID (decimal) → owner
	royalty *royaltyConfig
}

func NewUniqueCollection(addr common.Address) *UniqueCollection {
	return &UniqueCollection{
		addr:   addr,
		owners: make(map[string]common.Address),
	}
}

func (c *UniqueCollection) Address() common.Address { return c.addr }
func (c *UniqueCollection) Standard() Standard      { return StandardUnique }

// Mint assigns a token to an owner. Fails if the token already exists.
func (c *UniqueCollection) Mint(to common.Address, tokenID *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := tokenID.String()
	if _, exists := c.owners[key]; exists {
		return fmt.Errorf("token %s already minted", key)
	}
	c.owners[key] = to
	return nil
}

// OwnerOf returns the token's owner
func (c *UniqueCollection) OwnerOf(tokenID *big.Int) (common.Address, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	owner, ok := c.owners[tokenID.String()]
	return owner, ok
}

// Transfer moves a token between owners. Amount must be exactly 1 and from
// must be the current owner.
func (c *UniqueCollection) Transfer(from, to common.Address, tokenID, amount *big.Int) error {
	if amount == nil || amount.Cmp(big.NewInt(1)) != 0 {
		return fmt.Errorf("unique collection transfers exactly 1, got %s", amount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := tokenID.String()
	owner, ok := c.owners[key]
	if !ok {
		return fmt.Errorf("token %s does not exist", key)
	}
	if owner != from {
		return fmt.Errorf("token %s not owned by %s", key, from.Hex())
	}
	c.owners[key] = to
	return nil
}

// SetRoyalty makes the collection advertise the standardized royalty query
func (c *UniqueCollection) SetRoyalty(recipient common.Address, feeBps uint16) {
	c.mu.Lock()
	c.royalty = &royaltyConfig{recipient: recipient, feeBps: feeBps}
	c.mu.Unlock()
}

// RoyaltyInfo answers the standardized royalty query. ok is false when the
// collection never configured one.
func (c *UniqueCollection) RoyaltyInfo(tokenID, salePrice *big.Int) (common.Address, *big.Int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return royaltyAmount(c.royalty, salePrice)
}

// MultiCollection tracks per-token balances per holder.
type MultiCollection struct {
	addr common.Address

	mu       sync.RWMutex
	balances map[string]map[common.Address]*big.Int // tokenID → holder → qty
	royalty  *royaltyConfig
}

func NewMultiCollection(addr common.Address) *MultiCollection {
	return &MultiCollection{
		addr:     addr,
		balances: make(map[string]map[common.Address]*big.Int),
	}
}

func (c *MultiCollection) Address() common.Address { return c.addr }
func (c *MultiCollection) Standard() Standard      { return StandardMulti }

// Mint credits quantity of a token to a holder
func (c *MultiCollection) Mint(to common.Address, tokenID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("mint amount must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := tokenID.String()
	if c.balances[key] == nil {
		c.balances[key] = make(map[common.Address]*big.Int)
	}
	bal := c.balances[key][to]
	if bal == nil {
		bal = new(big.Int)
	}
	c.balances[key][to] = new(big.Int).Add(bal, amount)
	return nil
}

// BalanceOf returns holder's quantity of the token
func (c *MultiCollection) BalanceOf(holder common.Address, tokenID *big.Int) *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if holders, ok := c.balances[tokenID.String()]; ok {
		if bal, ok := holders[holder]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return new(big.Int)
}

// Transfer moves quantity of a token between holders
func (c *MultiCollection) Transfer(from, to common.Address, tokenID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := tokenID.String()
	holders := c.balances[key]
	fromBal := holders[from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance of token %s for %s", key, from.Hex())
	}

	holders[from] = new(big.Int).Sub(fromBal, amount)
	toBal := holders[to]
	if toBal == nil {
		toBal = new(big.Int)
	}
	holders[to] = new(big.Int).Add(toBal, amount)
	return nil
}

// SetRoyalty makes the collection advertise the standardized royalty query
func (c *MultiCollection) SetRoyalty(recipient common.Address, feeBps uint16) {
	c.mu.Lock()
	c.royalty = &royaltyConfig{recipient: recipient, feeBps: feeBps}
	c.mu.Unlock()
}

// RoyaltyInfo answers the standardized royalty query
func (c *MultiCollection) RoyaltyInfo(tokenID, salePrice *big.Int) (common.Address, *big.Int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return royaltyAmount(c.royalty, salePrice)
}

func royaltyAmount(cfg *royaltyConfig, salePrice *big.Int) (common.Address, *big.Int, bool) {
	if cfg == nil {
		return common.Address{}, nil, false
	}
	amount := new(big.Int).Mul(salePrice, big.NewInt(int64(cfg.feeBps)))
	amount.Div(amount, big.NewInt(10000))
	return cfg.recipient, amount, true
}
