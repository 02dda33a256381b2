// Package transfer routes asset movements to the adapter matching a
// collection's token standard. The router holds no assets; adapters are the
// only callers authorized to move them on behalf of the engine.
package transfer

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openloot/exchange/pkg/asset"
)

var (
	// ErrUnsupportedCollection means no adapter matches the collection's
	// declared token standard, or the collection is unknown entirely.
	ErrUnsupportedCollection = errors.New("unsupported collection")
	// ErrTransferFailed wraps any adapter failure. Terminal for the call.
	ErrTransferFailed = errors.New("asset transfer failed")
)

// Adapter moves assets for one token standard.
type Adapter interface {
	Transfer(col asset.Collection, from, to common.Address, tokenID, amount *big.Int) error
}

// Router selects the adapter for a collection's standard and invokes it.
type Router struct {
	mu          sync.RWMutex
	collections map[common.Address]asset.Collection
	adapters    map[asset.Standard]Adapter
}

func NewRouter() *Router {
	return &Router{
		collections: make(map[common.Address]asset.Collection),
		adapters: map[asset.Standard]Adapter{
			asset.StandardUnique: uniqueAdapter{},
			asset.StandardMulti:  multiAdapter{},
		},
	}
}

// RegisterCollection makes a collection routable
func (r *Router) RegisterCollection(col asset.Collection) error {
	if col == nil {
		return fmt.Errorf("cannot register nil collection")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[col.Address()]; exists {
		return fmt.Errorf("collection %s already registered", col.Address().Hex())
	}
	r.collections[col.Address()] = col
	return nil
}

// Collection returns a registered collection by address
func (r *Router) Collection(addr common.Address) (asset.Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	col, ok := r.collections[addr]
	return col, ok
}

// Transfer moves amount of tokenID in the given collection from seller to
// buyer via the adapter for the collection's standard.
func (r *Router) Transfer(collection common.Address, from, to common.Address, tokenID, amount *big.Int) error {
	col, ok := r.Collection(collection)
	if !ok {
		return fmt.Errorf("%w: %s not registered", ErrUnsupportedCollection, collection.Hex())
	}

	r.mu.RLock()
	adapter, ok := r.adapters[col.Standard()]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no adapter for standard %s", ErrUnsupportedCollection, col.Standard())
	}

	if err := adapter.Transfer(col, from, to, tokenID, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	return nil
}

// uniqueAdapter moves single-owner tokens; quantity is pinned to 1.
type uniqueAdapter struct{}

func (uniqueAdapter) Transfer(col asset.Collection, from, to common.Address, tokenID, amount *big.Int) error {
	if amount == nil || amount.Cmp(big.NewInt(1)) != 0 {
		return fmt.Errorf("unique standard moves exactly 1, got %s", amount)
	}
	return col.Transfer(from, to, tokenID, amount)
}

// multiAdapter moves quantity balances.
type multiAdapter struct{}

func (multiAdapter) Transfer(col asset.Collection, from, to common.Address, tokenID, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("multi standard requires positive amount, got %s", amount)
	}
	return col.Transfer(from, to, tokenID, amount)
}
