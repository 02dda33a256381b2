package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// CurrencyRegistry is the currency whitelist. Registering a currency both
// whitelists its address and makes its ledger reachable for fund legs.
type CurrencyRegistry struct {
	mu         sync.RWMutex
	currencies map[common.Address]*Currency
}

func NewCurrencyRegistry() *CurrencyRegistry {
	return &CurrencyRegistry{currencies: make(map[common.Address]*Currency)}
}

// Register whitelists a currency
func (r *CurrencyRegistry) Register(c *Currency) error {
	if c == nil {
		return fmt.Errorf("cannot register nil currency")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.currencies[c.Address()]; exists {
		return fmt.Errorf("currency %s already registered", c.Address().Hex())
	}
	r.currencies[c.Address()] = c
	return nil
}

// IsWhitelisted reports whether the currency may be used for settlement
func (r *CurrencyRegistry) IsWhitelisted(addr common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.currencies[addr]
	return ok
}

// Ledger returns the balance ledger for a whitelisted currency
func (r *CurrencyRegistry) Ledger(addr common.Address) (*Currency, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[addr]
	return c, ok
}

// Remove drops a currency from the whitelist
func (r *CurrencyRegistry) Remove(addr common.Address) {
	r.mu.Lock()
	delete(r.currencies, addr)
	r.mu.Unlock()
}
