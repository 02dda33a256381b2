package asset

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Currency is a fungible balance ledger, the payment side of a settlement.
type Currency struct {
	addr common.Address

	mu       sync.RWMutex
	balances map[common.Address]*big.Int
}

func NewCurrency(addr common.Address) *Currency {
	return &Currency{
		addr:     addr,
		balances: make(map[common.Address]*big.Int),
	}
}

func (c *Currency) Address() common.Address { return c.addr }

// Mint credits an account. Test and bootstrap helper.
func (c *Currency) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("mint amount must be non-negative")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	bal := c.balances[to]
	if bal == nil {
		bal = new(big.Int)
	}
	c.balances[to] = new(big.Int).Add(bal, amount)
	return nil
}

// BalanceOf returns the account's balance
func (c *Currency) BalanceOf(account common.Address) *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if bal, ok := c.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// Transfer moves amount between accounts. Zero-amount transfers are no-ops
// so fee legs of zero never fail.
func (c *Currency) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("transfer amount must be non-negative")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fromBal := c.balances[from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance for %s", from.Hex())
	}

	c.balances[from] = new(big.Int).Sub(fromBal, amount)
	toBal := c.balances[to]
	if toBal == nil {
		toBal = new(big.Int)
	}
	c.balances[to] = new(big.Int).Add(toBal, amount)
	return nil
}
