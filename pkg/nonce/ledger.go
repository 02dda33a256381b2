// Package nonce tracks, per account, a monotonic floor nonce plus a sparse
// set of executed-or-cancelled flags. Together they are the engine's entire
// replay-protection state: an order is matchable iff its nonce is above the
// floor and its flag is unset.
package nonce

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openloot/exchange/pkg/storage"
)

var (
	// ErrNonceAlreadyUsed means the (account, nonce) pair was consumed by a
	// settlement or an explicit cancel.
	ErrNonceAlreadyUsed = errors.New("nonce already used")
	// ErrNonceBelowFloor means the nonce sits at or under the account's
	// floor, i.e. inside a bulk-cancelled range.
	ErrNonceBelowFloor = errors.New("nonce below account floor")
)

// Ledger is the durable nonce state, write-through cached over pebble.
// All mutation happens under one mutex; the settlement engine's reentrancy
// guard additionally serializes calls above it.
type Ledger struct {
	mu     sync.Mutex
	store  *storage.Store
	floors map[common.Address]uint64
	used   map[usedKey]bool
}

type usedKey struct {
	account common.Address
	nonce   uint64
}

func NewLedger(store *storage.Store) *Ledger {
	return &Ledger{
		store:  store,
		floors: make(map[common.Address]uint64),
		used:   make(map[usedKey]bool),
	}
}

// AssertConsumable fails if the nonce was already consumed or sits at or
// below the account's floor. It mutates nothing.
func (l *Ledger) AssertConsumable(account common.Address, nonce uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.assertConsumableLocked(account, nonce)
}

// Consume marks the nonce executed. A second Consume of the same pair fails
// with ErrNonceAlreadyUsed: one signed order settles exactly once.
func (l *Ledger) Consume(account common.Address, nonce uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.assertConsumableLocked(account, nonce); err != nil {
		return err
	}
	if err := l.store.SetNonceUsed(account, nonce); err != nil {
		return fmt.Errorf("failed to persist consumed nonce: %w", err)
	}
	l.used[usedKey{account, nonce}] = true
	return nil
}

// Cancel marks a single nonce consumed without a corresponding transfer.
// Same semantics as Consume; cancelling a spent nonce fails.
func (l *Ledger) Cancel(account common.Address, nonce uint64) error {
	return l.Consume(account, nonce)
}

// CancelAll raises the account's floor, invalidating every order with
// nonce <= newMinNonce. The floor only moves up.
func (l *Ledger) CancelAll(account common.Address, newMinNonce uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	floor, err := l.floorLocked(account)
	if err != nil {
		return err
	}
	if newMinNonce <= floor {
		return fmt.Errorf("%w: new floor %d <= current floor %d", ErrNonceBelowFloor, newMinNonce, floor)
	}
	if err := l.store.SetMinNonce(account, newMinNonce); err != nil {
		return fmt.Errorf("failed to persist nonce floor: %w", err)
	}
	l.floors[account] = newMinNonce
	return nil
}

// MinNonce returns the account's current floor
func (l *Ledger) MinNonce(account common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.floorLocked(account)
}

// IsUsed reports whether the pair was executed or cancelled
func (l *Ledger) IsUsed(account common.Address, nonce uint64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usedLocked(account, nonce)
}

func (l *Ledger) assertConsumableLocked(account common.Address, nonce uint64) error {
	used, err := l.usedLocked(account, nonce)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("%w: account %s nonce %d", ErrNonceAlreadyUsed, account.Hex(), nonce)
	}

	floor, err := l.floorLocked(account)
	if err != nil {
		return err
	}
	if nonce <= floor {
		return fmt.Errorf("%w: nonce %d <= floor %d", ErrNonceBelowFloor, nonce, floor)
	}
	return nil
}

func (l *Ledger) floorLocked(account common.Address) (uint64, error) {
	if floor, ok := l.floors[account]; ok {
		return floor, nil
	}
	floor, err := l.store.MinNonce(account)
	if err != nil {
		return 0, err
	}
	l.floors[account] = floor
	return floor, nil
}

func (l *Ledger) usedLocked(account common.Address, nonce uint64) (bool, error) {
	key := usedKey{account, nonce}
	if l.used[key] {
		return true, nil
	}
	used, err := l.store.IsNonceUsed(account, nonce)
	if err != nil {
		return false, err
	}
	if used {
		l.used[key] = true
	}
	return used, nil
}
