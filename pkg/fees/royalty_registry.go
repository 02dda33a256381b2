// Package fees computes the protocol/royalty/seller split of a settlement
// price. Royalties come from the registry first, then from the collection's
// own standardized royalty query, then default to zero.
package fees

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openloot/exchange/pkg/storage"
)

// ErrFeeLimitExceeded means a royalty configuration would breach the
// protocol-enforced ceiling. Raised at registration time, and again at
// resolution time for collection-reported amounts the registry never saw.
var ErrFeeLimitExceeded = errors.New("royalty fee exceeds protocol ceiling")

// RoyaltyRegistry maps collections to registry-validated royalty records,
// persisted in pebble. Set enforces the bps ceiling so the resolver can
// trust whatever it reads back.
type RoyaltyRegistry struct {
	mu         sync.RWMutex
	store      *storage.Store
	ceilingBps uint16
	cache      map[common.Address]*storage.RoyaltyRecord
}

func NewRoyaltyRegistry(store *storage.Store, ceilingBps uint16) *RoyaltyRegistry {
	return &RoyaltyRegistry{
		store:      store,
		ceilingBps: ceilingBps,
		cache:      make(map[common.Address]*storage.RoyaltyRecord),
	}
}

// Set registers or replaces a collection's royalty record
func (r *RoyaltyRegistry) Set(collection common.Address, recipient common.Address, feeBps uint16) error {
	if feeBps > r.ceilingBps {
		return fmt.Errorf("%w: %d bps > ceiling %d bps", ErrFeeLimitExceeded, feeBps, r.ceilingBps)
	}

	rec := &storage.RoyaltyRecord{Recipient: recipient, FeeBps: feeBps}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.SaveRoyalty(collection, rec); err != nil {
		return err
	}
	r.cache[collection] = rec
	return nil
}

// Get returns the collection's royalty record, or nil if none registered
func (r *RoyaltyRegistry) Get(collection common.Address) (*storage.RoyaltyRecord, error) {
	r.mu.RLock()
	if rec, ok := r.cache[collection]; ok {
		r.mu.RUnlock()
		return rec, nil
	}
	r.mu.RUnlock()

	rec, err := r.store.LoadRoyalty(collection)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		r.mu.Lock()
		r.cache[collection] = rec
		r.mu.Unlock()
	}
	return rec, nil
}

// CeilingBps returns the protocol royalty ceiling
func (r *RoyaltyRegistry) CeilingBps() uint16 { return r.ceilingBps }
