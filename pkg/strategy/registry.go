package strategy

import (
	"fmt"
	"sync"

	"github.com/openloot/exchange/pkg/order"
)

// Registry is the strategy whitelist. The engine refuses maker orders whose
// strategy ID is not registered here.
type Registry struct {
	mu         sync.RWMutex
	strategies map[order.StrategyID]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[order.StrategyID]Strategy)}
}

// Register whitelists a strategy under its own ID
func (r *Registry) Register(s Strategy) error {
	if s == nil {
		return fmt.Errorf("cannot register nil strategy")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[s.ID()]; exists {
		return fmt.Errorf("strategy %s already registered", s.ID())
	}
	r.strategies[s.ID()] = s
	return nil
}

// Get retrieves a whitelisted strategy by ID
func (r *Registry) Get(id order.StrategyID) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[id]
	return s, ok
}

// IsWhitelisted reports whether the ID belongs to a registered strategy
func (r *Registry) IsWhitelisted(id order.StrategyID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.strategies[id]
	return ok
}

// Remove drops a strategy from the whitelist. In-flight evaluations are
// unaffected; subsequent matches fail the whitelist check.
func (r *Registry) Remove(id order.StrategyID) {
	r.mu.Lock()
	delete(r.strategies, id)
	r.mu.Unlock()
}
