// Package strategy holds the pluggable match predicates. A strategy decides
// whether a taker order may satisfy a maker order and at what price and
// quantity; it never moves assets or funds.
package strategy

import (
	"math/big"

	"github.com/openloot/exchange/pkg/order"
)

// Result is the outcome of one strategy evaluation. Computed fresh per
// call, never persisted.
type Result struct {
	Executable bool
	TokenID    *big.Int
	Amount     *big.Int
	Price      *big.Int // settlement price in currency base units
}

func notExecutable() Result { return Result{} }

// Strategy is a pure predicate over (taker, maker, now) plus its own
// isolated state (e.g. an auction's bid book).
type Strategy interface {
	ID() order.StrategyID

	// CanExecuteTakerBid evaluates a buying taker against a maker ask.
	CanExecuteTakerBid(taker *order.TakerOrder, maker *order.MakerOrder, now int64) Result

	// CanExecuteTakerAsk evaluates a selling taker against a maker bid.
	CanExecuteTakerAsk(taker *order.TakerOrder, maker *order.MakerOrder, now int64) Result
}

// Checks shared by every variant: token identity, maker time window,
// quantity positivity.

func sameToken(taker *order.TakerOrder, maker *order.MakerOrder) bool {
	if taker.TokenID == nil || maker.TokenID == nil {
		return false
	}
	return taker.TokenID.Cmp(maker.TokenID) == 0
}

func withinWindow(maker *order.MakerOrder, now int64) bool {
	return maker.StartTime <= now && now < maker.EndTime
}

func positiveAmount(taker *order.TakerOrder, maker *order.MakerOrder) bool {
	if taker.Amount == nil || maker.Amount == nil {
		return false
	}
	return taker.Amount.Sign() > 0 && maker.Amount.Sign() > 0 &&
		taker.Amount.Cmp(maker.Amount) <= 0
}
