package strategy

import (
	"github.com/openloot/exchange/pkg/order"
)

// StrategyFixedPrice is the ID of the fixed-price variant.
const StrategyFixedPrice order.StrategyID = "fixed-price"

// FixedPrice executes a match only at the maker's exact listed price.
// Stateless: both directions are pure functions of the two orders and now.
type FixedPrice struct{}

func NewFixedPrice() *FixedPrice { return &FixedPrice{} }

func (FixedPrice) ID() order.StrategyID { return StrategyFixedPrice }

// CanExecuteTakerBid matches a buying taker against a maker ask at exactly
// the ask price.
func (FixedPrice) CanExecuteTakerBid(taker *order.TakerOrder, maker *order.MakerOrder, now int64) Result {
	if !maker.IsAsk || taker.IsAsk {
		return notExecutable()
	}
	return fixedPriceResult(taker, maker, now)
}

// CanExecuteTakerAsk matches a selling taker against a maker bid at exactly
// the bid price.
func (FixedPrice) CanExecuteTakerAsk(taker *order.TakerOrder, maker *order.MakerOrder, now int64) Result {
	if maker.IsAsk || !taker.IsAsk {
		return notExecutable()
	}
	return fixedPriceResult(taker, maker, now)
}

func fixedPriceResult(taker *order.TakerOrder, maker *order.MakerOrder, now int64) Result {
	if !sameToken(taker, maker) || !withinWindow(maker, now) || !positiveAmount(taker, maker) {
		return notExecutable()
	}
	if taker.Price == nil || maker.Price == nil || taker.Price.Cmp(maker.Price) != 0 {
		return notExecutable()
	}
	return Result{
		Executable: true,
		TokenID:    maker.TokenID,
		Amount:     taker.Amount,
		Price:      maker.Price,
	}
}
