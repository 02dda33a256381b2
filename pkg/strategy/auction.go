package strategy

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openloot/exchange/pkg/order"
)

// StrategyHighestBidder is the ID of the ascending-auction variant.
const StrategyHighestBidder order.StrategyID = "highest-bidder"

var (
	// ErrBidTooLow rejects bids at or below the tracked highest. Equal
	// bids lose: the first bid to reach a value keeps it.
	ErrBidTooLow = errors.New("bid not above current highest")
	// ErrAuctionClosed rejects bids outside the maker's time window.
	ErrAuctionClosed = errors.New("auction window closed")
)

// auctionKey identifies one live auction. (signer, nonce) is unique among
// consumable maker orders, so it stands in for the order fingerprint here.
type auctionKey struct {
	signer common.Address
	nonce  uint64
}

type bidRecord struct {
	bidder common.Address
	amount *big.Int
}

// HighestBidderAuction sells to the highest tracked bidder. The bid book is
// the strategy's own isolated state; settlement still flows through the
// engine like any other match.
//
// Rules: bids must land inside the maker window and strictly exceed the
// current highest. The winner can settle once the window has closed, or
// earlier if their bid meets the maker's listed price (the reserve).
type HighestBidderAuction struct {
	mu   sync.Mutex
	bids map[auctionKey]*bidRecord
}

func NewHighestBidderAuction() *HighestBidderAuction {
	return &HighestBidderAuction{bids: make(map[auctionKey]*bidRecord)}
}

func (a *HighestBidderAuction) ID() order.StrategyID { return StrategyHighestBidder }

// RecordBid registers a bid on the maker's auction. Later equal bids are
// rejected deterministically, so two bidders can never both hold the top.
func (a *HighestBidderAuction) RecordBid(maker *order.MakerOrder, bidder common.Address, amount *big.Int, now int64) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive bid", ErrBidTooLow)
	}
	if !withinWindow(maker, now) {
		return ErrAuctionClosed
	}

	key := auctionKey{maker.Signer, maker.Nonce}

	a.mu.Lock()
	defer a.mu.Unlock()

	if current, ok := a.bids[key]; ok && amount.Cmp(current.amount) <= 0 {
		return fmt.Errorf("%w: %s <= %s", ErrBidTooLow, amount, current.amount)
	}
	a.bids[key] = &bidRecord{bidder: bidder, amount: new(big.Int).Set(amount)}
	return nil
}

// HighestBid returns the current top bid for the maker's auction
func (a *HighestBidderAuction) HighestBid(maker *order.MakerOrder) (common.Address, *big.Int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.bids[auctionKey{maker.Signer, maker.Nonce}]
	if !ok {
		return common.Address{}, nil, false
	}
	return rec.bidder, new(big.Int).Set(rec.amount), true
}

// CanExecuteTakerBid executes when the taker is the tracked highest bidder
// at exactly the tracked amount, and either the window has closed or the
// bid meets the reserve (the maker's listed price).
func (a *HighestBidderAuction) CanExecuteTakerBid(taker *order.TakerOrder, maker *order.MakerOrder, now int64) Result {
	if !maker.IsAsk || taker.IsAsk {
		return notExecutable()
	}
	if !sameToken(taker, maker) || !positiveAmount(taker, maker) {
		return notExecutable()
	}
	if now < maker.StartTime {
		return notExecutable()
	}

	a.mu.Lock()
	rec, ok := a.bids[auctionKey{maker.Signer, maker.Nonce}]
	a.mu.Unlock()
	if !ok || rec.bidder != taker.Taker {
		return notExecutable()
	}
	if taker.Price == nil || taker.Price.Cmp(rec.amount) != 0 {
		return notExecutable()
	}

	closed := now >= maker.EndTime
	reserveMet := maker.Price != nil && rec.amount.Cmp(maker.Price) >= 0
	if !closed && !reserveMet {
		return notExecutable()
	}

	return Result{
		Executable: true,
		TokenID:    maker.TokenID,
		Amount:     taker.Amount,
		Price:      new(big.Int).Set(rec.amount),
	}
}

// CanExecuteTakerAsk never executes: auctions are seller-initiated, so the
// maker side is always the ask.
func (a *HighestBidderAuction) CanExecuteTakerAsk(taker *order.TakerOrder, maker *order.MakerOrder, now int64) Result {
	return notExecutable()
}

// EvictBid drops the tracked top bid if it belongs to bidder, reopening the
// auction to lower bids. Called when the tracked bidder's settlement fails;
// a no-op when someone else already holds the top.
func (a *HighestBidderAuction) EvictBid(maker *order.MakerOrder, bidder common.Address) {
	key := auctionKey{maker.Signer, maker.Nonce}

	a.mu.Lock()
	if rec, ok := a.bids[key]; ok && rec.bidder == bidder {
		delete(a.bids, key)
	}
	a.mu.Unlock()
}

// Settle drops the auction's bid book entry once the maker nonce is
// consumed. Idempotent.
func (a *HighestBidderAuction) Settle(maker *order.MakerOrder) {
	a.mu.Lock()
	delete(a.bids, auctionKey{maker.Signer, maker.Nonce})
	a.mu.Unlock()
}
