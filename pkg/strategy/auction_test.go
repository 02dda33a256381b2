package strategy

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openloot/exchange/pkg/order"
)

func auctionMaker() *order.MakerOrder {
	m := makerAsk()
	m.Strategy = StrategyHighestBidder
	m.Price = big.NewInt(200) // reserve
	return m
}

var (
	bidder1 = common.HexToAddress("0xB1")
	bidder2 = common.HexToAddress("0xB2")
)

func TestRecordBidAscending(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()

	if err := a.RecordBid(m, bidder1, big.NewInt(100), 1500); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if err := a.RecordBid(m, bidder2, big.NewInt(150), 1500); err != nil {
		t.Fatalf("higher bid: %v", err)
	}

	who, amount, ok := a.HighestBid(m)
	if !ok {
		t.Fatal("expected a tracked bid")
	}
	if who != bidder2 {
		t.Errorf("got bidder %s, want %s", who.Hex(), bidder2.Hex())
	}
	if amount.Cmp(big.NewInt(150)) != 0 {
		t.Errorf("got amount %s, want 150", amount)
	}
}

func TestRecordBidRejectsEqualAndLower(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()

	if err := a.RecordBid(m, bidder1, big.NewInt(150), 1500); err != nil {
		t.Fatalf("first bid: %v", err)
	}

	// Equal bids lose to the earlier one
	if err := a.RecordBid(m, bidder2, big.NewInt(150), 1500); !errors.Is(err, ErrBidTooLow) {
		t.Errorf("equal bid: got %v, want ErrBidTooLow", err)
	}
	if err := a.RecordBid(m, bidder2, big.NewInt(100), 1500); !errors.Is(err, ErrBidTooLow) {
		t.Errorf("lower bid: got %v, want ErrBidTooLow", err)
	}

	who, _, _ := a.HighestBid(m)
	if who != bidder1 {
		t.Errorf("top bidder changed to %s", who.Hex())
	}
}

func TestRecordBidOutsideWindow(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()

	if err := a.RecordBid(m, bidder1, big.NewInt(100), 999); !errors.Is(err, ErrAuctionClosed) {
		t.Errorf("before start: got %v, want ErrAuctionClosed", err)
	}
	if err := a.RecordBid(m, bidder1, big.NewInt(100), 2000); !errors.Is(err, ErrAuctionClosed) {
		t.Errorf("at end: got %v, want ErrAuctionClosed", err)
	}
}

func TestAuctionExecutesAfterClose(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()

	if err := a.RecordBid(m, bidder1, big.NewInt(150), 1500); err != nil {
		t.Fatalf("bid: %v", err)
	}

	tk := takerBid()
	tk.Taker = bidder1
	tk.Price = big.NewInt(150)

	// Below reserve and window still open: not yet
	if res := a.CanExecuteTakerBid(tk, m, 1600); res.Executable {
		t.Error("open window below reserve must not execute")
	}

	// Window closed: winner settles at the tracked amount
	res := a.CanExecuteTakerBid(tk, m, 2000)
	if !res.Executable {
		t.Fatal("closed auction should execute for the winner")
	}
	if res.Price.Cmp(big.NewInt(150)) != 0 {
		t.Errorf("got price %s, want 150", res.Price)
	}
}

func TestAuctionExecutesEarlyAtReserve(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()

	if err := a.RecordBid(m, bidder1, big.NewInt(200), 1500); err != nil {
		t.Fatalf("bid: %v", err)
	}

	tk := takerBid()
	tk.Taker = bidder1
	tk.Price = big.NewInt(200)

	if res := a.CanExecuteTakerBid(tk, m, 1600); !res.Executable {
		t.Error("bid meeting the reserve should execute before close")
	}
}

func TestAuctionOnlyWinnerExecutes(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()

	if err := a.RecordBid(m, bidder1, big.NewInt(150), 1500); err != nil {
		t.Fatalf("bid: %v", err)
	}

	tk := takerBid()
	tk.Taker = bidder2
	tk.Price = big.NewInt(150)
	if res := a.CanExecuteTakerBid(tk, m, 2000); res.Executable {
		t.Error("non-winner must not execute")
	}

	// The winner cannot settle at a different price either
	tk.Taker = bidder1
	tk.Price = big.NewInt(140)
	if res := a.CanExecuteTakerBid(tk, m, 2000); res.Executable {
		t.Error("winner at the wrong price must not execute")
	}
}

func TestAuctionNoBids(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()

	tk := takerBid()
	tk.Taker = bidder1
	tk.Price = big.NewInt(150)
	if res := a.CanExecuteTakerBid(tk, m, 2000); res.Executable {
		t.Error("auction with no bids must not execute")
	}
	if _, _, ok := a.HighestBid(m); ok {
		t.Error("expected no tracked bid")
	}
}

func TestAuctionTakerAskNeverExecutes(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()
	m.IsAsk = false

	tk := takerBid()
	tk.IsAsk = true
	if res := a.CanExecuteTakerAsk(tk, m, 1500); res.Executable {
		t.Error("auctions are seller-initiated only")
	}
}

func TestSettleDropsBidBookEntry(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()

	if err := a.RecordBid(m, bidder1, big.NewInt(150), 1500); err != nil {
		t.Fatalf("bid: %v", err)
	}
	a.Settle(m)
	if _, _, ok := a.HighestBid(m); ok {
		t.Error("settled auction should drop its bid entry")
	}
	// Idempotent
	a.Settle(m)
}

func TestEvictBid(t *testing.T) {
	a := NewHighestBidderAuction()
	m := auctionMaker()

	if err := a.RecordBid(m, bidder1, big.NewInt(150), 1500); err != nil {
		t.Fatalf("bid: %v", err)
	}

	// Evicting a non-top bidder leaves the book alone
	a.EvictBid(m, bidder2)
	if bidder, _, ok := a.HighestBid(m); !ok || bidder != bidder1 {
		t.Fatalf("got (%s, %v), want bidder1 still on top", bidder.Hex(), ok)
	}

	// Evicting the top reopens the auction to lower bids
	a.EvictBid(m, bidder1)
	if _, _, ok := a.HighestBid(m); ok {
		t.Fatal("evicted bid still tracked")
	}
	if err := a.RecordBid(m, bidder2, big.NewInt(100), 1500); err != nil {
		t.Fatalf("lower bid after eviction: %v", err)
	}
}

func TestAuctionsKeyedPerOrder(t *testing.T) {
	a := NewHighestBidderAuction()
	m1 := auctionMaker()
	m2 := auctionMaker()
	m2.Nonce = 2

	if err := a.RecordBid(m1, bidder1, big.NewInt(150), 1500); err != nil {
		t.Fatalf("bid: %v", err)
	}
	// Same signer, different nonce: separate auction, low bid accepted
	if err := a.RecordBid(m2, bidder2, big.NewInt(10), 1500); err != nil {
		t.Fatalf("bid on second auction: %v", err)
	}

	if who, _, _ := a.HighestBid(m1); who != bidder1 {
		t.Errorf("auction 1 top bidder: got %s, want %s", who.Hex(), bidder1.Hex())
	}
	if who, _, _ := a.HighestBid(m2); who != bidder2 {
		t.Errorf("auction 2 top bidder: got %s, want %s", who.Hex(), bidder2.Hex())
	}
}
