package strategy

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openloot/exchange/pkg/order"
)

func makerAsk() *order.MakerOrder {
	return &order.MakerOrder{
		Signer:     common.HexToAddress("0xA1"),
		IsAsk:      true,
		Collection: common.HexToAddress("0xAA"),
		TokenID:    big.NewInt(7),
		Amount:     big.NewInt(1),
		Price:      big.NewInt(100),
		Currency:   common.HexToAddress("0xCC"),
		StartTime:  1000,
		EndTime:    2000,
		Nonce:      1,
		Strategy:   StrategyFixedPrice,
	}
}

func takerBid() *order.TakerOrder {
	return &order.TakerOrder{
		Taker:   common.HexToAddress("0xB2"),
		IsAsk:   false,
		TokenID: big.NewInt(7),
		Price:   big.NewInt(100),
		Amount:  big.NewInt(1),
	}
}

func TestFixedPriceExactMatch(t *testing.T) {
	s := NewFixedPrice()

	res := s.CanExecuteTakerBid(takerBid(), makerAsk(), 1500)
	if !res.Executable {
		t.Fatal("exact price match should execute")
	}
	if res.Price.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("got price %s, want 100", res.Price)
	}
	if res.TokenID.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("got tokenId %s, want 7", res.TokenID)
	}
}

func TestFixedPriceRejectsPriceMismatch(t *testing.T) {
	s := NewFixedPrice()

	for _, price := range []int64{99, 101} {
		tk := takerBid()
		tk.Price = big.NewInt(price)
		if res := s.CanExecuteTakerBid(tk, makerAsk(), 1500); res.Executable {
			t.Errorf("price %d: over/underpaying must not execute", price)
		}
	}
}

func TestFixedPriceWindow(t *testing.T) {
	s := NewFixedPrice()

	cases := []struct {
		name string
		now  int64
		want bool
	}{
		{"before start", 999, false},
		{"at start", 1000, true},
		{"inside", 1500, true},
		{"at end", 2000, false},
		{"after end", 2500, false},
	}
	for _, tc := range cases {
		res := s.CanExecuteTakerBid(takerBid(), makerAsk(), tc.now)
		if res.Executable != tc.want {
			t.Errorf("%s (now=%d): got executable=%v, want %v", tc.name, tc.now, res.Executable, tc.want)
		}
	}
}

func TestFixedPriceRejectsTokenMismatch(t *testing.T) {
	s := NewFixedPrice()

	tk := takerBid()
	tk.TokenID = big.NewInt(8)
	if res := s.CanExecuteTakerBid(tk, makerAsk(), 1500); res.Executable {
		t.Error("different token must not execute")
	}
}

func TestFixedPriceRejectsSideMismatch(t *testing.T) {
	s := NewFixedPrice()

	// Two asks cannot match
	tk := takerBid()
	tk.IsAsk = true
	if res := s.CanExecuteTakerBid(tk, makerAsk(), 1500); res.Executable {
		t.Error("ask vs ask must not execute")
	}

	// Maker bid routed through the bid entry point must not execute
	mk := makerAsk()
	mk.IsAsk = false
	if res := s.CanExecuteTakerBid(takerBid(), mk, 1500); res.Executable {
		t.Error("maker bid on the taker-bid path must not execute")
	}
}

func TestFixedPriceTakerAskAgainstMakerBid(t *testing.T) {
	s := NewFixedPrice()

	mk := makerAsk()
	mk.IsAsk = false
	tk := takerBid()
	tk.IsAsk = true

	res := s.CanExecuteTakerAsk(tk, mk, 1500)
	if !res.Executable {
		t.Fatal("selling taker against maker bid should execute")
	}
	if res.Price.Cmp(mk.Price) != 0 {
		t.Errorf("got price %s, want %s", res.Price, mk.Price)
	}
}

func TestFixedPricePartialQuantity(t *testing.T) {
	s := NewFixedPrice()

	mk := makerAsk()
	mk.Amount = big.NewInt(10)

	tk := takerBid()
	tk.Amount = big.NewInt(4)
	res := s.CanExecuteTakerBid(tk, mk, 1500)
	if !res.Executable {
		t.Fatal("taker quantity within maker quantity should execute")
	}
	if res.Amount.Cmp(big.NewInt(4)) != 0 {
		t.Errorf("got amount %s, want 4", res.Amount)
	}

	tk.Amount = big.NewInt(11)
	if res := s.CanExecuteTakerBid(tk, mk, 1500); res.Executable {
		t.Error("taker quantity above maker quantity must not execute")
	}

	tk.Amount = big.NewInt(0)
	if res := s.CanExecuteTakerBid(tk, mk, 1500); res.Executable {
		t.Error("zero quantity must not execute")
	}
}
