package storage

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var testAddr = common.HexToAddress("0x00000000000000000000000000000000000000A1")

func TestMinNonceDefaultsToZero(t *testing.T) {
	s := newTestStore(t)

	floor, err := s.MinNonce(testAddr)
	if err != nil {
		t.Fatalf("min nonce: %v", err)
	}
	if floor != 0 {
		t.Errorf("got %d, want 0", floor)
	}
}

func TestSetAndGetMinNonce(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetMinNonce(testAddr, 42); err != nil {
		t.Fatalf("set: %v", err)
	}
	floor, err := s.MinNonce(testAddr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if floor != 42 {
		t.Errorf("got %d, want 42", floor)
	}
}

func TestNonceUsedFlag(t *testing.T) {
	s := newTestStore(t)

	used, err := s.IsNonceUsed(testAddr, 7)
	if err != nil {
		t.Fatalf("is used: %v", err)
	}
	if used {
		t.Error("fresh nonce should not be used")
	}

	if err := s.SetNonceUsed(testAddr, 7); err != nil {
		t.Fatalf("set used: %v", err)
	}
	used, err = s.IsNonceUsed(testAddr, 7)
	if err != nil {
		t.Fatalf("is used: %v", err)
	}
	if !used {
		t.Error("flagged nonce should report used")
	}

	// Neighbour untouched
	used, _ = s.IsNonceUsed(testAddr, 8)
	if used {
		t.Error("nonce 8 should not be used")
	}
}

func TestRoyaltyRoundtrip(t *testing.T) {
	s := newTestStore(t)
	col := common.HexToAddress("0xAA")

	rec, err := s.LoadRoyalty(col)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rec != nil {
		t.Fatal("unregistered collection should load nil")
	}

	want := &RoyaltyRecord{Recipient: common.HexToAddress("0xDD"), FeeBps: 500}
	if err := s.SaveRoyalty(col, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadRoyalty(col)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.Recipient != want.Recipient || got.FeeBps != want.FeeBps {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestLoadRecentSettlementsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	for i := int64(1); i <= 5; i++ {
		rec := &SettlementRecord{
			OrderHash: common.BigToHash(common.Big1),
			Price:     "100",
			Timestamp: i * 1000,
		}
		rec.OrderHash[31] = byte(i)
		if err := s.SaveSettlement(rec); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	records, err := s.LoadRecentSettlements(3)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	for i, want := range []int64{5000, 4000, 3000} {
		if records[i].Timestamp != want {
			t.Errorf("record %d: got timestamp %d, want %d", i, records[i].Timestamp, want)
		}
	}
}

func TestLoadRecentSettlementsEmpty(t *testing.T) {
	s := newTestStore(t)

	records, err := s.LoadRecentSettlements(10)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}
