package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
)

// RoyaltyRecord is the registry-validated royalty configuration for a
// collection. FeeBps is guaranteed by the registry to sit under the
// protocol ceiling at registration time.
type RoyaltyRecord struct {
	Recipient common.Address `json:"recipient"`
	FeeBps    uint16         `json:"feeBps"`
}

// SettlementRecord is the durable result of one successful match.
// Big integers travel as decimal strings so records survive JSON intact.
type SettlementRecord struct {
	OrderHash        common.Hash    `json:"orderHash"`
	Strategy         string         `json:"strategy"`
	Collection       common.Address `json:"collection"`
	TokenID          string         `json:"tokenId"`
	Amount           string         `json:"amount"`
	Currency         common.Address `json:"currency"`
	Price            string         `json:"price"`
	Seller           common.Address `json:"seller"`
	Buyer            common.Address `json:"buyer"`
	ProtocolFee      string         `json:"protocolFee"`
	RoyaltyFee       string         `json:"royaltyFee"`
	RoyaltyRecipient common.Address `json:"royaltyRecipient"`
	NetSeller        string         `json:"netSeller"`
	TakerIsAsk       bool           `json:"takerIsAsk"`
	Timestamp        int64          `json:"timestamp"` // unix milliseconds
}

// Store provides pebble-based persistence for the engine's entire durable
// footprint: nonce floors, consumed nonce flags, royalty records and
// settlement history.
type Store struct {
	db *pebble.DB
}

// NewStore opens a pebble database at the given path
func NewStore(dbPath string) (*Store, error) {
	opts := &pebble.Options{
		Cache:                    pebble.NewCache(128 << 20), // 128MB cache
		MemTableSize:             64 << 20,
		MaxConcurrentCompactions: func() int { return 3 },
		L0CompactionThreshold:    2,
		L0StopWritesThreshold:    12,
		LBaseMaxBytes:            64 << 20,
		MaxOpenFiles:             1000,
		BytesPerSync:             512 << 10,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ==============================
// Nonce state
// ==============================

// SetMinNonce persists an account's nonce floor
func (s *Store) SetMinNonce(addr common.Address, minNonce uint64) error {
	var val [8]byte
	binary.BigEndian.PutUint64(val[:], minNonce)
	if err := s.db.Set(floorKey(addr), val[:], pebble.Sync); err != nil {
		return fmt.Errorf("failed to save nonce floor: %w", err)
	}
	return nil
}

// MinNonce loads an account's nonce floor. Accounts start at floor 0.
func (s *Store) MinNonce(addr common.Address) (uint64, error) {
	val, closer, err := s.db.Get(floorKey(addr))
	if err == pebble.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get nonce floor: %w", err)
	}
	defer closer.Close()

	if len(val) != 8 {
		return 0, fmt.Errorf("corrupt nonce floor for %s: %d bytes", addr.Hex(), len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// SetNonceUsed marks one (account, nonce) pair consumed. The flag is never
// cleared.
func (s *Store) SetNonceUsed(addr common.Address, nonce uint64) error {
	if err := s.db.Set(usedNonceKey(addr, nonce), []byte{1}, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save consumed nonce: %w", err)
	}
	return nil
}

// IsNonceUsed reports whether (account, nonce) was consumed or cancelled
func (s *Store) IsNonceUsed(addr common.Address, nonce uint64) (bool, error) {
	_, closer, err := s.db.Get(usedNonceKey(addr, nonce))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get consumed nonce: %w", err)
	}
	closer.Close()
	return true, nil
}

// ==============================
// Royalty records
// ==============================

// SaveRoyalty persists a collection's royalty record
func (s *Store) SaveRoyalty(collection common.Address, rec *RoyaltyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal royalty record: %w", err)
	}
	if err := s.db.Set(royaltyKey(collection), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save royalty record: %w", err)
	}
	return nil
}

// LoadRoyalty loads a collection's royalty record.
// Returns nil if none was registered.
func (s *Store) LoadRoyalty(collection common.Address) (*RoyaltyRecord, error) {
	data, closer, err := s.db.Get(royaltyKey(collection))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get royalty record: %w", err)
	}
	defer closer.Close()

	var rec RoyaltyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal royalty record: %w", err)
	}
	return &rec, nil
}

// ==============================
// Settlement history
// ==============================

// SaveSettlement persists a settlement record. NoSync: history is an audit
// trail, not a correctness dependency of the next call.
func (s *Store) SaveSettlement(rec *SettlementRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal settlement: %w", err)
	}
	key := settlementKey(rec.Timestamp, rec.OrderHash)
	if err := s.db.Set(key, data, pebble.NoSync); err != nil {
		return fmt.Errorf("failed to save settlement: %w", err)
	}
	return nil
}

// LoadRecentSettlements loads the most recent N settlements, newest first
func (s *Store) LoadRecentSettlements(limit int) ([]*SettlementRecord, error) {
	prefix := settlementPrefix()
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open settlement iterator: %w", err)
	}
	defer iter.Close()

	var records []*SettlementRecord
	for iter.Last(); iter.Valid() && len(records) < limit; iter.Prev() {
		var rec SettlementRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // Skip invalid entries
		}
		records = append(records, &rec)
	}

	return records, nil
}
