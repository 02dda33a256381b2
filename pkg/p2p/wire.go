package p2p

import (
	"bytes"
	"encoding/gob"
)

// SettlementWire carries a gob-encoded storage.SettlementRecord over the
// gossip topic.
type SettlementWire struct {
	Record []byte
}

func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
