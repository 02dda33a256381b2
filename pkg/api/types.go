package api

// Request/response DTOs for the REST endpoints. Big integers travel as
// decimal strings; byte blobs (signatures, strategy params) as 0x-hex.

type MakerOrderPayload struct {
	Signer     string `json:"signer"`
	IsAsk      bool   `json:"isAsk"`
	Collection string `json:"collection"`
	TokenID    string `json:"tokenId"`
	Amount     string `json:"amount"`
	Price      string `json:"price"`
	Currency   string `json:"currency"`
	StartTime  int64  `json:"startTime"`
	EndTime    int64  `json:"endTime"`
	Nonce      uint64 `json:"nonce"`
	Strategy   string `json:"strategy"`
	Params     string `json:"params,omitempty"` // 0x-hex, optional
}

type TakerOrderPayload struct {
	Taker   string `json:"taker"`
	IsAsk   bool   `json:"isAsk"`
	TokenID string `json:"tokenId"`
	Price   string `json:"price"`
	Amount  string `json:"amount"`
	Params  string `json:"params,omitempty"`
}

type SignaturePayload struct {
	Scheme uint8  `json:"scheme"` // 1 = ECDSA, 2 = delegated BLS
	Bytes  string `json:"bytes"`  // 0x-hex
}

type MatchRequest struct {
	Taker     TakerOrderPayload `json:"taker"`
	Maker     MakerOrderPayload `json:"maker"`
	Signature SignaturePayload  `json:"signature"`
	// TakerSignature is the taker's ECDSA signature over the taker order
	// bound to the maker fingerprint (0x-hex). Required: the HTTP caller is
	// not an authenticated sender.
	TakerSignature string `json:"takerSignature"`
}

type BidRequest struct {
	Maker     MakerOrderPayload `json:"maker"`
	Bidder    string            `json:"bidder"`
	Amount    string            `json:"amount"`
	Signature string            `json:"signature"` // bidder's ECDSA signature, 0x-hex
}

type CancelRequest struct {
	Account   string `json:"account"`
	All       bool   `json:"all"`
	Nonce     uint64 `json:"nonce,omitempty"`
	MinNonce  uint64 `json:"minNonce,omitempty"`
	Signature string `json:"signature"` // 0x-hex, ECDSA only
}

type NonceResponse struct {
	Address  string `json:"address"`
	MinNonce uint64 `json:"minNonce"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
