package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/openloot/exchange/pkg/engine"
	"github.com/openloot/exchange/pkg/order"
	"github.com/openloot/exchange/pkg/storage"
	"github.com/openloot/exchange/pkg/strategy"
)

// Server exposes settlement, cancellation and history over REST, plus a
// WebSocket feed of settlement events.
type Server struct {
	engine  *engine.Engine
	auction *strategy.HighestBidderAuction
	store   *storage.Store
	router  *mux.Router
	hub     *Hub
	log     *zap.SugaredLogger
}

func NewServer(eng *engine.Engine, auction *strategy.HighestBidderAuction, store *storage.Store, log *zap.SugaredLogger) *Server {
	s := &Server{
		engine:  eng,
		auction: auction,
		store:   store,
		router:  mux.NewRouter(),
		hub:     NewHub(log),
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/match", s.handleMatch).Methods("POST")
	api.HandleFunc("/auctions/bid", s.handleBid).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/accounts/{address}/nonce", s.handleGetNonce).Methods("GET")
	api.HandleFunc("/settlements", s.handleGetSettlements).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the HTTP server. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// BroadcastSettlement pushes a committed settlement to WebSocket clients
func (s *Server) BroadcastSettlement(rec *storage.SettlementRecord) {
	s.hub.Broadcast(rec)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	maker, err := makerFromPayload(&req.Maker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	taker, err := takerFromPayload(&req.Taker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	sigBytes, err := decodeHex(req.Signature.Bytes)
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "malformed signature hex")
		return
	}
	sig := order.Signature{Scheme: order.SigScheme(req.Signature.Scheme), Bytes: sigBytes}

	takerSig, err := decodeHex(req.TakerSignature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "malformed taker signature hex")
		return
	}
	// The request body names the taker; only the taker's own signature may
	// commit that account's funds or assets.
	if err := s.engine.AuthorizeTaker(taker, maker, takerSig); err != nil {
		respondError(w, http.StatusUnauthorized, "InvalidSignature", err.Error())
		return
	}

	var rec *storage.SettlementRecord
	if maker.IsAsk {
		rec, err = s.engine.MatchAskWithTakerBid(taker, maker, sig)
	} else {
		rec, err = s.engine.MatchBidWithTakerAsk(taker, maker, sig)
	}
	if err != nil {
		status, code := settlementError(err)
		respondError(w, status, code, err.Error())
		return
	}

	respondJSON(w, rec)
}

func (s *Server) handleBid(w http.ResponseWriter, r *http.Request) {
	var req BidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	maker, err := makerFromPayload(&req.Maker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if !common.IsHexAddress(req.Bidder) {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "invalid bidder address")
		return
	}
	amount, err := parseBig(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "invalid bid amount")
		return
	}
	sigBytes, err := decodeHex(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "malformed signature hex")
		return
	}

	bidder := common.HexToAddress(req.Bidder)
	if err := s.engine.AuthorizeBid(maker, bidder, amount, sigBytes); err != nil {
		respondError(w, http.StatusUnauthorized, "InvalidSignature", err.Error())
		return
	}

	// Solvency gate at bid time; balances can still drain before close, in
	// which case the failed settlement evicts the bid.
	balance, err := s.engine.CurrencyBalance(maker.Currency, bidder)
	if err != nil {
		status, code := settlementError(err)
		respondError(w, status, code, err.Error())
		return
	}
	if balance.Cmp(amount) < 0 {
		respondError(w, http.StatusConflict, "InsufficientFunds", "bidder cannot cover the bid")
		return
	}

	if err := s.auction.RecordBid(maker, bidder, amount, s.engine.Clock().Now().Unix()); err != nil {
		status := http.StatusConflict
		if errors.Is(err, strategy.ErrAuctionClosed) {
			status = http.StatusGone
		}
		respondError(w, status, "BidRejected", err.Error())
		return
	}

	respondJSON(w, map[string]string{"status": "accepted"})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if !common.IsHexAddress(req.Account) {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "invalid account address")
		return
	}
	sigBytes, err := decodeHex(req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "malformed signature hex")
		return
	}

	cancel := &order.Cancel{
		Account:  common.HexToAddress(req.Account),
		All:      req.All,
		Nonce:    req.Nonce,
		MinNonce: req.MinNonce,
	}

	if err := s.engine.ApplyCancel(cancel, sigBytes); err != nil {
		status, code := settlementError(err)
		respondError(w, status, code, err.Error())
		return
	}

	respondJSON(w, map[string]string{"status": "cancelled"})
}

func (s *Server) handleGetNonce(w http.ResponseWriter, r *http.Request) {
	addressStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addressStr) {
		respondError(w, http.StatusBadRequest, "InvalidRequest", "invalid address")
		return
	}
	addr := common.HexToAddress(addressStr)

	minNonce, err := s.engine.MinNonce(addr)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "StorageError", err.Error())
		return
	}

	respondJSON(w, NonceResponse{Address: addr.Hex(), MinNonce: minNonce})
}

func (s *Server) handleGetSettlements(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := s.store.LoadRecentSettlements(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "StorageError", err.Error())
		return
	}
	if records == nil {
		records = []*storage.SettlementRecord{}
	}

	respondJSON(w, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Payload conversion
// ==============================

func makerFromPayload(p *MakerOrderPayload) (*order.MakerOrder, error) {
	if !common.IsHexAddress(p.Signer) {
		return nil, fmt.Errorf("invalid signer address")
	}
	if !common.IsHexAddress(p.Collection) {
		return nil, fmt.Errorf("invalid collection address")
	}
	if !common.IsHexAddress(p.Currency) {
		return nil, fmt.Errorf("invalid currency address")
	}
	tokenID, err := parseBig(p.TokenID)
	if err != nil {
		return nil, fmt.Errorf("invalid tokenId: %w", err)
	}
	amount, err := parseBig(p.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	price, err := parseBig(p.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price: %w", err)
	}
	params, err := decodeHexOptional(p.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid params hex: %w", err)
	}

	return &order.MakerOrder{
		Signer:     common.HexToAddress(p.Signer),
		IsAsk:      p.IsAsk,
		Collection: common.HexToAddress(p.Collection),
		TokenID:    tokenID,
		Amount:     amount,
		Price:      price,
		Currency:   common.HexToAddress(p.Currency),
		StartTime:  p.StartTime,
		EndTime:    p.EndTime,
		Nonce:      p.Nonce,
		Strategy:   order.StrategyID(p.Strategy),
		Params:     params,
	}, nil
}

func takerFromPayload(p *TakerOrderPayload) (*order.TakerOrder, error) {
	if !common.IsHexAddress(p.Taker) {
		return nil, fmt.Errorf("invalid taker address")
	}
	tokenID, err := parseBig(p.TokenID)
	if err != nil {
		return nil, fmt.Errorf("invalid tokenId: %w", err)
	}
	price, err := parseBig(p.Price)
	if err != nil {
		return nil, fmt.Errorf("invalid price: %w", err)
	}
	amount, err := parseBig(p.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	params, err := decodeHexOptional(p.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid params hex: %w", err)
	}

	return &order.TakerOrder{
		Taker:   common.HexToAddress(p.Taker),
		IsAsk:   p.IsAsk,
		TokenID: tokenID,
		Price:   price,
		Amount:  amount,
		Params:  params,
	}, nil
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty number")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("not a decimal number: %q", s)
	}
	return v, nil
}

func decodeHex(s string) ([]byte, error) {
	return hexutil.Decode(s)
}

func decodeHexOptional(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hexutil.Decode(s)
}

// settlementError maps an engine error to an HTTP status and a stable
// error identifier clients can match on.
func settlementError(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidSignature):
		return http.StatusUnauthorized, "InvalidSignature"
	case errors.Is(err, engine.ErrNonceAlreadyUsed):
		return http.StatusConflict, "NonceAlreadyUsed"
	case errors.Is(err, engine.ErrNonceBelowFloor):
		return http.StatusConflict, "NonceBelowFloor"
	case errors.Is(err, engine.ErrStrategyNotWhitelisted):
		return http.StatusBadRequest, "StrategyNotWhitelisted"
	case errors.Is(err, engine.ErrStrategyNotExecutable):
		return http.StatusConflict, "StrategyNotExecutable"
	case errors.Is(err, engine.ErrCurrencyNotWhitelisted):
		return http.StatusBadRequest, "CurrencyNotWhitelisted"
	case errors.Is(err, engine.ErrFeeLimitExceeded):
		return http.StatusBadRequest, "FeeLimitExceeded"
	case errors.Is(err, engine.ErrUnsupportedCollection):
		return http.StatusBadRequest, "UnsupportedCollection"
	case errors.Is(err, engine.ErrReentrantCall):
		return http.StatusConflict, "ReentrantCall"
	case errors.Is(err, engine.ErrTransferFailed):
		return http.StatusConflict, "TransferFailed"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: code, Message: message})
}
