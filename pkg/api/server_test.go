package api

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"github.com/openloot/exchange/pkg/asset"
	"github.com/openloot/exchange/pkg/crypto"
	"github.com/openloot/exchange/pkg/engine"
	"github.com/openloot/exchange/pkg/fees"
	"github.com/openloot/exchange/pkg/nonce"
	"github.com/openloot/exchange/pkg/order"
	"github.com/openloot/exchange/pkg/storage"
	"github.com/openloot/exchange/pkg/strategy"
	"github.com/openloot/exchange/pkg/transfer"
	"github.com/openloot/exchange/pkg/util"
)

var (
	testCollectionAddr = common.HexToAddress("0x00000000000000000000000000000000000000AA")
	testCurrencyAddr   = common.HexToAddress("0x00000000000000000000000000000000000000CC")
	testProtocolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000FE")
)

// apiFixture runs a full server over a temp store: token 7 minted to the
// seller, the taker and the victim each funded with 1000 of the whitelisted
// currency. The engine clock is pinned inside the makers' [1000, 2000)
// window.
type apiFixture struct {
	server     *Server
	codec      *order.Codec
	auction    *strategy.HighestBidderAuction
	collection *asset.UniqueCollection
	currency   *asset.Currency
	seller     *crypto.Signer
	taker      *crypto.Signer
	victim     *crypto.Signer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	codec := order.NewCodec(order.Domain{
		Name:              "OpenLoot Exchange",
		Version:           "1",
		ChainID:           big.NewInt(1337),
		VerifyingContract: common.HexToAddress("0xEE"),
	})
	verifier := order.NewVerifier(codec)

	seller, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	taker, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	victim, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	collection := asset.NewUniqueCollection(testCollectionAddr)
	if err := collection.Mint(seller.Address(), big.NewInt(7)); err != nil {
		t.Fatalf("mint token: %v", err)
	}
	router := transfer.NewRouter()
	if err := router.RegisterCollection(collection); err != nil {
		t.Fatalf("register collection: %v", err)
	}

	currency := asset.NewCurrency(testCurrencyAddr)
	if err := currency.Mint(taker.Address(), big.NewInt(1000)); err != nil {
		t.Fatalf("mint currency: %v", err)
	}
	if err := currency.Mint(victim.Address(), big.NewInt(1000)); err != nil {
		t.Fatalf("mint currency: %v", err)
	}
	currencies := asset.NewCurrencyRegistry()
	if err := currencies.Register(currency); err != nil {
		t.Fatalf("register currency: %v", err)
	}

	strategies := strategy.NewRegistry()
	auction := strategy.NewHighestBidderAuction()
	if err := strategies.Register(strategy.NewFixedPrice()); err != nil {
		t.Fatalf("register strategy: %v", err)
	}
	if err := strategies.Register(auction); err != nil {
		t.Fatalf("register strategy: %v", err)
	}

	eng := engine.New(engine.Config{
		Codec:      codec,
		Verifier:   verifier,
		Nonces:     nonce.NewLedger(store),
		Strategies: strategies,
		Resolver:   fees.NewResolver(fees.NewRoyaltyRegistry(store, 1000), 200, testProtocolAddr),
		Router:     router,
		Currencies: currencies,
		Store:      store,
		Clock:      util.FixedClock{T: time.Unix(1500, 0)},
	})

	return &apiFixture{
		server:     NewServer(eng, auction, store, zap.NewNop().Sugar()),
		codec:      codec,
		auction:    auction,
		collection: collection,
		currency:   currency,
		seller:     seller,
		taker:      taker,
		victim:     victim,
	}
}

func (f *apiFixture) post(t *testing.T, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.server.router.ServeHTTP(rr, req)
	return rr
}

// fixedPriceAsk returns a signed fixed-price ask for token 7 at 100.
func (f *apiFixture) fixedPriceAsk(t *testing.T) (*order.MakerOrder, string) {
	t.Helper()
	maker := &order.MakerOrder{
		Signer:     f.seller.Address(),
		IsAsk:      true,
		Collection: testCollectionAddr,
		TokenID:    big.NewInt(7),
		Amount:     big.NewInt(1),
		Price:      big.NewInt(100),
		Currency:   testCurrencyAddr,
		StartTime:  1000,
		EndTime:    2000,
		Nonce:      1,
		Strategy:   strategy.StrategyFixedPrice,
	}
	hash, err := f.codec.Hash(maker)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	sigBytes, err := f.seller.Sign(hash.Bytes())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return maker, hexutil.Encode(sigBytes)
}

func (f *apiFixture) auctionAsk(t *testing.T) *order.MakerOrder {
	t.Helper()
	return &order.MakerOrder{
		Signer:     f.seller.Address(),
		IsAsk:      true,
		Collection: testCollectionAddr,
		TokenID:    big.NewInt(7),
		Amount:     big.NewInt(1),
		Price:      big.NewInt(200),
		Currency:   testCurrencyAddr,
		StartTime:  1000,
		EndTime:    2000,
		Nonce:      1,
		Strategy:   strategy.StrategyHighestBidder,
	}
}

func makerPayload(m *order.MakerOrder) MakerOrderPayload {
	return MakerOrderPayload{
		Signer:     m.Signer.Hex(),
		IsAsk:      m.IsAsk,
		Collection: m.Collection.Hex(),
		TokenID:    m.TokenID.String(),
		Amount:     m.Amount.String(),
		Price:      m.Price.String(),
		Currency:   m.Currency.Hex(),
		StartTime:  m.StartTime,
		EndTime:    m.EndTime,
		Nonce:      m.Nonce,
		Strategy:   string(m.Strategy),
	}
}

// signTaker produces the taker-side authorization: key signs the taker order
// bound to the maker's fingerprint.
func (f *apiFixture) signTaker(t *testing.T, key *crypto.Signer, taker *order.TakerOrder, maker *order.MakerOrder) string {
	t.Helper()
	makerHash, err := f.codec.Hash(maker)
	if err != nil {
		t.Fatalf("hash maker: %v", err)
	}
	takerHash, err := f.codec.HashTaker(taker, makerHash)
	if err != nil {
		t.Fatalf("hash taker: %v", err)
	}
	sigBytes, err := key.Sign(takerHash.Bytes())
	if err != nil {
		t.Fatalf("sign taker: %v", err)
	}
	return hexutil.Encode(sigBytes)
}

func (f *apiFixture) signBid(t *testing.T, key *crypto.Signer, bidder common.Address, amount *big.Int, maker *order.MakerOrder) string {
	t.Helper()
	makerHash, err := f.codec.Hash(maker)
	if err != nil {
		t.Fatalf("hash maker: %v", err)
	}
	bidHash, err := f.codec.HashBid(bidder, amount, makerHash)
	if err != nil {
		t.Fatalf("hash bid: %v", err)
	}
	sigBytes, err := key.Sign(bidHash.Bytes())
	if err != nil {
		t.Fatalf("sign bid: %v", err)
	}
	return hexutil.Encode(sigBytes)
}

func TestMatchSettlesWithTakerSignature(t *testing.T) {
	f := newAPIFixture(t)
	maker, makerSig := f.fixedPriceAsk(t)

	taker := &order.TakerOrder{
		Taker:   f.taker.Address(),
		IsAsk:   false,
		TokenID: big.NewInt(7),
		Price:   big.NewInt(100),
		Amount:  big.NewInt(1),
	}

	rr := f.post(t, "/api/v1/match", MatchRequest{
		Maker: makerPayload(maker),
		Taker: TakerOrderPayload{
			Taker:   taker.Taker.Hex(),
			TokenID: "7",
			Price:   "100",
			Amount:  "1",
		},
		Signature:      SignaturePayload{Scheme: uint8(order.SchemeECDSA), Bytes: makerSig},
		TakerSignature: f.signTaker(t, f.taker, taker, maker),
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if owner, _ := f.collection.OwnerOf(big.NewInt(7)); owner != f.taker.Address() {
		t.Errorf("got owner %s, want taker %s", owner.Hex(), f.taker.Address().Hex())
	}
	if got := f.currency.BalanceOf(f.taker.Address()); got.Cmp(big.NewInt(900)) != 0 {
		t.Errorf("got taker balance %s, want 900", got)
	}
}

func TestMatchRejectsTakerNamedByThirdParty(t *testing.T) {
	f := newAPIFixture(t)
	maker, makerSig := f.fixedPriceAsk(t)

	// The request names the victim as taker but is signed by someone else.
	// The victim's funds must not move.
	taker := &order.TakerOrder{
		Taker:   f.victim.Address(),
		IsAsk:   false,
		TokenID: big.NewInt(7),
		Price:   big.NewInt(100),
		Amount:  big.NewInt(1),
	}

	rr := f.post(t, "/api/v1/match", MatchRequest{
		Maker: makerPayload(maker),
		Taker: TakerOrderPayload{
			Taker:   taker.Taker.Hex(),
			TokenID: "7",
			Price:   "100",
			Amount:  "1",
		},
		Signature:      SignaturePayload{Scheme: uint8(order.SchemeECDSA), Bytes: makerSig},
		TakerSignature: f.signTaker(t, f.taker, taker, maker),
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401: %s", rr.Code, rr.Body.String())
	}
	if got := f.currency.BalanceOf(f.victim.Address()); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("victim balance moved: got %s, want 1000", got)
	}
	if owner, _ := f.collection.OwnerOf(big.NewInt(7)); owner != f.seller.Address() {
		t.Errorf("token moved: owner is %s", owner.Hex())
	}
}

func TestMatchRejectsMissingTakerSignature(t *testing.T) {
	f := newAPIFixture(t)
	maker, makerSig := f.fixedPriceAsk(t)

	rr := f.post(t, "/api/v1/match", MatchRequest{
		Maker: makerPayload(maker),
		Taker: TakerOrderPayload{
			Taker:   f.victim.Address().Hex(),
			TokenID: "7",
			Price:   "100",
			Amount:  "1",
		},
		Signature: SignaturePayload{Scheme: uint8(order.SchemeECDSA), Bytes: makerSig},
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400: %s", rr.Code, rr.Body.String())
	}
	if got := f.currency.BalanceOf(f.victim.Address()); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("victim balance moved: got %s, want 1000", got)
	}
}

func TestBidAcceptedFromFundedSigner(t *testing.T) {
	f := newAPIFixture(t)
	maker := f.auctionAsk(t)
	amount := big.NewInt(150)

	// Accepted only because the server shares the engine's pinned clock;
	// wall-clock time sits far outside the maker window.
	rr := f.post(t, "/api/v1/auctions/bid", BidRequest{
		Maker:     makerPayload(maker),
		Bidder:    f.taker.Address().Hex(),
		Amount:    amount.String(),
		Signature: f.signBid(t, f.taker, f.taker.Address(), amount, maker),
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if bidder, got, ok := f.auction.HighestBid(maker); !ok || bidder != f.taker.Address() || got.Cmp(amount) != 0 {
		t.Errorf("got top bid (%s, %s, %v), want (%s, 150, true)", bidder.Hex(), got, ok, f.taker.Address().Hex())
	}
}

func TestBidRejectsBidderNamedByThirdParty(t *testing.T) {
	f := newAPIFixture(t)
	maker := f.auctionAsk(t)
	amount := big.NewInt(150)

	// Bid names the victim but carries someone else's signature.
	rr := f.post(t, "/api/v1/auctions/bid", BidRequest{
		Maker:     makerPayload(maker),
		Bidder:    f.victim.Address().Hex(),
		Amount:    amount.String(),
		Signature: f.signBid(t, f.taker, f.victim.Address(), amount, maker),
	})

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401: %s", rr.Code, rr.Body.String())
	}
	if _, _, ok := f.auction.HighestBid(maker); ok {
		t.Error("forged bid must not be recorded")
	}
}

func TestBidRejectsInsolventBidder(t *testing.T) {
	f := newAPIFixture(t)
	maker := f.auctionAsk(t)

	broke, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	amount := big.NewInt(100000) // far beyond any funded balance

	rr := f.post(t, "/api/v1/auctions/bid", BidRequest{
		Maker:     makerPayload(maker),
		Bidder:    broke.Address().Hex(),
		Amount:    amount.String(),
		Signature: f.signBid(t, broke, broke.Address(), amount, maker),
	})

	if rr.Code != http.StatusConflict {
		t.Fatalf("got status %d, want 409: %s", rr.Code, rr.Body.String())
	}
	if _, _, ok := f.auction.HighestBid(maker); ok {
		t.Error("uncovered bid must not be recorded")
	}

	// A funded lower bid still gets through afterwards.
	low := big.NewInt(120)
	rr = f.post(t, "/api/v1/auctions/bid", BidRequest{
		Maker:     makerPayload(maker),
		Bidder:    f.taker.Address().Hex(),
		Amount:    low.String(),
		Signature: f.signBid(t, f.taker, f.taker.Address(), low, maker),
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("funded bid after rejected one: got status %d: %s", rr.Code, rr.Body.String())
	}
}
