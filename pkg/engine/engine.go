// Package engine composes codec, verifier, nonce ledger, strategies, fee
// resolver and transfer router into one atomic settlement operation.
package engine

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/openloot/exchange/pkg/asset"
	"github.com/openloot/exchange/pkg/fees"
	"github.com/openloot/exchange/pkg/nonce"
	"github.com/openloot/exchange/pkg/order"
	"github.com/openloot/exchange/pkg/storage"
	"github.com/openloot/exchange/pkg/strategy"
	"github.com/openloot/exchange/pkg/transfer"
	"github.com/openloot/exchange/pkg/util"
)

// bidSettler is implemented by strategies that keep per-order state to drop
// once the order's nonce is consumed (the auction bid book).
type bidSettler interface {
	Settle(maker *order.MakerOrder)
}

// bidEvictor is implemented by strategies that track a winning bid and must
// drop it when the tracked bidder fails to settle.
type bidEvictor interface {
	EvictBid(maker *order.MakerOrder, bidder common.Address)
}

// Engine settles one maker order against one taker order. A call either
// completes every leg (asset, protocol fee, royalty, seller proceeds, nonce
// consumption) or leaves no state change behind.
type Engine struct {
	// inFlight is the reentrancy guard: set on entry, cleared on every
	// exit path. A second call while set fails with ErrReentrantCall.
	inFlight atomic.Bool

	codec      *order.Codec
	verifier   *order.Verifier
	nonces     *nonce.Ledger
	strategies *strategy.Registry
	resolver   *fees.Resolver
	router     *transfer.Router
	currencies *asset.CurrencyRegistry
	store      *storage.Store
	clock      util.Clock
	log        *zap.SugaredLogger

	// OnSettlement is invoked after a settlement is fully committed.
	// Callbacks must not call back into the engine; the reentrancy guard
	// is still held.
	OnSettlement func(rec *storage.SettlementRecord)
}

type Config struct {
	Codec      *order.Codec
	Verifier   *order.Verifier
	Nonces     *nonce.Ledger
	Strategies *strategy.Registry
	Resolver   *fees.Resolver
	Router     *transfer.Router
	Currencies *asset.CurrencyRegistry
	Store      *storage.Store
	Clock      util.Clock
	Logger     *zap.SugaredLogger
}

func New(cfg Config) *Engine {
	clock := cfg.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		codec:      cfg.Codec,
		verifier:   cfg.Verifier,
		nonces:     cfg.Nonces,
		strategies: cfg.Strategies,
		resolver:   cfg.Resolver,
		router:     cfg.Router,
		currencies: cfg.Currencies,
		store:      cfg.Store,
		clock:      clock,
		log:        log,
	}
}

// MatchAskWithTakerBid settles a buying taker against a maker ask: the
// asset moves maker → taker, funds move taker → (protocol, royalty, maker).
func (e *Engine) MatchAskWithTakerBid(taker *order.TakerOrder, maker *order.MakerOrder, sig order.Signature) (*storage.SettlementRecord, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	defer e.inFlight.Store(false)

	if !maker.IsAsk || taker.IsAsk {
		return nil, fmt.Errorf("%w: maker/taker side mismatch", ErrStrategyNotExecutable)
	}
	return e.settle(taker, maker, sig, false)
}

// MatchBidWithTakerAsk settles a selling taker against a maker bid: the
// asset moves taker → maker, funds move maker → (protocol, royalty, taker).
func (e *Engine) MatchBidWithTakerAsk(taker *order.TakerOrder, maker *order.MakerOrder, sig order.Signature) (*storage.SettlementRecord, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	defer e.inFlight.Store(false)

	if maker.IsAsk || !taker.IsAsk {
		return nil, fmt.Errorf("%w: maker/taker side mismatch", ErrStrategyNotExecutable)
	}
	return e.settle(taker, maker, sig, true)
}

// settle runs the shared pipeline. Guard ordering matters: every check that
// can fail runs before the first state mutation, and the mutations that
// remain are individually reversed on a later failure.
func (e *Engine) settle(taker *order.TakerOrder, maker *order.MakerOrder, sig order.Signature, takerIsAsk bool) (*storage.SettlementRecord, error) {
	strat, ok := e.strategies.Get(maker.Strategy)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStrategyNotWhitelisted, maker.Strategy)
	}

	// Single registry lookup doubling as the whitelist check; the ledger
	// handle stays valid even if the currency is delisted mid-settlement.
	funds, ok := e.currencies.Ledger(maker.Currency)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCurrencyNotWhitelisted, maker.Currency.Hex())
	}

	hash, err := e.verifier.VerifyOrder(maker, sig)
	if err != nil {
		return nil, err
	}

	if err := e.nonces.AssertConsumable(maker.Signer, maker.Nonce); err != nil {
		return nil, err
	}

	now := e.clock.Now().Unix()
	var res strategy.Result
	if takerIsAsk {
		res = strat.CanExecuteTakerAsk(taker, maker, now)
	} else {
		res = strat.CanExecuteTakerBid(taker, maker, now)
	}
	if !res.Executable {
		return nil, fmt.Errorf("%w: %s rejected order %s", ErrStrategyNotExecutable, maker.Strategy, hash.Hex())
	}

	col, ok := e.router.Collection(maker.Collection)
	if !ok {
		return nil, fmt.Errorf("%w: %s not registered", ErrUnsupportedCollection, maker.Collection.Hex())
	}

	split, err := e.resolver.Resolve(col, res.TokenID, res.Price)
	if err != nil {
		return nil, err
	}

	var buyer, seller common.Address
	if takerIsAsk {
		buyer, seller = maker.Signer, taker.Taker
	} else {
		buyer, seller = taker.Taker, maker.Signer
	}

	if funds.BalanceOf(buyer).Cmp(res.Price) < 0 {
		// An insolvent top bidder must not keep lower bidders locked out.
		if ev, ok := strat.(bidEvictor); ok {
			ev.EvictBid(maker, buyer)
		}
		return nil, fmt.Errorf("%w: buyer %s cannot cover %s", ErrTransferFailed, buyer.Hex(), res.Price)
	}

	// Asset leg first. From here on, any failure must unwind.
	if err := e.router.Transfer(maker.Collection, seller, buyer, res.TokenID, res.Amount); err != nil {
		return nil, err
	}
	revertAsset := func() {
		if rerr := e.router.Transfer(maker.Collection, buyer, seller, res.TokenID, res.Amount); rerr != nil {
			e.log.Errorw("asset_revert_failed", "order", hash.Hex(), "err", rerr)
		}
	}

	// Funds legs, each with its inverse queued for rollback.
	var undo []func()
	unwind := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		revertAsset()
	}
	pay := func(to common.Address, amount *big.Int) error {
		if err := funds.Transfer(buyer, to, amount); err != nil {
			return err
		}
		undo = append(undo, func() {
			if rerr := funds.Transfer(to, buyer, amount); rerr != nil {
				e.log.Errorw("funds_revert_failed", "order", hash.Hex(), "err", rerr)
			}
		})
		return nil
	}

	if err := pay(split.ProtocolRecipient, split.ProtocolFee); err != nil {
		revertAsset()
		return nil, fmt.Errorf("%w: protocol fee leg: %v", ErrTransferFailed, err)
	}
	if err := pay(split.RoyaltyRecipient, split.RoyaltyFee); err != nil {
		unwind()
		return nil, fmt.Errorf("%w: royalty leg: %v", ErrTransferFailed, err)
	}
	if err := pay(seller, split.NetSeller); err != nil {
		unwind()
		return nil, fmt.Errorf("%w: seller leg: %v", ErrTransferFailed, err)
	}

	// Consume the nonce last: the order is spent only once every transfer
	// leg has landed.
	if err := e.nonces.Consume(maker.Signer, maker.Nonce); err != nil {
		unwind()
		return nil, err
	}

	if bs, ok := strat.(bidSettler); ok {
		bs.Settle(maker)
	}

	rec := &storage.SettlementRecord{
		OrderHash:        hash,
		Strategy:         string(maker.Strategy),
		Collection:       maker.Collection,
		TokenID:          res.TokenID.String(),
		Amount:           res.Amount.String(),
		Currency:         maker.Currency,
		Price:            res.Price.String(),
		Seller:           seller,
		Buyer:            buyer,
		ProtocolFee:      split.ProtocolFee.String(),
		RoyaltyFee:       split.RoyaltyFee.String(),
		RoyaltyRecipient: split.RoyaltyRecipient,
		NetSeller:        split.NetSeller.String(),
		TakerIsAsk:       takerIsAsk,
		Timestamp:        e.clock.Now().UnixMilli(),
	}

	// History is an audit trail; a write failure does not unwind the
	// settled state.
	if err := e.store.SaveSettlement(rec); err != nil {
		e.log.Errorw("settlement_history_write_failed", "order", hash.Hex(), "err", err)
	}

	e.log.Infow("settlement",
		"order", hash.Hex(),
		"strategy", rec.Strategy,
		"collection", rec.Collection.Hex(),
		"token_id", rec.TokenID,
		"price", rec.Price,
		"seller", seller.Hex(),
		"buyer", buyer.Hex())

	if e.OnSettlement != nil {
		e.OnSettlement(rec)
	}

	return rec, nil
}

// ApplyCancel verifies a signed cancellation and applies it to the nonce
// ledger. With All set it raises the account floor, otherwise it voids the
// single nonce.
func (e *Engine) ApplyCancel(cancel *order.Cancel, sigBytes []byte) error {
	if err := e.verifier.VerifyCancel(cancel, sigBytes); err != nil {
		return err
	}

	if cancel.All {
		if err := e.nonces.CancelAll(cancel.Account, cancel.MinNonce); err != nil {
			return err
		}
		e.log.Infow("cancel_all", "account", cancel.Account.Hex(), "min_nonce", cancel.MinNonce)
		return nil
	}

	if err := e.nonces.Cancel(cancel.Account, cancel.Nonce); err != nil {
		return err
	}
	e.log.Infow("cancel", "account", cancel.Account.Hex(), "nonce", cancel.Nonce)
	return nil
}

// AuthorizeTaker checks a detached taker signature over the taker order
// bound to the maker's fingerprint. Remote callers have no transaction
// sender, so taker authorization must be explicit.
func (e *Engine) AuthorizeTaker(taker *order.TakerOrder, maker *order.MakerOrder, sigBytes []byte) error {
	hash, err := e.codec.Hash(maker)
	if err != nil {
		return fmt.Errorf("failed to hash order: %w", err)
	}
	return e.verifier.VerifyTaker(taker, hash, sigBytes)
}

// AuthorizeBid checks a detached bidder signature over an auction bid bound
// to the maker's fingerprint.
func (e *Engine) AuthorizeBid(maker *order.MakerOrder, bidder common.Address, amount *big.Int, sigBytes []byte) error {
	hash, err := e.codec.Hash(maker)
	if err != nil {
		return fmt.Errorf("failed to hash order: %w", err)
	}
	return e.verifier.VerifyBid(bidder, amount, hash, sigBytes)
}

// CurrencyBalance reads an account's balance in a whitelisted currency.
func (e *Engine) CurrencyBalance(currency, account common.Address) (*big.Int, error) {
	funds, ok := e.currencies.Ledger(currency)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCurrencyNotWhitelisted, currency.Hex())
	}
	return funds.BalanceOf(account), nil
}

// MinNonce exposes the account floor for API reads
func (e *Engine) MinNonce(account common.Address) (uint64, error) {
	return e.nonces.MinNonce(account)
}

// Codec returns the order codec (domain reads and owner updates)
func (e *Engine) Codec() *order.Codec { return e.codec }

// Clock returns the engine's time source so callers share one clock.
func (e *Engine) Clock() util.Clock { return e.clock }
