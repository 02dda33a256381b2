package main

import (
	"context"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/openloot/exchange/params"
	"github.com/openloot/exchange/pkg/api"
	"github.com/openloot/exchange/pkg/asset"
	"github.com/openloot/exchange/pkg/engine"
	"github.com/openloot/exchange/pkg/fees"
	"github.com/openloot/exchange/pkg/nonce"
	"github.com/openloot/exchange/pkg/order"
	"github.com/openloot/exchange/pkg/p2p"
	"github.com/openloot/exchange/pkg/storage"
	"github.com/openloot/exchange/pkg/strategy"
	"github.com/openloot/exchange/pkg/transfer"
	"github.com/openloot/exchange/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	store, err := storage.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	// ---- Order hashing & signatures ----
	codec := order.NewCodec(order.Domain{
		Name:              cfg.Chain.DomainName,
		Version:           cfg.Chain.DomainVersion,
		ChainID:           big.NewInt(cfg.Chain.ID),
		VerifyingContract: common.HexToAddress(cfg.Chain.VerifyingContract),
	})
	verifier := order.NewVerifier(codec)

	// ---- Strategies ----
	strategies := strategy.NewRegistry()
	auction := strategy.NewHighestBidderAuction()
	if err := strategies.Register(strategy.NewFixedPrice()); err != nil {
		sugar.Fatalw("strategy_register_failed", "err", err)
	}
	if err := strategies.Register(auction); err != nil {
		sugar.Fatalw("strategy_register_failed", "err", err)
	}

	// ---- Fees ----
	royalties := fees.NewRoyaltyRegistry(store, cfg.Fees.RoyaltyCeilingBps)
	resolver := fees.NewResolver(royalties, cfg.Fees.ProtocolFeeBps, common.HexToAddress(cfg.Fees.ProtocolRecipient))

	// ---- Assets ----
	router := transfer.NewRouter()
	currencies := asset.NewCurrencyRegistry()
	registerAssetsFromEnv(router, currencies, sugar)

	eng := engine.New(engine.Config{
		Codec:      codec,
		Verifier:   verifier,
		Nonces:     nonce.NewLedger(store),
		Strategies: strategies,
		Resolver:   resolver,
		Router:     router,
		Currencies: currencies,
		Store:      store,
		Logger:     sugar,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Settlement gossip (optional) ----
	var announcer *p2p.Announcer
	if cfg.Node.Listen != "" {
		announcer, err = p2p.NewAnnouncer(ctx, p2p.Config{
			ListenAddr: cfg.Node.Listen,
			Bootstrap:  splitList(os.Getenv("BOOTSTRAP")),
			Logger:     sugar,
		})
		if err != nil {
			sugar.Fatalw("p2p_init_failed", "err", err)
		}
		defer announcer.Close()
		announcer.SetInboundHandler(func(rec *storage.SettlementRecord) {
			sugar.Infow("peer_settlement",
				"order", rec.OrderHash.Hex(),
				"collection", rec.Collection.Hex(),
				"price", rec.Price)
		})
	}

	// ---- API Server ----
	apiServer := api.NewServer(eng, auction, store, sugar)

	// Fan committed settlements out to WebSocket clients and peers
	eng.OnSettlement = func(rec *storage.SettlementRecord) {
		apiServer.BroadcastSettlement(rec)
		if announcer != nil {
			if err := announcer.PublishSettlement(ctx, rec); err != nil {
				sugar.Warnw("settlement_publish_failed", "order", rec.OrderHash.Hex(), "err", err)
			}
		}
	}

	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("exchange_started",
		"chain_id", cfg.Chain.ID,
		"domain", cfg.Chain.DomainName,
		"protocol_fee_bps", cfg.Fees.ProtocolFeeBps,
		"royalty_ceiling_bps", cfg.Fees.RoyaltyCeilingBps,
		"api_addr", cfg.Node.APIAddr,
		"gossip", cfg.Node.Listen != "")

	<-ctx.Done()
	sugar.Info("shutting down")
}

// registerAssetsFromEnv whitelists collections and currencies from env vars:
//
//	COLLECTIONS=0xabc..:unique,0xdef..:multi
//	CURRENCIES=0x123..,0x456..
//
// Collections default to the unique standard when no suffix is given.
func registerAssetsFromEnv(router *transfer.Router, currencies *asset.CurrencyRegistry, sugar *zap.SugaredLogger) {
	for _, entry := range splitList(os.Getenv("COLLECTIONS")) {
		addrStr, standard := entry, "unique"
		if i := strings.IndexByte(entry, ':'); i >= 0 {
			addrStr, standard = entry[:i], entry[i+1:]
		}
		if !common.IsHexAddress(addrStr) {
			sugar.Warnw("collection_skipped", "entry", entry)
			continue
		}
		addr := common.HexToAddress(addrStr)

		var col asset.Collection
		switch standard {
		case "multi":
			col = asset.NewMultiCollection(addr)
		default:
			col = asset.NewUniqueCollection(addr)
		}
		if err := router.RegisterCollection(col); err != nil {
			sugar.Warnw("collection_register_failed", "addr", addr.Hex(), "err", err)
			continue
		}
		sugar.Infow("collection_registered", "addr", addr.Hex(), "standard", standard)
	}

	for _, addrStr := range splitList(os.Getenv("CURRENCIES")) {
		if !common.IsHexAddress(addrStr) {
			sugar.Warnw("currency_skipped", "entry", addrStr)
			continue
		}
		addr := common.HexToAddress(addrStr)
		if err := currencies.Register(asset.NewCurrency(addr)); err != nil {
			sugar.Warnw("currency_register_failed", "addr", addr.Hex(), "err", err)
			continue
		}
		sugar.Infow("currency_registered", "addr", addr.Hex())
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
