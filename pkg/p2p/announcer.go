package p2p

import (
	"context"
	"sync"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/openloot/exchange/pkg/storage"
)

const topicSettlements = "openloot-settlements"

// Announcer gossips settlement records to peer nodes so that off-node
// indexers and mirrors can follow the exchange without polling the API.
type Announcer struct {
	h     host.Host
	ps    *pubsub.PubSub
	log   *zap.SugaredLogger
	topic *pubsub.Topic
	sub   *pubsub.Subscription

	muH       sync.RWMutex
	onInbound func(*storage.SettlementRecord)
}

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Logger     *zap.SugaredLogger
}

func NewAnnouncer(ctx context.Context, cfg Config) (*Announcer, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}

	a := &Announcer{h: h, ps: ps, log: cfg.Logger}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil && cfg.Logger != nil {
			cfg.Logger.Warnw("bootstrap_connect_failed", "addr", bs, "err", err)
		}
	}

	if a.topic, err = ps.Join(topicSettlements); err != nil {
		return nil, err
	}
	if a.sub, err = a.topic.Subscribe(); err != nil {
		return nil, err
	}

	go a.handleInbound(ctx)

	if cfg.Logger != nil {
		cfg.Logger.Infow("libp2p_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr)
	}
	return a, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

func (a *Announcer) Host() host.Host { return a.h }

// SetInboundHandler installs the callback invoked for settlements published
// by other nodes. Locally published records are filtered out by peer ID.
func (a *Announcer) SetInboundHandler(fn func(*storage.SettlementRecord)) {
	a.muH.Lock()
	a.onInbound = fn
	a.muH.Unlock()
}

func (a *Announcer) PublishSettlement(ctx context.Context, rec *storage.SettlementRecord) error {
	rb, err := gobEncode(rec)
	if err != nil {
		return err
	}
	data, err := gobEncode(SettlementWire{Record: rb})
	if err != nil {
		return err
	}
	return a.topic.Publish(ctx, data)
}

func (a *Announcer) Close() error {
	a.sub.Cancel()
	return a.h.Close()
}

func (a *Announcer) handleInbound(ctx context.Context) {
	for {
		msg, err := a.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == a.h.ID() {
			continue
		}
		var w SettlementWire
		if err := gobDecode(msg.Data, &w); err != nil {
			continue
		}
		var rec storage.SettlementRecord
		if err := gobDecode(w.Record, &rec); err != nil {
			continue
		}

		a.muH.RLock()
		fn := a.onInbound
		a.muH.RUnlock()
		if fn != nil {
			fn(&rec)
		}
	}
}
