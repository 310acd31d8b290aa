// Package chordnode assembles the ring, store, index, rehash and transport
// packages into the single public node API the command-line tools drive:
// join/leave the ring, put/get files, search, and report status.
package chordnode

import (
	"context"
	"fmt"

	"github.com/ringmesh/chordring/bootstrap"
	"github.com/ringmesh/chordring/config"
	"github.com/ringmesh/chordring/index"
	"github.com/ringmesh/chordring/internal/log"
	"github.com/ringmesh/chordring/internal/storage"
	"github.com/ringmesh/chordring/rehash"
	"github.com/ringmesh/chordring/ring"
	"github.com/ringmesh/chordring/ringevents"
	"github.com/ringmesh/chordring/store"
	"github.com/ringmesh/chordring/transport"
)

// Node is a fully assembled Chord peer: ring routing, maintenance, file
// store, inverted index, rehash engine, and its transport, wired together.
type Node struct {
	self   ring.Peer
	cfg    *config.Config
	ring   *ring.Node
	maint  *ring.Maintenance
	store  *store.Store
	index  *index.Index
	rehash *rehash.Engine

	transport interface {
		ring.Transport
		store.Transport
		index.Transport
		rehash.Transport
		Close() error
	}

	bootstrapClient *bootstrap.Client
	storeDB         storage.DB // non-nil only when Store.Backend == "badger"
	gossip          *ringevents.Gossip
	m               uint

	cancel context.CancelFunc
}

// closableLocal adapts *transport.Local (no real sockets, so no Close work
// to do) to the transport-with-Close shape New expects.
type closableLocal struct{ *transport.Local }

func (closableLocal) Close() error { return nil }

// New assembles a node from cfg, using an in-memory Local transport for
// single-process demos and tests when local is non-nil, and a libp2p
// transport otherwise.
func New(cfg *config.Config, local *transport.Local) (*Node, error) {
	m := uint(cfg.Ring.M)
	self := ring.NewPeer(cfg.Transport.ListenAddr, uint16(cfg.Transport.Port), m)

	maxHops := uint(cfg.Ring.MaxHops)
	if maxHops == 0 {
		maxHops = m
	}

	n := &Node{self: self, cfg: cfg, m: m}

	if local != nil {
		ringNode := ring.NewNode(self, m, maxHops, local)
		n.ring = ringNode
		st, db, err := newStore(cfg, ringNode, local)
		if err != nil {
			return nil, fmt.Errorf("new node: %w", err)
		}
		n.store = st
		n.storeDB = db
		n.index = index.New(ringNode, local)
		n.rehash = rehash.New(ringNode, n.store, local)
		local.Register(self.Addr(), ringNode, n.store, n.index)
		n.transport = closableLocal{local}
	} else {
		codec := selectCodec(cfg.Transport.Codec)
		lp, err := transport.NewLibP2P(self, m, codec, transport.Handlers{}, cfg.Transport.MaxInflight, cfg.Transport.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("new node: %w", err)
		}
		ringNode := ring.NewNode(self, m, maxHops, lp)
		n.ring = ringNode
		st, db, err := newStore(cfg, ringNode, lp)
		if err != nil {
			return nil, fmt.Errorf("new node: %w", err)
		}
		n.store = st
		n.storeDB = db
		n.index = index.New(ringNode, lp)
		n.rehash = rehash.New(ringNode, n.store, lp)
		lp.SetHandlers(transport.Handlers{Node: ringNode, Store: n.store, Index: n.index})
		n.transport = lp

		if !cfg.Transport.NoDiscover {
			networkID := cfg.Transport.NetworkID
			if networkID == "" {
				networkID = "chordring"
			}
			lp.StartMDNS(networkID)

			if cfg.Transport.WANDiscover {
				if err := lp.StartDHT(context.Background(), networkID, cfg.Transport.DHTServer); err != nil {
					log.Ring.Warn().Err(err).Msg("new node: kad-dht unavailable, relying on mDNS/bootstrap alone")
				}
			}

			gossip, err := ringevents.New(context.Background(), lp.Host(), self.Addr())
			if err != nil {
				log.Ring.Warn().Err(err).Msg("new node: ring-events gossip unavailable, relying on stabilize alone")
			} else {
				n.gossip = gossip
			}
		}
	}

	n.maint = ring.NewMaintenance(n.ring, ring.MaintenanceConfig{
		StabilizeInterval:        cfg.Ring.StabilizeInterval,
		FixFingersInterval:       cfg.Ring.FixFingersInterval,
		CheckPredecessorInterval: cfg.Ring.CheckPredecessorInterval,
		SuspectThreshold:         cfg.Ring.SuspectThreshold,
		RequestTimeout:           cfg.Transport.RequestTimeout,
	})
	n.maint.OnRehashPush = func(newSucc ring.Peer) {
		n.rehash.PushBackupToSuccessor(context.Background(), newSucc)
	}
	n.maint.OnHeal = func() {
		expected := n.store.AllBackup()
		names := make([]string, 0, len(expected))
		for _, r := range expected {
			names = append(names, r.Filename)
		}
		n.rehash.PromoteOnHeal(names)
	}

	if cfg.Bootstrap.Addr != "" {
		n.bootstrapClient = bootstrap.NewClient(cfg.Bootstrap.Addr, m, cfg.Transport.RequestTimeout)
	}

	return n, nil
}

// newStore builds the file store per cfg.Store.Backend: "memory" (default,
// spec §6's "Persisted state: None required by the core") or "badger", an
// optional durable backing opened at cfg.StoreDir().
func newStore(cfg *config.Config, ringNode *ring.Node, t interface {
	store.Transport
}) (*store.Store, storage.DB, error) {
	if cfg.Store.Backend != "badger" {
		return store.New(ringNode, t), nil, nil
	}
	db, err := storage.NewBadger(cfg.StoreDir())
	if err != nil {
		return nil, nil, fmt.Errorf("open badger store: %w", err)
	}
	return store.NewWithPersist(ringNode, t, store.NewPersist(db)), db, nil
}

func selectCodec(name string) transport.Codec {
	if name == "json" {
		return transport.JSONCodec{}
	}
	return transport.KVCodec{}
}

// Self returns this node's ring peer reference.
func (n *Node) Self() ring.Peer { return n.ring.Self() }

// Join attaches the node to a ring. If the node has a configured bootstrap
// registry, it registers first and uses a returned seed; a registry
// failure is logged, not fatal — the node falls back to founding a new
// ring (per spec §7's "joiner may elect to found a new ring").
func (n *Node) Join(ctx context.Context) error {
	seed := ring.Peer{}

	if n.bootstrapClient != nil {
		res, err := n.bootstrapClient.Register(n.self)
		if err != nil {
			log.Bootstrap.Warn().Err(err).Msg("join: bootstrap registry unreachable, founding a new ring")
		} else if res.Status == bootstrap.StatusJoined && len(res.Seeds) > 0 {
			seed = res.Seeds[0]
		}
	}

	if err := n.ring.Join(ctx, seed); err != nil {
		return err
	}

	if !seed.IsZero() {
		// Until stabilize runs, the successor's predecessor is also ours; a
		// successor with no predecessor owned the whole ring.
		succ := n.ring.GetSuccessor()
		predID := succ.ID
		if pred, ok, err := n.transport.GetPredecessor(ctx, succ); err == nil && ok {
			predID = pred.ID
		}
		n.rehash.PullOnJoin(ctx, predID)
	}

	if n.gossip != nil {
		n.gossip.Publish(ctx, ringevents.Event{Type: ringevents.EventJoin, Addr: n.self.Addr()})
	}
	return nil
}

// Run starts background stabilization; call Leave or cancel the returned
// context to stop it.
func (n *Node) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	go n.maint.Run(ctx)

	if n.gossip != nil {
		go n.gossip.Run(ctx, func(ev ringevents.Event) {
			if ev.Type != ringevents.EventJoin {
				return
			}
			peer, err := ring.ParsePeer(ev.Addr, n.m)
			if err != nil {
				return
			}
			n.maint.ProbeHint(ctx, peer)
		})
	}
}

// Leave performs a graceful departure (spec §4.D "leave"): hands off the
// primary and backup sets to neighbours, re-inserts local postings at
// their post-leave owners, notifies the bootstrap registry, and stops
// maintenance. It is idempotent and completes even if some handoffs fail.
func (n *Node) Leave(ctx context.Context) error {
	if n.cancel != nil {
		n.cancel()
	}

	handoff := n.ring.PrepareLeave()

	succ := handoff.Successor
	if !succ.Equal(n.self) {
		for _, r := range n.store.AllPrimary() {
			if err := n.transport.StoreFile(ctx, succ, r.Filename, r.Bytes, r.Key); err != nil {
				log.Ring.Warn().Err(err).Str("filename", r.Filename).Msg("leave: primary handoff failed")
			}
		}
		if err := n.transport.PushBackup(ctx, succ, n.store.AllBackup()); err != nil {
			log.Ring.Warn().Err(err).Msg("leave: backup handoff failed")
		}
	}

	n.index.ReInsertAll(ctx)
	n.ring.NotifyNeighboursOfLeave(ctx, handoff)

	if n.bootstrapClient != nil {
		if err := n.bootstrapClient.Unregister(n.self); err != nil {
			log.Bootstrap.Debug().Err(err).Msg("leave: bootstrap unregister failed")
		}
	}

	if n.gossip != nil {
		n.gossip.Publish(ctx, ringevents.Event{Type: ringevents.EventLeave, Addr: n.self.Addr()})
		n.gossip.Close()
	}

	_ = n.transport.Close()
	if n.storeDB != nil {
		if err := n.storeDB.Close(); err != nil {
			log.Store.Warn().Err(err).Msg("leave: closing durable store failed")
		}
	}
	return nil
}

// Put stores filename's bytes at its owning peer.
func (n *Node) Put(ctx context.Context, filename string, data []byte) (store.Result, error) {
	res, err := n.store.Put(ctx, filename, data)
	if err != nil {
		return res, err
	}
	n.index.IndexFile(ctx, filename, uint64(len(data)))
	return res, nil
}

// Get retrieves filename's bytes.
func (n *Node) Get(ctx context.Context, filename string) ([]byte, error) {
	return n.store.Get(ctx, filename)
}

// Search runs a keyword search across the distributed inverted index.
func (n *Node) Search(ctx context.Context, query string) ([]index.Hit, error) {
	return n.index.Search(ctx, query)
}

// Status is the status() endpoint's result (spec §6).
type Status struct {
	Self              ring.Peer
	Successor         ring.Peer
	Predecessor       ring.Peer
	HasPredecessor    bool
	Fingers           []ring.Peer
	LocalPrimaryCount int
	LocalBackupCount  int
	IndexSize         int
	LostKeys          []string
}

// Status reports this node's current ring position and holdings.
func (n *Node) Status() Status {
	pred, hasPred := n.ring.GetPredecessor()
	return Status{
		Self:              n.self,
		Successor:         n.ring.GetSuccessor(),
		Predecessor:       pred,
		HasPredecessor:    hasPred,
		Fingers:           n.ring.State().Fingers(),
		LocalPrimaryCount: n.store.PrimaryCount(),
		LocalBackupCount:  n.store.BackupCount(),
		IndexSize:         n.index.Size(),
		LostKeys:          n.rehash.LostKeys,
	}
}
