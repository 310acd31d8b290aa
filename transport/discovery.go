package transport

import (
	"context"
	"fmt"
	"time"

	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	drouting "github.com/libp2p/go-libp2p/p2p/discovery/routing"
	dutil "github.com/libp2p/go-libp2p/p2p/discovery/util"

	"github.com/ringmesh/chordring/internal/log"
)

// dhtDiscoveryInterval is how often the DHT's routing discovery re-scans
// for peers advertising under the same rendezvous string.
const dhtDiscoveryInterval = 30 * time.Second

// discoveryNotifee handles mDNS peer-found notifications by opening a
// best-effort libp2p connection, grounded on the teacher's
// internal/p2p/discovery.go. This warms the connection the Chord-level
// dial() would otherwise establish lazily on the first RPC; it never
// substitutes for the bootstrap registry or the ring protocol, both of
// which identify peers by host:port rather than libp2p peer ID.
type discoveryNotifee struct {
	t *LibP2P
}

func (d *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == d.t.host.ID() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.t.host.Connect(ctx, pi); err != nil {
		log.Transport.Debug().Str("peer", pi.ID.String()).Err(err).Msg("mdns: connect failed")
	}
}

// StartMDNS starts LAN peer discovery under the given rendezvous string
// (typically the ring's NetworkID). Failure is non-fatal — Chord's
// correctness never depends on it, only on the bootstrap registry and the
// stabilize/notify protocol.
func (t *LibP2P) StartMDNS(rendezvous string) {
	svc := mdns.NewMdnsService(t.host, rendezvous, &discoveryNotifee{t: t})
	if err := svc.Start(); err != nil {
		log.Transport.Warn().Err(err).Msg("mdns: start failed, LAN discovery disabled")
	}
}

// StartDHT bootstraps a Kademlia DHT (go-libp2p-kad-dht) and advertises this
// host under rendezvous, so peers beyond mDNS's LAN reach can still find
// each other — grounded on the teacher's internal/p2p/node.go initDHT /
// runDHTDiscovery / findDHTPeers. Like mDNS, this never substitutes for the
// bootstrap registry or the ring protocol: it only warms libp2p's peerstore
// with addresses so a later Chord-level dial succeeds without waiting on
// stabilize alone. ctx governs the DHT's lifetime; cancel it to stop the
// background discovery loop.
func (t *LibP2P) StartDHT(ctx context.Context, rendezvous string, serverMode bool) error {
	mode := dht.ModeClient
	if serverMode {
		mode = dht.ModeServer
	}
	kadDHT, err := dht.New(ctx, t.host, dht.Mode(mode))
	if err != nil {
		return fmt.Errorf("create kad-dht: %w", err)
	}
	if err := kadDHT.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap kad-dht: %w", err)
	}
	t.dht = kadDHT

	routingDiscovery := drouting.NewRoutingDiscovery(kadDHT)
	dutil.Advertise(ctx, routingDiscovery, rendezvous)
	go t.runDHTDiscovery(ctx, routingDiscovery, rendezvous)
	return nil
}

func (t *LibP2P) runDHTDiscovery(ctx context.Context, routingDiscovery *drouting.RoutingDiscovery, rendezvous string) {
	ticker := time.NewTicker(dhtDiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.findDHTPeers(ctx, routingDiscovery, rendezvous)
		}
	}
}

func (t *LibP2P) findDHTPeers(ctx context.Context, routingDiscovery *drouting.RoutingDiscovery, rendezvous string) {
	findCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	peerCh, err := routingDiscovery.FindPeers(findCtx, rendezvous)
	if err != nil {
		return
	}
	for pi := range peerCh {
		if pi.ID == t.host.ID() || len(pi.Addrs) == 0 {
			continue
		}
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		if err := t.host.Connect(connectCtx, pi); err != nil {
			log.Transport.Debug().Str("peer", pi.ID.String()).Err(err).Msg("dht: connect failed")
		}
		connectCancel()
	}
}
