// Package ringevents broadcasts ring-membership change notices (join/leave)
// over a GossipSub topic, grounded on the teacher's heartbeat/tx/block
// topic-join-then-read-loop pattern (internal/p2p/heartbeat.go,
// internal/p2p/node.go's joinTopics/readLoop). It is purely an optimization
// layered above the authoritative protocol: stabilize and check_predecessor
// remain the only source of truth for ring shape (REDESIGN FLAG "pick one
// and document" — here we keep the registry/gossip layer advisory and the
// ring protocol authoritative). A node that never sees a gossip message
// still converges, just more slowly, via its own periodic fix_fingers ticks.
package ringevents

import (
	"context"
	"encoding/json"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"

	"github.com/ringmesh/chordring/internal/log"
)

// Topic is the GossipSub topic every ring member announcing or listening
// for membership changes joins.
const Topic = "chordring/ring-events/v1"

// EventType enumerates the two membership transitions worth announcing.
type EventType string

const (
	EventJoin  EventType = "join"
	EventLeave EventType = "leave"
)

// Event is the gossiped announcement body. Addr is the peer's host:port,
// the same identity Chord routes by; Gossip never carries ring state
// itself (successor/predecessor/fingers) since a stale gossip message
// could otherwise be mistaken for authoritative routing data.
type Event struct {
	Type EventType `json:"type"`
	Addr string    `json:"addr"`
}

// Handler is invoked for every event received from a peer other than self.
// Typical use: on EventJoin, pass the announced peer to
// ring.Maintenance.ProbeHint as a successor candidate instead of waiting
// for the next stabilize tick.
type Handler func(Event)

// Gossip joins the ring-events topic on h and publishes/receives Event
// messages. Construction does not start the read loop; call Run.
type Gossip struct {
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	sub   *pubsub.Subscription
	self  string
}

// New creates a GossipSub instance on h and joins the ring-events topic.
// selfAddr is this node's own host:port, used to ignore self-echoes.
func New(ctx context.Context, h host.Host, selfAddr string) (*Gossip, error) {
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, err
	}
	topic, err := ps.Join(Topic)
	if err != nil {
		return nil, err
	}
	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		return nil, err
	}
	return &Gossip{ps: ps, topic: topic, sub: sub, self: selfAddr}, nil
}

// Publish announces an event to the topic. Best-effort: publish failures
// are logged, never surfaced, mirroring §7's "errors during background
// maintenance are logged, not surfaced".
func (g *Gossip) Publish(ctx context.Context, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Ring.Debug().Err(err).Msg("ringevents: encode failed")
		return
	}
	if err := g.topic.Publish(ctx, data); err != nil {
		log.Ring.Debug().Err(err).Msg("ringevents: publish failed")
	}
}

// Run reads events until ctx is cancelled, invoking handler for every
// non-self event. Intended to run in its own goroutine alongside
// ring.Maintenance.Run.
func (g *Gossip) Run(ctx context.Context, handler Handler) {
	for {
		msg, err := g.sub.Next(ctx)
		if err != nil {
			return // ctx cancelled or subscription closed
		}
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			continue
		}
		if ev.Addr == g.self {
			continue
		}
		handler(ev)
	}
}

// Close tears down the subscription and topic handle. The underlying
// GossipSub router stops when ctx passed to New is cancelled.
func (g *Gossip) Close() {
	g.sub.Cancel()
	_ = g.topic.Close()
}
