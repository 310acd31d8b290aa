package ring

import (
	"context"
	"fmt"

	"github.com/ringmesh/chordring/chorderr"
	"github.com/ringmesh/chordring/internal/log"
)

// Node drives the Chord protocol for a single peer: routing, stabilization
// and healing. It holds a *State and a Transport, and is safe for
// concurrent use — all mutation goes through State's locked accessors.
type Node struct {
	state     *State
	transport Transport

	// maxHops bounds find_successor forwarding (K_hops); 0 means use m.
	maxHops uint
}

// NewNode creates ring protocol state for self, founding a new ring.
func NewNode(self Peer, m uint, maxHops uint, transport Transport) *Node {
	if maxHops == 0 {
		maxHops = m
	}
	return &Node{
		state:     NewState(self, m),
		transport: transport,
		maxHops:   maxHops,
	}
}

// State exposes the underlying ring state (status(), tests, rehash hooks).
func (n *Node) State() *State { return n.state }

// Self is a shorthand for n.State().Self().
func (n *Node) Self() Peer { return n.state.Self() }

// Join attaches this node to the ring containing seed. A zero-value seed
// (IsZero()) means this node founds a new ring instead.
func (n *Node) Join(ctx context.Context, seed Peer) error {
	if seed.IsZero() {
		n.state.SetSuccessor(n.Self())
		n.state.ClearPredecessor()
		return nil
	}

	succ, err := n.transport.FindSuccessor(ctx, seed, n.Self().ID)
	if err != nil {
		return chorderr.New(chorderr.KindBootstrapUnavailable, "join", err)
	}
	n.state.SetSuccessor(succ)
	n.state.ClearPredecessor()
	return nil
}

// FindSuccessor resolves key to the peer that owns it, following the local
// rule first and forwarding via closest_preceding_finger otherwise.
func (n *Node) FindSuccessor(ctx context.Context, key Id) (Peer, error) {
	self := n.Self()
	succ := n.state.Successor()

	if succ.Equal(self) {
		return self, nil
	}
	if InRightClosed(key, self.ID, succ.ID) {
		return succ, nil
	}

	return n.forwardFindSuccessor(ctx, key)
}

// forwardFindSuccessor hops through closest_preceding_finger candidates,
// retrying the next eligible finger on timeout, up to maxHops. If every hop
// fails it returns the current best-known successor as a degraded answer —
// a routing failure, not a hard error, per the error taxonomy.
func (n *Node) forwardFindSuccessor(ctx context.Context, key Id) (Peer, error) {
	self := n.Self()
	tried := make(map[Id]bool)
	tried[self.ID] = true

	for hop := uint(0); hop < n.maxHops; hop++ {
		next := n.state.ClosestPrecedingFinger(key, tried)
		if next.Equal(self) {
			break
		}
		tried[next.ID] = true

		succ, err := n.transport.FindSuccessor(ctx, next, key)
		if err == nil {
			return succ, nil
		}
		log.Ring.Debug().Err(err).Str("hop", next.Addr()).Msg("find_successor hop failed, trying next finger")
	}

	return n.state.Successor(), chorderr.New(chorderr.KindRoutingFailed, "find_successor",
		fmt.Errorf("exhausted %d hops resolving key %d", n.maxHops, key))
}

// Notify processes an incoming notify(candidate) from another peer that
// believes it might be our predecessor.
func (n *Node) Notify(candidate Peer) {
	self := n.Self()
	pred, hasPred := n.state.Predecessor()

	if !hasPred || InOpen(candidate.ID, pred.ID, self.ID) {
		n.state.SetPredecessor(candidate)
	}
}

// GetPredecessor returns (predecessor, true) if set, else (zero, false).
func (n *Node) GetPredecessor() (Peer, bool) {
	return n.state.Predecessor()
}

// GetSuccessor returns the current successor.
func (n *Node) GetSuccessor() Peer {
	return n.state.Successor()
}

// UpdateSuccessor is the handler for the update_successor opcode, used
// during a neighbour's graceful leave.
func (n *Node) UpdateSuccessor(p Peer, has bool) {
	if has {
		n.state.SetSuccessor(p)
	} else {
		n.state.SetSuccessor(n.Self())
	}
}

// UpdatePredecessor is the handler for the update_predecessor opcode.
func (n *Node) UpdatePredecessor(p Peer, has bool) {
	if has {
		n.state.SetPredecessor(p)
	} else {
		n.state.ClearPredecessor()
	}
}
