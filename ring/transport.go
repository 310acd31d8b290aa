package ring

import "context"

// Transport is the set of remote calls the ring protocol needs from any
// other peer. It is deliberately narrow — store and index define their own
// transport interfaces for file and posting traffic — so a single concrete
// transport (see package transport) can satisfy all of them structurally
// without ring importing store or index.
//
// The split mirrors the reference Transport shape in a Go Chord
// implementation (FindSuccessor / GetPredecessor / Notify / Ping), adapted
// to this ring's explicit predecessor/successor update opcodes for leave.
type Transport interface {
	// FindSuccessor asks target to resolve key, forwarding as needed.
	FindSuccessor(ctx context.Context, target Peer, key Id) (Peer, error)
	// GetPredecessor returns target's predecessor, if it has one.
	GetPredecessor(ctx context.Context, target Peer) (Peer, bool, error)
	// GetSuccessor returns target's successor, used during heal.
	GetSuccessor(ctx context.Context, target Peer) (Peer, error)
	// Notify tells target that candidate believes it might be its predecessor.
	Notify(ctx context.Context, target Peer, candidate Peer) error
	// Ping probes liveness; a nil error means target is alive.
	Ping(ctx context.Context, target Peer) error
	// UpdateSuccessor tells target to adopt newSucc as its successor
	// (has=false means clear it). Used during graceful leave.
	UpdateSuccessor(ctx context.Context, target Peer, newSucc Peer, has bool) error
	// UpdatePredecessor tells target to adopt newPred as its predecessor.
	UpdatePredecessor(ctx context.Context, target Peer, newPred Peer, has bool) error
}
