package transport

import (
	"context"
	"sync"

	"github.com/ringmesh/chordring/chorderr"
	"github.com/ringmesh/chordring/index"
	"github.com/ringmesh/chordring/ring"
	"github.com/ringmesh/chordring/store"
)

// localPeer bundles the per-peer handlers a Local transport dispatches to.
// Not every field is set for every test — chordnode wires all three when
// assembling a full node, package tests may register just a ring.Node.
type localPeer struct {
	node  *ring.Node
	store *store.Store
	index *index.Index
}

// Local is an in-memory transport connecting every registered peer in the
// same process, with no sockets or serialization. It satisfies
// ring.Transport, store.Transport, index.Transport, and rehash.Transport
// simultaneously, so a single Local instance can back a multi-node ring
// entirely within one test binary or demo.
type Local struct {
	mu    sync.RWMutex
	peers map[string]*localPeer
}

// NewLocal creates an empty in-memory transport.
func NewLocal() *Local {
	return &Local{peers: make(map[string]*localPeer)}
}

// Register wires addr's handlers into the transport. Any of node, st, idx
// may be nil if the caller only needs a subset of the RPC surface.
func (l *Local) Register(addr string, node *ring.Node, st *store.Store, idx *index.Index) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.peers[addr] = &localPeer{node: node, store: st, index: idx}
}

// Unregister removes addr, modeling that peer going permanently offline —
// subsequent calls to it return chorderr.ErrTransient.
func (l *Local) Unregister(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.peers, addr)
}

func (l *Local) get(addr string) (*localPeer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.peers[addr]
	if !ok {
		return nil, chorderr.New(chorderr.KindTransient, "local transport", errPeerOffline(addr))
	}
	return p, nil
}

type errPeerOffline string

func (e errPeerOffline) Error() string { return "peer " + string(e) + " is not registered" }

// --- ring.Transport ---

func (l *Local) FindSuccessor(ctx context.Context, target ring.Peer, key ring.Id) (ring.Peer, error) {
	p, err := l.get(target.Addr())
	if err != nil {
		return ring.Peer{}, err
	}
	return p.node.FindSuccessor(ctx, key)
}

func (l *Local) GetPredecessor(ctx context.Context, target ring.Peer) (ring.Peer, bool, error) {
	p, err := l.get(target.Addr())
	if err != nil {
		return ring.Peer{}, false, err
	}
	pred, ok := p.node.GetPredecessor()
	return pred, ok, nil
}

func (l *Local) GetSuccessor(ctx context.Context, target ring.Peer) (ring.Peer, error) {
	p, err := l.get(target.Addr())
	if err != nil {
		return ring.Peer{}, err
	}
	return p.node.GetSuccessor(), nil
}

func (l *Local) Notify(ctx context.Context, target, candidate ring.Peer) error {
	p, err := l.get(target.Addr())
	if err != nil {
		return err
	}
	p.node.Notify(candidate)
	return nil
}

func (l *Local) Ping(ctx context.Context, target ring.Peer) error {
	_, err := l.get(target.Addr())
	return err
}

func (l *Local) UpdateSuccessor(ctx context.Context, target, newSucc ring.Peer, has bool) error {
	p, err := l.get(target.Addr())
	if err != nil {
		return err
	}
	p.node.UpdateSuccessor(newSucc, has)
	return nil
}

func (l *Local) UpdatePredecessor(ctx context.Context, target, newPred ring.Peer, has bool) error {
	p, err := l.get(target.Addr())
	if err != nil {
		return err
	}
	p.node.UpdatePredecessor(newPred, has)
	return nil
}

// --- store.Transport ---

func (l *Local) StoreFile(ctx context.Context, target ring.Peer, filename string, data []byte, key ring.Id) error {
	p, err := l.get(target.Addr())
	if err != nil {
		return err
	}
	p.store.PutLocalPrimary(store.Record{Filename: filename, Bytes: data, Key: key})
	return nil
}

func (l *Local) GetFile(ctx context.Context, target ring.Peer, filename string) ([]byte, bool, error) {
	p, err := l.get(target.Addr())
	if err != nil {
		return nil, false, err
	}
	data, ok := p.store.GetLocal(filename)
	return data, ok, nil
}

// --- index.Transport ---

func (l *Local) StorePosting(ctx context.Context, target ring.Peer, token string, meta index.FileMetadata) error {
	p, err := l.get(target.Addr())
	if err != nil {
		return err
	}
	p.index.UpsertLocal(token, meta)
	return nil
}

func (l *Local) LookupToken(ctx context.Context, target ring.Peer, token string) ([]index.FileMetadata, error) {
	p, err := l.get(target.Addr())
	if err != nil {
		return nil, err
	}
	return p.index.LookupLocal(token), nil
}

// --- rehash.Transport ---

func (l *Local) TransferArc(ctx context.Context, target ring.Peer, lower, upper ring.Id) ([]store.Record, error) {
	p, err := l.get(target.Addr())
	if err != nil {
		return nil, err
	}
	return p.store.TransferArc(lower, upper), nil
}

func (l *Local) DeleteKeys(ctx context.Context, target ring.Peer, filenames []string) error {
	p, err := l.get(target.Addr())
	if err != nil {
		return err
	}
	p.store.DeleteKeys(filenames)
	return nil
}

func (l *Local) PushBackup(ctx context.Context, target ring.Peer, records []store.Record) error {
	p, err := l.get(target.Addr())
	if err != nil {
		return err
	}
	p.store.ReplaceBackup(records)
	return nil
}
