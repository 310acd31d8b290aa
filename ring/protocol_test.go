package ring

import (
	"context"
	"testing"
)

// fakeTransport dispatches directly to in-process Node instances, keyed by
// address. It exists only to exercise the protocol logic without sockets.
type fakeTransport struct {
	nodes map[string]*Node
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{nodes: make(map[string]*Node)}
}

func (f *fakeTransport) register(n *Node) {
	f.nodes[n.Self().Addr()] = n
}

func (f *fakeTransport) FindSuccessor(ctx context.Context, target Peer, key Id) (Peer, error) {
	return f.nodes[target.Addr()].FindSuccessor(ctx, key)
}

func (f *fakeTransport) GetPredecessor(ctx context.Context, target Peer) (Peer, bool, error) {
	p, ok := f.nodes[target.Addr()].GetPredecessor()
	return p, ok, nil
}

func (f *fakeTransport) GetSuccessor(ctx context.Context, target Peer) (Peer, error) {
	return f.nodes[target.Addr()].GetSuccessor(), nil
}

func (f *fakeTransport) Notify(ctx context.Context, target Peer, candidate Peer) error {
	f.nodes[target.Addr()].Notify(candidate)
	return nil
}

func (f *fakeTransport) Ping(ctx context.Context, target Peer) error {
	if _, ok := f.nodes[target.Addr()]; !ok {
		return errNotFoundPeer
	}
	return nil
}

func (f *fakeTransport) UpdateSuccessor(ctx context.Context, target Peer, newSucc Peer, has bool) error {
	f.nodes[target.Addr()].UpdateSuccessor(newSucc, has)
	return nil
}

func (f *fakeTransport) UpdatePredecessor(ctx context.Context, target Peer, newPred Peer, has bool) error {
	f.nodes[target.Addr()].UpdatePredecessor(newPred, has)
	return nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errNotFoundPeer = fakeErr("peer not registered")

func TestRingOfOne(t *testing.T) {
	ft := newFakeTransport()
	a := NewNode(NewPeer("a", 4001, 16), 16, 0, ft)
	ft.register(a)

	if err := a.Join(context.Background(), Peer{}); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if !a.State().IsRingOfOne() {
		t.Fatal("expected ring of one after founding")
	}

	got, err := a.FindSuccessor(context.Background(), HashString("alpha.txt", 16))
	if err != nil {
		t.Fatalf("FindSuccessor: %v", err)
	}
	if !got.Equal(a.Self()) {
		t.Fatalf("FindSuccessor in ring of one = %v, want self", got)
	}
}

func TestTwoPeerJoinAndStabilize(t *testing.T) {
	ft := newFakeTransport()
	a := NewNode(NewPeer("a", 4001, 16), 16, 0, ft)
	ft.register(a)
	if err := a.Join(context.Background(), Peer{}); err != nil {
		t.Fatalf("A.Join: %v", err)
	}

	b := NewNode(NewPeer("b", 4002, 16), 16, 0, ft)
	ft.register(b)
	if err := b.Join(context.Background(), a.Self()); err != nil {
		t.Fatalf("B.Join: %v", err)
	}

	cfg := MaintenanceConfig{
		StabilizeInterval:        1,
		FixFingersInterval:       1,
		CheckPredecessorInterval: 1,
		SuspectThreshold:         2,
		RequestTimeout:           1,
	}
	ma := NewMaintenance(a, cfg)
	mb := NewMaintenance(b, cfg)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ma.stabilize(ctx)
		mb.stabilize(ctx)
	}

	if !a.GetSuccessor().Equal(b.Self()) {
		t.Fatalf("A.successor = %v, want B", a.GetSuccessor())
	}
	if !b.GetSuccessor().Equal(a.Self()) {
		t.Fatalf("B.successor = %v, want A", b.GetSuccessor())
	}
	pa, hasA := a.GetPredecessor()
	if !hasA || !pa.Equal(b.Self()) {
		t.Fatalf("A.predecessor = %v, want B", pa)
	}
	pb, hasB := b.GetPredecessor()
	if !hasB || !pb.Equal(a.Self()) {
		t.Fatalf("B.predecessor = %v, want A", pb)
	}
}
