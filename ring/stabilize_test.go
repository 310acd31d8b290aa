package ring

import (
	"context"
	"testing"
	"time"
)

func maintOf(n *Node) *Maintenance {
	return NewMaintenance(n, MaintenanceConfig{SuspectThreshold: 1, RequestTimeout: 2 * time.Second})
}

func TestProbeHintAdoptsCandidateBetweenSelfAndSuccessor(t *testing.T) {
	ft := newFakeTransport()
	a := NewNode(NewPeer("a", 4001, 16), 16, 0, ft)
	c := NewNode(NewPeer("c", 4003, 16), 16, 0, ft)
	ft.register(a)
	ft.register(c)

	if err := a.Join(context.Background(), Peer{}); err != nil {
		t.Fatalf("Join a: %v", err)
	}
	if err := c.Join(context.Background(), a.Self()); err != nil {
		t.Fatalf("Join c: %v", err)
	}
	// a's successor is still itself until stabilize runs; simulate the
	// pre-stabilize window a gossip hint would race against.
	a.state.SetSuccessor(a.Self())

	b := NewPeer("b", 4002, 16)
	// b isn't a registered transport peer, so Ping fails and the hint must
	// be ignored rather than adopted.
	m := maintOf(a)
	m.ProbeHint(context.Background(), b)
	if !a.GetSuccessor().Equal(a.Self()) {
		t.Fatalf("ProbeHint adopted an unreachable hint")
	}

	// c is reachable and a is a ring of one: ProbeHint then compares over
	// the full ring, so any non-self peer qualifies and c should be adopted.
	m.ProbeHint(context.Background(), c.Self())
	if !a.GetSuccessor().Equal(c.Self()) {
		t.Fatalf("ProbeHint did not adopt reachable candidate: got %v", a.GetSuccessor())
	}
}

func TestProbeHintIgnoresSelfAndCurrentSuccessor(t *testing.T) {
	ft := newFakeTransport()
	a := NewNode(NewPeer("a", 4001, 16), 16, 0, ft)
	ft.register(a)
	if err := a.Join(context.Background(), Peer{}); err != nil {
		t.Fatalf("Join: %v", err)
	}

	m := maintOf(a)
	before := a.GetSuccessor()
	m.ProbeHint(context.Background(), a.Self())
	m.ProbeHint(context.Background(), before)
	if !a.GetSuccessor().Equal(before) {
		t.Fatalf("ProbeHint should be a no-op for self/current successor")
	}
}

func TestRecoverSuccessorPushesBackupNotHeal(t *testing.T) {
	ft := newFakeTransport()
	a := NewNode(NewPeer("a", 4001, 16), 16, 0, ft)
	b := NewNode(NewPeer("b", 4002, 16), 16, 0, ft)
	ft.register(a)
	ft.register(b)

	if err := a.Join(context.Background(), Peer{}); err != nil {
		t.Fatalf("Join a: %v", err)
	}
	a.state.SetFinger(0, b.Self())
	a.state.SetSuccessor(NewPeer("dead", 4099, 16)) // unregistered, unreachable

	var healed bool
	var pushedTo Peer
	m := maintOf(a)
	m.OnHeal = func() { healed = true }
	m.OnRehashPush = func(p Peer) { pushedTo = p }

	m.recoverSuccessor(context.Background())

	if healed {
		t.Fatal("recoverSuccessor must not fire OnHeal: the successor side never inherits the dead peer's arc")
	}
	if !pushedTo.Equal(b.Self()) {
		t.Fatalf("recoverSuccessor should push a fresh backup to the adopted successor, pushed to %v", pushedTo)
	}
	if !a.GetSuccessor().Equal(b.Self()) {
		t.Fatalf("expected successor to become b, got %v", a.GetSuccessor())
	}
}
