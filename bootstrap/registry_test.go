package bootstrap

import (
	"testing"
	"time"

	"github.com/ringmesh/chordring/ring"
)

func TestRegisterReturnsSeeds(t *testing.T) {
	r := New(10, time.Minute)

	a := ring.NewPeer("a", 4001, 16)
	b := ring.NewPeer("b", 4002, 16)

	status, seeds := r.Register(a)
	if status != StatusJoined || len(seeds) != 0 {
		t.Fatalf("first register = %v, %v, want Joined with no seeds", status, seeds)
	}

	status, seeds = r.Register(b)
	if status != StatusJoined || len(seeds) != 1 || seeds[0].Addr() != a.Addr() {
		t.Fatalf("second register = %v, %v, want Joined with [a]", status, seeds)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	r := New(10, time.Minute)
	a := ring.NewPeer("a", 4001, 16)

	r.Register(a)
	status, _ := r.Register(a)
	if status != StatusAlreadyRegistered {
		t.Fatalf("re-register status = %v, want AlreadyRegistered", status)
	}
}

func TestRegisterFull(t *testing.T) {
	r := New(1, time.Minute)
	r.Register(ring.NewPeer("a", 4001, 16))

	status, _ := r.Register(ring.NewPeer("b", 4002, 16))
	if status != StatusFull {
		t.Fatalf("register over capacity = %v, want Full", status)
	}
}

func TestHeartbeatUnknownAfterUnregister(t *testing.T) {
	r := New(10, time.Minute)
	a := ring.NewPeer("a", 4001, 16)
	r.Register(a)

	if !r.Unregister(a.Addr()) {
		t.Fatal("unregister should report found")
	}
	if r.Heartbeat(a.Addr()) {
		t.Fatal("heartbeat for unregistered peer should report unknown")
	}
}

func TestPruneDropsStaleEntries(t *testing.T) {
	r := New(10, 10*time.Millisecond)
	a := ring.NewPeer("a", 4001, 16)
	r.Register(a)

	time.Sleep(30 * time.Millisecond)

	if peers := r.ListPeers(); len(peers) != 0 {
		t.Fatalf("ListPeers after timeout = %v, want empty", peers)
	}
}

func TestListPeersSortedByID(t *testing.T) {
	r := New(10, time.Minute)
	r.Register(ring.NewPeer("a", 4001, 16))
	r.Register(ring.NewPeer("b", 4002, 16))
	r.Register(ring.NewPeer("c", 4003, 16))

	peers := r.ListPeers()
	for i := 1; i < len(peers); i++ {
		if peers[i-1].ID > peers[i].ID {
			t.Fatalf("ListPeers not sorted by id: %v", peers)
		}
	}
}
