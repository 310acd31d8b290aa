package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/ringmesh/chordring/ring"
)

func TestServerClientRegisterRoundTrip(t *testing.T) {
	registry := New(10, time.Minute)
	srv := NewServer(registry, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Listen(ctx, "127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := srv.listener.Addr().String()

	client := NewClient(addr, 16, time.Second)

	self := ring.NewPeer("127.0.0.1", 5001, 16)
	res, err := client.Register(self)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Status != StatusJoined || len(res.Seeds) != 0 {
		t.Fatalf("Register = %+v, want Joined with no seeds", res)
	}

	other := ring.NewPeer("127.0.0.1", 5002, 16)
	res, err = client.Register(other)
	if err != nil {
		t.Fatalf("Register(other): %v", err)
	}
	if res.Status != StatusJoined || len(res.Seeds) != 1 || res.Seeds[0].Addr() != self.Addr() {
		t.Fatalf("Register(other) = %+v, want Joined with [self]", res)
	}

	ok, err := client.Heartbeat(self)
	if err != nil || !ok {
		t.Fatalf("Heartbeat = %v, %v, want true, nil", ok, err)
	}

	peers, err := client.ListPeers()
	if err != nil || len(peers) != 2 {
		t.Fatalf("ListPeers = %v, %v, want 2 peers", peers, err)
	}

	if err := client.Unregister(self); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
	peers, err = client.ListPeers()
	if err != nil || len(peers) != 1 {
		t.Fatalf("ListPeers after unregister = %v, %v, want 1 peer", peers, err)
	}
}

func TestClientRegisterUnreachableRegistry(t *testing.T) {
	client := NewClient("127.0.0.1:1", 16, 100*time.Millisecond)
	_, err := client.Register(ring.NewPeer("a", 4001, 16))
	if err == nil {
		t.Fatal("Register against unreachable registry should fail")
	}
}
