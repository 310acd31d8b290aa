package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/ringmesh/chordring/ring"
)

// fakeTransport routes store_file/get_file directly to other in-process
// stores, keyed by peer address.
type fakeTransport struct {
	stores map[string]*Store
}

func (f *fakeTransport) StoreFile(ctx context.Context, target ring.Peer, filename string, data []byte, key ring.Id) error {
	f.stores[target.Addr()].PutLocalBackup(Record{Filename: filename, Bytes: data, Key: key})
	return nil
}

func (f *fakeTransport) GetFile(ctx context.Context, target ring.Peer, filename string) ([]byte, bool, error) {
	data, ok := f.stores[target.Addr()].GetLocal(filename)
	return data, ok, nil
}

func TestRingOfOnePutGet(t *testing.T) {
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	if err := node.Join(context.Background(), ring.Peer{}); err != nil {
		t.Fatalf("Join: %v", err)
	}

	ft := &fakeTransport{stores: map[string]*Store{}}
	s := New(node, ft)
	ft.stores[self.Addr()] = s

	res, err := s.Put(context.Background(), "alpha.txt", []byte("AAA"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !res.StoredHere {
		t.Fatalf("expected StoredHere=true in ring of one")
	}

	got, err := s.Get(context.Background(), "alpha.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("AAA")) {
		t.Fatalf("Get = %q, want AAA", got)
	}
}

func TestBackupPromotion(t *testing.T) {
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	ft := &fakeTransport{stores: map[string]*Store{}}
	s := New(node, ft)
	ft.stores[self.Addr()] = s

	s.PutLocalBackup(Record{Filename: "gone.txt", Bytes: []byte("data"), Key: 42})

	got, err := s.Get(context.Background(), "gone.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("data")) {
		t.Fatalf("Get = %q, want data", got)
	}
	if s.PrimaryCount() != 1 || s.BackupCount() != 0 {
		t.Fatalf("after promotion primary=%d backup=%d, want 1/0", s.PrimaryCount(), s.BackupCount())
	}
}

// noopRingTransport satisfies ring.Transport for a ring-of-one node that
// never needs to make a remote call.
type noopRingTransport struct{}

func (noopRingTransport) FindSuccessor(ctx context.Context, target ring.Peer, key ring.Id) (ring.Peer, error) {
	return target, nil
}
func (noopRingTransport) GetPredecessor(ctx context.Context, target ring.Peer) (ring.Peer, bool, error) {
	return ring.Peer{}, false, nil
}
func (noopRingTransport) GetSuccessor(ctx context.Context, target ring.Peer) (ring.Peer, error) {
	return target, nil
}
func (noopRingTransport) Notify(ctx context.Context, target ring.Peer, candidate ring.Peer) error {
	return nil
}
func (noopRingTransport) Ping(ctx context.Context, target ring.Peer) error { return nil }
func (noopRingTransport) UpdateSuccessor(ctx context.Context, target, newSucc ring.Peer, has bool) error {
	return nil
}
func (noopRingTransport) UpdatePredecessor(ctx context.Context, target, newPred ring.Peer, has bool) error {
	return nil
}
