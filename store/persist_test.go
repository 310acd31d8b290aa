package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/ringmesh/chordring/internal/storage"
	"github.com/ringmesh/chordring/ring"
)

func TestPersistRecoversAcrossRestart(t *testing.T) {
	db := storage.NewMemory()
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	ft := &fakeTransport{stores: map[string]*Store{}}
	s := NewWithPersist(node, ft, NewPersist(db))
	ft.stores[self.Addr()] = s

	if _, err := s.Put(context.Background(), "alpha.txt", []byte("AAA")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.PutLocalBackup(Record{Filename: "gone.txt", Bytes: []byte("data"), Key: 42})

	// Simulate a process restart: a fresh Store over the same db must
	// recover both the primary and backup maps without re-running Put.
	restarted := NewWithPersist(node, ft, NewPersist(db))
	got, ok := restarted.GetLocal("alpha.txt")
	if !ok {
		t.Fatalf("expected alpha.txt to be recovered from durable backend")
	}
	if !bytes.Equal(got, []byte("AAA")) {
		t.Fatalf("GetLocal(alpha.txt) = %q, want AAA", got)
	}
	if restarted.BackupCount() != 1 {
		t.Fatalf("BackupCount after restart = %d, want 1", restarted.BackupCount())
	}
}

func TestPersistDeleteAndPromoteMirrorToDisk(t *testing.T) {
	db := storage.NewMemory()
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	ft := &fakeTransport{stores: map[string]*Store{}}
	s := NewWithPersist(node, ft, NewPersist(db))
	ft.stores[self.Addr()] = s

	s.PutLocalBackup(Record{Filename: "b1.txt", Bytes: []byte("x"), Key: 1})
	// Getting a record whose only copy is a backup promotes it to primary.
	if _, err := s.Get(context.Background(), "b1.txt"); err != nil {
		t.Fatalf("Get: %v", err)
	}

	restarted := NewWithPersist(node, ft, NewPersist(db))
	if restarted.PrimaryCount() != 1 || restarted.BackupCount() != 0 {
		t.Fatalf("after promotion+restart primary=%d backup=%d, want 1/0", restarted.PrimaryCount(), restarted.BackupCount())
	}
}
