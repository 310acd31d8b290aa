package rehash

import (
	"context"
	"testing"

	"github.com/ringmesh/chordring/ring"
	"github.com/ringmesh/chordring/store"
)

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
func (noopRingTransport) Notify(ctx context.Context, target, candidate ring.Peer) error { return nil }
func (noopRingTransport) Ping(ctx context.Context, target ring.Peer) error              { return nil }
func (noopRingTransport) UpdateSuccessor(ctx context.Context, target, newSucc ring.Peer, has bool) error {
	return nil
}
func (noopRingTransport) UpdatePredecessor(ctx context.Context, target, newPred ring.Peer, has bool) error {
	return nil
}

type noopStoreTransport struct{}

func (noopStoreTransport) StoreFile(ctx context.Context, target ring.Peer, filename string, data []byte, key ring.Id) error {
	return nil
}
func (noopStoreTransport) GetFile(ctx context.Context, target ring.Peer, filename string) ([]byte, bool, error) {
	return nil, false, nil
}

// fakeRehashTransport records calls instead of crossing the network, enough
// to exercise the three trigger paths in-process.
type fakeRehashTransport struct {
	pushedTo      ring.Peer
	pushedRecords []store.Record
}

func (t *fakeRehashTransport) TransferArc(ctx context.Context, target ring.Peer, lower, upper ring.Id) ([]store.Record, error) {
	return nil, nil
}

func (t *fakeRehashTransport) DeleteKeys(ctx context.Context, target ring.Peer, filenames []string) error {
	return nil
}

func (t *fakeRehashTransport) PushBackup(ctx context.Context, target ring.Peer, records []store.Record) error {
	t.pushedTo = target
	t.pushedRecords = records
	return nil
}

func TestPullOnJoinRingOfOneIsNoop(t *testing.T) {
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	st := store.New(node, noopStoreTransport{})
	ft := &fakeRehashTransport{}
	e := New(node, st, ft)

	e.PullOnJoin(context.Background(), self.ID)
	if st.PrimaryCount() != 0 {
		t.Fatalf("ring-of-one pull should be a no-op, got %d primary records", st.PrimaryCount())
	}
}

func TestPushBackupToSuccessorSendsPrimarySet(t *testing.T) {
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	st := store.New(node, noopStoreTransport{})
	st.PutLocalPrimary(store.Record{Filename: "x.txt", Bytes: []byte("hi"), Key: ring.HashString("x.txt", 16)})

	ft := &fakeRehashTransport{}
	e := New(node, st, ft)

	other := ring.NewPeer("b", 4002, 16)
	e.PushBackupToSuccessor(context.Background(), other)

	if ft.pushedTo.Addr() != other.Addr() {
		t.Fatalf("pushed to %v, want %v", ft.pushedTo, other)
	}
	if len(ft.pushedRecords) != 1 || ft.pushedRecords[0].Filename != "x.txt" {
		t.Fatalf("pushed records = %+v, want one record for x.txt", ft.pushedRecords)
	}
}

func TestPushBackupToSelfIsNoop(t *testing.T) {
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	st := store.New(node, noopStoreTransport{})
	ft := &fakeRehashTransport{}
	e := New(node, st, ft)

	e.PushBackupToSuccessor(context.Background(), self)
	if ft.pushedRecords != nil {
		t.Fatalf("pushing to self should be a no-op, got %+v", ft.pushedRecords)
	}
}

func TestPromoteOnHealReportsLostKeys(t *testing.T) {
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	st := store.New(node, noopStoreTransport{})
	st.PutLocalBackup(store.Record{Filename: "has-backup.txt"})

	ft := &fakeRehashTransport{}
	e := New(node, st, ft)

	e.PromoteOnHeal([]string{"has-backup.txt", "no-backup.txt"})

	if st.PrimaryCount() != 1 {
		t.Fatalf("expected promoted backup to become primary, got %d primary records", st.PrimaryCount())
	}
	if len(e.LostKeys) != 1 || e.LostKeys[0] != "no-backup.txt" {
		t.Fatalf("LostKeys = %v, want [no-backup.txt]", e.LostKeys)
	}
}
