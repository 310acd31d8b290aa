package index

import (
	"context"
	"testing"

	"github.com/ringmesh/chordring/ring"
)

// localTransport dispatches directly to other in-process Index values,
// keyed by peer address — enough to exercise routing without sockets.
type localTransport struct {
	indexes map[string]*Index
}

func (t *localTransport) StorePosting(ctx context.Context, target ring.Peer, token string, meta FileMetadata) error {
	t.indexes[target.Addr()].UpsertLocal(token, meta)
	return nil
}

func (t *localTransport) LookupToken(ctx context.Context, target ring.Peer, token string) ([]FileMetadata, error) {
	return t.indexes[target.Addr()].LookupLocal(token), nil
}

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

func TestRingOfOneIndexAndSearch(t *testing.T) {
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	lt := &localTransport{indexes: map[string]*Index{}}
	idx := New(node, lt)
	lt.indexes[self.Addr()] = idx

	idx.IndexFile(context.Background(), "alpha.txt", 3)

	hits, err := idx.Search(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Filename != "alpha.txt" || hits[0].Score != 1.0 {
		t.Fatalf("Search(alpha) = %+v, want one hit at score 1.0", hits)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	lt := &localTransport{indexes: map[string]*Index{}}
	idx := New(node, lt)
	lt.indexes[self.Addr()] = idx

	hits, err := idx.Search(context.Background(), "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("Search(\"\") = %+v, want empty", hits)
	}
}

func TestSearchTiesBrokenByFilename(t *testing.T) {
	self := ring.NewPeer("a", 4001, 16)
	node := ring.NewNode(self, 16, 0, noopRingTransport{})
	node.Join(context.Background(), ring.Peer{})

	lt := &localTransport{indexes: map[string]*Index{}}
	idx := New(node, lt)
	lt.indexes[self.Addr()] = idx

	idx.IndexFile(context.Background(), "deep_learning_tutorial.pdf", 1)
	idx.IndexFile(context.Background(), "machine_learning_notes.txt", 2)

	hits, err := idx.Search(context.Background(), "learning")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Search(learning) returned %d hits, want 2", len(hits))
	}
	if hits[0].Filename != "deep_learning_tutorial.pdf" || hits[1].Filename != "machine_learning_notes.txt" {
		t.Fatalf("tie-break order = %v, want lexicographic", hits)
	}
}
