// Package index implements the distributed inverted index: for each token
// t, the owner succ(hash(t)) holds postings filename -> FileMetadata
// (spec §4.G).
package index

import (
	"context"
	"sort"
	"sync"

	"github.com/ringmesh/chordring/chorderr"
	"github.com/ringmesh/chordring/internal/log"
	"github.com/ringmesh/chordring/ring"
	"github.com/ringmesh/chordring/search"
)

// FileMetadata is what a posting stores about a file that contains the
// owning token.
type FileMetadata struct {
	Filename       string
	FileKey        ring.Id
	OriginNodeID   ring.Id
	OriginNodeAddr string
	AllTokens      []string
	Size           uint64
}

// Transport is the subset of remote calls the index package needs.
type Transport interface {
	StorePosting(ctx context.Context, target ring.Peer, token string, meta FileMetadata) error
	LookupToken(ctx context.Context, target ring.Peer, token string) ([]FileMetadata, error)
}

// Index holds this peer's local postings: token -> filename -> metadata.
// Postings have replication factor 1 per spec §9's open-question
// resolution (preserving the source's r=1 for postings); no backup map.
type Index struct {
	self ring.Peer
	m    uint

	mu       sync.RWMutex
	postings map[string]map[string]FileMetadata

	node      *ring.Node
	transport Transport
}

// New creates an empty index bound to node for routing decisions.
func New(node *ring.Node, transport Transport) *Index {
	return &Index{
		self:      node.Self(),
		m:         node.State().M(),
		postings:  make(map[string]map[string]FileMetadata),
		node:      node,
		transport: transport,
	}
}

// IndexFile tokenizes filename and upserts a posting at each token's owner.
// Failures are logged per-token, not surfaced — a later re-put refreshes
// orphaned postings (spec §4.G).
func (idx *Index) IndexFile(ctx context.Context, filename string, size uint64) {
	tokens := search.Tokenize(filename)
	meta := FileMetadata{
		Filename:       filename,
		FileKey:        ring.HashString(filename, idx.m),
		OriginNodeID:   idx.self.ID,
		OriginNodeAddr: idx.self.Addr(),
		AllTokens:      tokens,
		Size:           size,
	}

	for _, t := range tokens {
		idx.storePosting(ctx, t, meta)
	}
}

func (idx *Index) storePosting(ctx context.Context, token string, meta FileMetadata) {
	owner, err := idx.node.FindSuccessor(ctx, ring.HashString(token, idx.m))
	if err != nil {
		log.Index.Debug().Err(err).Str("token", token).Msg("store_posting: routing failed")
		return
	}

	if owner.Equal(idx.self) {
		idx.upsertLocal(token, meta)
		return
	}
	if err := idx.transport.StorePosting(ctx, owner, token, meta); err != nil {
		log.Index.Debug().Err(err).Str("token", token).Str("owner", owner.Addr()).Msg("store_posting: remote upsert failed")
	}
}

// upsertLocal inserts or replaces a posting by filename (replace-by-filename
// semantics, spec's "data model" section).
func (idx *Index) upsertLocal(token string, meta FileMetadata) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	m, ok := idx.postings[token]
	if !ok {
		m = make(map[string]FileMetadata)
		idx.postings[token] = m
	}
	m[meta.Filename] = meta
}

// UpsertLocal is the store_posting RPC handler's entry point.
func (idx *Index) UpsertLocal(token string, meta FileMetadata) {
	idx.upsertLocal(token, meta)
}

// LookupLocal returns every posting for token held locally, the
// lookup_token RPC handler's entry point.
func (idx *Index) LookupLocal(token string) []FileMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	m, ok := idx.postings[token]
	if !ok {
		return nil
	}
	out := make([]FileMetadata, 0, len(m))
	for _, meta := range m {
		out = append(out, meta)
	}
	return out
}

// Hit is a single ranked search result.
type Hit struct {
	Filename string
	Origin   string
	Score    float64
}

// Search implements spec §4.G's search: tokenize the query, fan out
// lookup_token per term, union results by filename, score each against the
// full query token set, and sort by score desc then filename asc for
// determinism.
func (idx *Index) Search(ctx context.Context, query string) ([]Hit, error) {
	q := search.TokenizeQuery(query)
	if len(q) == 0 {
		return nil, nil
	}

	byFilename := make(map[string]FileMetadata)
	for _, token := range q {
		metas, err := idx.lookupToken(ctx, token)
		if err != nil {
			log.Index.Debug().Err(err).Str("token", token).Msg("lookup_token failed, continuing with partial results")
			continue
		}
		for _, meta := range metas {
			byFilename[meta.Filename] = meta
		}
	}

	hits := make([]Hit, 0, len(byFilename))
	for filename, meta := range byFilename {
		s := search.Score(q, meta.AllTokens)
		if s <= 0 {
			continue
		}
		hits = append(hits, Hit{Filename: filename, Origin: meta.OriginNodeAddr, Score: s})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Filename < hits[j].Filename
	})
	return hits, nil
}

func (idx *Index) lookupToken(ctx context.Context, token string) ([]FileMetadata, error) {
	owner, err := idx.node.FindSuccessor(ctx, ring.HashString(token, idx.m))
	if err != nil {
		return nil, chorderr.New(chorderr.KindRoutingFailed, "lookup_token", err)
	}
	if owner.Equal(idx.self) {
		return idx.LookupLocal(token), nil
	}
	return idx.transport.LookupToken(ctx, owner, token)
}

// Size backs status()'s index_size: total posting count across all tokens.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, m := range idx.postings {
		n += len(m)
	}
	return n
}

// AllPostings returns every (token, metadata) pair held locally, used when
// this peer leaves and must re-insert each posting at the post-leave owner.
func (idx *Index) AllPostings() map[string][]FileMetadata {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make(map[string][]FileMetadata, len(idx.postings))
	for token, m := range idx.postings {
		metas := make([]FileMetadata, 0, len(m))
		for _, meta := range m {
			metas = append(metas, meta)
		}
		out[token] = metas
	}
	return out
}

// ReInsertAll re-stores every local posting at this peer's successor — used
// on leave, since the successor is the new owner of this peer's arc once it
// is gone. A ring of one has no successor to hand off to and does nothing.
func (idx *Index) ReInsertAll(ctx context.Context) {
	succ := idx.node.GetSuccessor()
	if succ.Equal(idx.self) {
		return
	}
	for token, metas := range idx.AllPostings() {
		for _, meta := range metas {
			if err := idx.transport.StorePosting(ctx, succ, token, meta); err != nil {
				log.Index.Warn().Err(err).Str("token", token).Str("successor", succ.Addr()).Msg("leave: posting handoff failed")
			}
		}
	}
}
