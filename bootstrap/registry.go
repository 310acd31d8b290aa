// Package bootstrap implements the join-time peer registry (spec §4.C): a
// directory new peers contact to learn a handful of existing ring members
// to use as find_successor seeds. It is a convenience, not a correctness
// dependency — once joined, a peer never needs the registry again until it
// restarts.
package bootstrap

import (
	"sync"
	"time"

	"github.com/ringmesh/chordring/internal/log"
	"github.com/ringmesh/chordring/ring"
)

// Status is the outcome of a register attempt.
type Status int

const (
	StatusJoined Status = iota
	StatusFull
	StatusAlreadyRegistered
)

// MaxSeedsReturned bounds how many existing peers a Joined response carries,
// matching the original registry's "up to 2 other nodes" reply.
const MaxSeedsReturned = 2

type entry struct {
	peer     ring.Peer
	lastSeen time.Time
}

// Registry tracks registered ring peers and prunes stale ones by heartbeat
// age, per spec §4.C's liveness policy. Safe for concurrent use.
type Registry struct {
	mu         sync.Mutex
	entries    map[string]entry // keyed by addr
	maxPeers   int
	hbTimeout  time.Duration
}

// New creates an empty registry. maxPeers bounds total registered peers
// (Full once reached); hbTimeout is T_hb_timeout, the staleness window after
// which an entry is dropped.
func New(maxPeers int, hbTimeout time.Duration) *Registry {
	return &Registry{
		entries:   make(map[string]entry),
		maxPeers:  maxPeers,
		hbTimeout: hbTimeout,
	}
}

// Register adds addr to the registry, returning up to MaxSeedsReturned other
// live peers to use as join seeds. Re-registering an already-present,
// still-live peer is reported as AlreadyRegistered (idempotent, not an
// error) per spec §4.C "concurrent registration of the same pair".
func (r *Registry) Register(p ring.Peer) (Status, []ring.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked()

	if e, ok := r.entries[p.Addr()]; ok {
		e.lastSeen = time.Now()
		r.entries[p.Addr()] = e
		log.Bootstrap.Debug().Str("peer", p.Addr()).Msg("register: already registered")
		return StatusAlreadyRegistered, nil
	}

	if len(r.entries) >= r.maxPeers {
		log.Bootstrap.Warn().Str("peer", p.Addr()).Int("count", len(r.entries)).Msg("register: registry full")
		return StatusFull, nil
	}

	r.entries[p.Addr()] = entry{peer: p, lastSeen: time.Now()}
	log.Bootstrap.Info().Str("peer", p.Addr()).Int("count", len(r.entries)).Msg("peer joined")

	seeds := make([]ring.Peer, 0, MaxSeedsReturned)
	for addr, e := range r.entries {
		if addr == p.Addr() {
			continue
		}
		seeds = append(seeds, e.peer)
		if len(seeds) == MaxSeedsReturned {
			break
		}
	}
	return StatusJoined, seeds
}

// Unregister removes addr, reporting whether it was present.
func (r *Registry) Unregister(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[addr]; !ok {
		return false
	}
	delete(r.entries, addr)
	log.Bootstrap.Info().Str("peer", addr).Msg("peer left")
	return true
}

// Heartbeat refreshes addr's last-seen timestamp. Returns false if addr is
// not registered — the caller (a peer whose registration predates a
// registry restart) must fall back to re-registering.
func (r *Registry) Heartbeat(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[addr]
	if !ok {
		return false
	}
	e.lastSeen = time.Now()
	r.entries[addr] = e
	return true
}

// ListPeers returns every currently-live peer, pruning stale entries first.
func (r *Registry) ListPeers() []ring.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked()

	out := make([]ring.Peer, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.peer)
	}
	ring.SortPeersByID(out)
	return out
}

// pruneLocked drops entries whose last heartbeat predates now - hbTimeout.
// Must be called with r.mu held.
func (r *Registry) pruneLocked() {
	cutoff := time.Now().Add(-r.hbTimeout)
	for addr, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, addr)
			log.Bootstrap.Debug().Str("peer", addr).Msg("pruned stale registration")
		}
	}
}

// Count returns the number of currently registered peers, without pruning.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
