// Package store implements the local file store: a primary map of records
// this peer is authoritative for, and a backup map replicated from the
// predecessor (spec §4.E).
package store

import (
	"context"
	"sync"

	"github.com/ringmesh/chordring/chorderr"
	"github.com/ringmesh/chordring/internal/log"
	"github.com/ringmesh/chordring/ring"
)

// Record is a stored file: its key, bytes, and the set of peers holding a
// replica (primary first, backups after).
type Record struct {
	Filename string
	Bytes    []byte
	Key      ring.Id
	Replicas []ring.Id
}

// Transport is the subset of remote calls the store package needs. A single
// concrete transport (package transport) satisfies this alongside
// ring.Transport and index's transport interface.
type Transport interface {
	StoreFile(ctx context.Context, target ring.Peer, filename string, data []byte, key ring.Id) error
	GetFile(ctx context.Context, target ring.Peer, filename string) ([]byte, bool, error)
}

// Store holds this peer's primary and backup file records.
type Store struct {
	self ring.Peer
	m    uint

	mu      sync.RWMutex
	primary map[string]Record
	backup  map[string]Record // replicated from predecessor

	node      *ring.Node
	transport Transport
	persist   *Persist
}

// New creates an empty store bound to node for routing decisions, with no
// durable backing (the spec-mandated default: "Persisted state: None
// required by the core").
func New(node *ring.Node, transport Transport) *Store {
	return &Store{
		self:      node.Self(),
		m:         node.State().M(),
		primary:   make(map[string]Record),
		backup:    make(map[string]Record),
		node:      node,
		transport: transport,
	}
}

// NewWithPersist creates a store backed by p: every mutation is mirrored to
// disk, and any records already on disk (from a prior process run) are
// loaded immediately. Selected by config.StoreConfig.Backend == "badger".
func NewWithPersist(node *ring.Node, transport Transport, p *Persist) *Store {
	s := &Store{
		self:      node.Self(),
		m:         node.State().M(),
		primary:   loadAll(p.primary),
		backup:    loadAll(p.backup),
		node:      node,
		transport: transport,
		persist:   p,
	}
	log.Store.Info().Int("primary", len(s.primary)).Int("backup", len(s.backup)).Msg("store: recovered records from durable backend")
	return s
}

// Result describes where a put landed.
type Result struct {
	StoredHere bool
	Target     ring.Peer
}

// Put stores filename under key = hash(filename). If this peer owns the
// key, it inserts into primary and best-effort replicates a backup copy to
// the successor. Otherwise it forwards store_file to the owner.
func (s *Store) Put(ctx context.Context, filename string, data []byte) (Result, error) {
	key := ring.HashString(filename, s.m)
	owner, err := s.node.FindSuccessor(ctx, key)
	if err != nil {
		return Result{}, chorderr.New(chorderr.KindRoutingFailed, "put", err)
	}

	if owner.Equal(s.self) {
		r := Record{Filename: filename, Bytes: data, Key: key}
		s.mu.Lock()
		s.primary[filename] = r
		s.mu.Unlock()
		s.persist.putPrimary(r)

		s.replicateToSuccessor(ctx, filename, data, key)
		return Result{StoredHere: true, Target: s.self}, nil
	}

	if err := s.transport.StoreFile(ctx, owner, filename, data, key); err != nil {
		return Result{}, chorderr.New(chorderr.KindTransient, "put", err)
	}
	return Result{StoredHere: false, Target: owner}, nil
}

// replicateToSuccessor pushes a backup copy to the successor. Failure is
// logged and the record goes out again only with the next full backup
// push, which happens when stabilize adopts a new successor — it must never
// fail the client-visible put, which already succeeded on the primary.
func (s *Store) replicateToSuccessor(ctx context.Context, filename string, data []byte, key ring.Id) {
	succ := s.node.GetSuccessor()
	if succ.Equal(s.self) {
		return
	}
	if err := s.transport.StoreFile(ctx, succ, filename, data, key); err != nil {
		log.Store.Debug().Err(err).Str("filename", filename).Msg("backup replication failed, record goes out with the next successor-change backup push")
	}
}

// Get retrieves filename's bytes, trying the local store first (primary,
// then backup — promoting a backup hit to primary, matching the recovery
// path where a dead primary's backup becomes authoritative), then the
// owning peer over the network. The owner's replicas are not queried: if
// the owner is unreachable or lacks the file, Get returns a not-found error.
func (s *Store) Get(ctx context.Context, filename string) ([]byte, error) {
	key := ring.HashString(filename, s.m)

	s.mu.RLock()
	if r, ok := s.primary[filename]; ok {
		s.mu.RUnlock()
		return r.Bytes, nil
	}
	if r, ok := s.backup[filename]; ok {
		s.mu.RUnlock()
		s.promoteBackup(filename, r)
		return r.Bytes, nil
	}
	s.mu.RUnlock()

	owner, err := s.node.FindSuccessor(ctx, key)
	if err != nil {
		return nil, chorderr.New(chorderr.KindRoutingFailed, "get", err)
	}
	if owner.Equal(s.self) {
		return nil, chorderr.New(chorderr.KindNotFound, "get", nil)
	}

	data, found, err := s.transport.GetFile(ctx, owner, filename)
	if err == nil && found {
		return data, nil
	}
	return nil, chorderr.New(chorderr.KindNotFound, "get", err)
}

// promoteBackup moves a backup record into primary, used when the primary
// has died and this peer's backup becomes authoritative.
func (s *Store) promoteBackup(filename string, r Record) {
	s.mu.Lock()
	delete(s.backup, filename)
	s.primary[filename] = r
	s.mu.Unlock()
	s.persist.deleteBackup(filename)
	s.persist.putPrimary(r)
}

// PutLocalPrimary inserts a record directly into the primary map, used by
// the store_file RPC handler and by rehash pulls.
func (s *Store) PutLocalPrimary(r Record) {
	s.mu.Lock()
	s.primary[r.Filename] = r
	s.mu.Unlock()
	s.persist.putPrimary(r)
}

// PutLocalBackup inserts a record directly into the backup map. The
// store_file RPC handler writes to primary instead, and rehash pushes go
// through ReplaceBackup.
func (s *Store) PutLocalBackup(r Record) {
	s.mu.Lock()
	s.backup[r.Filename] = r
	s.mu.Unlock()
	s.persist.putBackup(r)
}

// GetLocal returns a record from primary or backup without any network
// fallback, used by the get_file RPC handler.
func (s *Store) GetLocal(filename string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.primary[filename]; ok {
		return r.Bytes, true
	}
	if r, ok := s.backup[filename]; ok {
		return r.Bytes, true
	}
	return nil, false
}

// TransferArc returns all primary records with key in (lower, upper], used
// by the rehash pull path (transfer_arc opcode).
func (s *Store) TransferArc(lower, upper ring.Id) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.primary {
		if ring.InRightClosed(r.Key, lower, upper) {
			out = append(out, r)
		}
	}
	return out
}

// DeleteKeys removes the named filenames from primary, used by the rehash
// pull's second phase once the new owner has acked receipt.
func (s *Store) DeleteKeys(filenames []string) {
	s.mu.Lock()
	for _, f := range filenames {
		delete(s.primary, f)
	}
	s.mu.Unlock()
	for _, f := range filenames {
		s.persist.deletePrimary(f)
	}
}

// ReplaceBackup atomically replaces the entire backup map, used when this
// peer's predecessor pushes a refreshed backup snapshot (spec §4.H "b").
func (s *Store) ReplaceBackup(records []Record) {
	s.mu.Lock()
	s.backup = make(map[string]Record, len(records))
	for _, r := range records {
		s.backup[r.Filename] = r
	}
	s.mu.Unlock()
	s.persist.replaceBackup(records)
}

// PrimaryCount and BackupCount back status().
func (s *Store) PrimaryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.primary)
}

func (s *Store) BackupCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.backup)
}

// AllPrimary returns a snapshot of every primary record, used by graceful
// leave to hand off the full arc to the successor.
func (s *Store) AllPrimary() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.primary))
	for _, r := range s.primary {
		out = append(out, r)
	}
	return out
}

// AllBackup returns a snapshot of every backup record.
func (s *Store) AllBackup() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.backup))
	for _, r := range s.backup {
		out = append(out, r)
	}
	return out
}

// PromoteAllBackups moves every backup record into primary, used by the
// ring-heal path when this peer inherits a dead predecessor's arc (spec
// §4.H "c"). It returns the filenames promoted, for loss accounting by the
// caller against the keys it expected to inherit.
func (s *Store) PromoteAllBackups() []string {
	s.mu.Lock()
	promoted := make([]string, 0, len(s.backup))
	promotedRecords := make([]Record, 0, len(s.backup))
	for name, r := range s.backup {
		s.primary[name] = r
		promoted = append(promoted, name)
		promotedRecords = append(promotedRecords, r)
	}
	s.backup = make(map[string]Record)
	s.mu.Unlock()

	for _, r := range promotedRecords {
		s.persist.putPrimary(r)
	}
	s.persist.replaceBackup(nil)
	return promoted
}
