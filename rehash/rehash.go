// Package rehash implements the rehashing engine (spec §4.H): moving keys
// whose ownership changed on join, successor change, or heal, and updating
// backups.
package rehash

import (
	"context"

	"github.com/ringmesh/chordring/internal/log"
	"github.com/ringmesh/chordring/ring"
	"github.com/ringmesh/chordring/store"
)

// Transport is the subset of remote calls the rehash engine needs.
type Transport interface {
	TransferArc(ctx context.Context, target ring.Peer, lower, upper ring.Id) ([]store.Record, error)
	DeleteKeys(ctx context.Context, target ring.Peer, filenames []string) error
	PushBackup(ctx context.Context, target ring.Peer, records []store.Record) error
}

// Engine drives the three rehash triggers against a node's store.
type Engine struct {
	node      *ring.Node
	store     *store.Store
	transport Transport

	// LostKeys accumulates filenames for which no backup existed during a
	// heal promotion — the loss-accounting supplement from the original
	// implementation (spec §8 scenario 4's "exactly those records ... are
	// reported as lost").
	LostKeys []string
}

// New creates a rehash engine bound to node's store.
func New(node *ring.Node, st *store.Store, transport Transport) *Engine {
	return &Engine{node: node, store: st, transport: transport}
}

// PullOnJoin implements the newcomer side of spec §4.H (a): pull from the
// successor the arc (predecessorID, self.id] the newcomer now owns. The
// two-phase protocol (GET then DELETE) tolerates transient duplication —
// store.Get returns the first copy found regardless of which side still
// holds it when a failure interrupts the handoff.
func (e *Engine) PullOnJoin(ctx context.Context, predecessorID ring.Id) {
	succ := e.node.GetSuccessor()
	self := e.node.Self()
	if succ.Equal(self) {
		return // ring of one, nothing to pull
	}

	records, err := e.transport.TransferArc(ctx, succ, predecessorID, self.ID)
	if err != nil {
		log.Rehash.Debug().Err(err).Msg("pull-on-join: transfer_arc failed, arc stays on the successor")
		return
	}

	filenames := make([]string, 0, len(records))
	for _, r := range records {
		e.store.PutLocalPrimary(r)
		filenames = append(filenames, r.Filename)
	}
	if len(filenames) == 0 {
		return
	}
	if err := e.transport.DeleteKeys(ctx, succ, filenames); err != nil {
		log.Rehash.Debug().Err(err).Msg("pull-on-join: delete_keys ack failed, successor retains a transient duplicate")
	}
}

// PushBackupToSuccessor implements spec §4.H (b): when this peer's
// successor changes, push a refreshed backup of its primary set to the new
// successor, replacing any stale backup held there. A failed push is not
// retried on its own; the next push happens when the successor changes.
func (e *Engine) PushBackupToSuccessor(ctx context.Context, newSuccessor ring.Peer) {
	if newSuccessor.Equal(e.node.Self()) {
		return
	}
	records := e.store.AllPrimary()
	if err := e.transport.PushBackup(ctx, newSuccessor, records); err != nil {
		log.Rehash.Debug().Err(err).Msg("backup push failed, next push happens on the next successor change")
	}
}

// PromoteOnHeal implements spec §4.H (c): when this peer's predecessor is
// declared dead, this peer now transiently owns the dead peer's arc — the
// replication invariant means its primary set was already sitting in our
// backup map, so we promote it. Any filenames this peer expected to have a
// backup for but didn't are recorded in LostKeys — a known data-loss window
// under r=1 or simultaneous failures (in practice only a record whose
// backup push raced the predecessor's death, undetectable from here beyond
// a backup/expected mismatch).
func (e *Engine) PromoteOnHeal(expectedFilenames []string) {
	promoted := e.store.PromoteAllBackups()
	havePromoted := make(map[string]bool, len(promoted))
	for _, f := range promoted {
		havePromoted[f] = true
	}
	for _, f := range expectedFilenames {
		if !havePromoted[f] {
			e.LostKeys = append(e.LostKeys, f)
			log.Rehash.Warn().Str("filename", f).Msg("heal: no backup existed, key lost")
		}
	}
}
