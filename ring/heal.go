package ring

import (
	"context"

	"github.com/ringmesh/chordring/internal/log"
)

// recoverSuccessor implements spec §4.D's Successor recovery / ring-heal:
// try each finger in ascending order, fall back to the predecessor's
// successor, and finally become a singleton ring. Adopting a new successor
// here never promotes our own backups to primary — we haven't inherited
// anyone's arc, our dead successor's data was backed up at ITS successor,
// not at us. We only owe the new successor a fresh backup of our primary
// set; the node whose own predecessor just died is the one that promotes
// (see checkPredecessor).
func (m *Maintenance) recoverSuccessor(ctx context.Context) {
	self := m.node.Self()

	fingers := m.node.state.Fingers()
	for _, f := range fingers {
		if f.IsZero() || f.Equal(self) {
			continue
		}
		cctx, cancel := m.callCtx(ctx)
		err := m.node.transport.Ping(cctx, f)
		cancel()
		if err == nil {
			m.node.state.SetSuccessor(f)
			log.Ring.Warn().Str("new_successor", f.Addr()).Msg("ring-heal: adopted finger as successor")
			if m.OnRehashPush != nil {
				m.OnRehashPush(f)
			}
			return
		}
	}

	pred, hasPred := m.node.state.Predecessor()
	if hasPred {
		cctx, cancel := m.callCtx(ctx)
		predsSucc, err := m.node.transport.GetSuccessor(cctx, pred)
		cancel()
		if err == nil {
			cctx2, cancel2 := m.callCtx(ctx)
			pingErr := m.node.transport.Ping(cctx2, predsSucc)
			cancel2()
			if pingErr == nil {
				m.node.state.SetSuccessor(predsSucc)
				log.Ring.Warn().Str("new_successor", predsSucc.Addr()).Msg("ring-heal: adopted predecessor's successor")
				if m.OnRehashPush != nil {
					m.OnRehashPush(predsSucc)
				}
				return
			}
		}
	}

	// No live candidate: become a singleton. A correctness-preserving local
	// choice — the next stabilize round with any live peer reconnects us.
	m.node.state.SetSuccessor(self)
	log.Ring.Warn().Msg("ring-heal: no live successor candidate, became singleton")
}

// LeaveHandoff describes the data a departing peer must transfer before it
// can unregister and shut down. The rehash package implements the actual
// record movement; this struct is the contract between ring and rehash.
type LeaveHandoff struct {
	Successor   Peer
	Predecessor Peer
	HasPred     bool
}

// PrepareLeave returns the handoff targets for a graceful leave, per spec
// §4.D steps 2-3. Step 1 (transferring primary/backup records) is the
// caller's responsibility: chordnode.Node.Leave hands both sets to the
// returned Successor before neighbour notification so data is never
// unreachable mid-leave.
func (n *Node) PrepareLeave() LeaveHandoff {
	succ := n.state.Successor()
	pred, hasPred := n.state.Predecessor()
	return LeaveHandoff{Successor: succ, Predecessor: pred, HasPred: hasPred}
}

// NotifyNeighboursOfLeave tells the predecessor its new successor is h.Successor,
// and tells the successor its new predecessor is h.Predecessor (possibly
// none). Failures are logged, not surfaced — leave() must complete even if
// some handoffs fail.
func (n *Node) NotifyNeighboursOfLeave(ctx context.Context, h LeaveHandoff) {
	self := n.Self()
	if h.HasPred && !h.Predecessor.Equal(self) {
		if err := n.transport.UpdateSuccessor(ctx, h.Predecessor, h.Successor, true); err != nil {
			log.Ring.Warn().Err(err).Str("predecessor", h.Predecessor.Addr()).Msg("leave: failed to update predecessor's successor")
		}
	}
	if !h.Successor.Equal(self) {
		if err := n.transport.UpdatePredecessor(ctx, h.Successor, h.Predecessor, h.HasPred); err != nil {
			log.Ring.Warn().Err(err).Str("successor", h.Successor.Addr()).Msg("leave: failed to update successor's predecessor")
		}
	}
}
