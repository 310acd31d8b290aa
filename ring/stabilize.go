package ring

import (
	"context"
	"time"

	"github.com/ringmesh/chordring/internal/log"
)

// MaintenanceConfig holds the periodic task intervals, see spec §5.
type MaintenanceConfig struct {
	StabilizeInterval        time.Duration
	FixFingersInterval       time.Duration
	CheckPredecessorInterval time.Duration
	// SuspectThreshold is the number of consecutive failures (N_suspect)
	// before a peer is treated as dead.
	SuspectThreshold int
	// RequestTimeout bounds every network call this package makes.
	RequestTimeout time.Duration
}

// Maintenance runs the three periodic background tasks (stabilize,
// fix_fingers, check_predecessor) as independent tickers. Each tick never
// holds the ring lock across a network call.
type Maintenance struct {
	node *Node
	cfg  MaintenanceConfig

	// OnRehashPush is invoked after stabilize discovers a new successor, so
	// the rehash engine can push a refreshed backup there. Optional.
	OnRehashPush func(newSuccessor Peer)
	// OnHeal is invoked after this peer's predecessor is declared dead and
	// cleared, the moment this peer inherits the dead peer's arc.
	OnHeal func()

	suspectSuccessor   int
	suspectPredecessor int
}

// NewMaintenance creates a maintenance runner for node.
func NewMaintenance(node *Node, cfg MaintenanceConfig) *Maintenance {
	return &Maintenance{node: node, cfg: cfg}
}

// Run starts the three periodic loops; it blocks until ctx is cancelled.
func (m *Maintenance) Run(ctx context.Context) {
	stabilizeT := time.NewTicker(m.cfg.StabilizeInterval)
	fixFingersT := time.NewTicker(m.cfg.FixFingersInterval)
	checkPredT := time.NewTicker(m.cfg.CheckPredecessorInterval)
	defer stabilizeT.Stop()
	defer fixFingersT.Stop()
	defer checkPredT.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stabilizeT.C:
			m.stabilize(ctx)
		case <-fixFingersT.C:
			m.fixFingers(ctx)
		case <-checkPredT.C:
			m.checkPredecessor(ctx)
		}
	}
}

func (m *Maintenance) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.cfg.RequestTimeout)
}

// stabilize implements spec §4.D's Stabilize: ask successor for its
// predecessor, adopt it if closer, then notify the successor of ourselves.
// While this peer is its own successor, the comparison runs over the full
// ring: a predecessor that has notified us is adopted as successor.
func (m *Maintenance) stabilize(ctx context.Context) {
	succ := m.node.state.Successor()
	if succ.Equal(m.node.Self()) {
		pred, hasPred := m.node.state.Predecessor()
		if !hasPred || pred.Equal(m.node.Self()) {
			return // ring of one, nothing to stabilize against
		}
		m.node.state.SetSuccessor(pred)
		succ = pred
		if m.OnRehashPush != nil {
			m.OnRehashPush(succ)
		}
	}

	cctx, cancel := m.callCtx(ctx)
	pred, hasPred, err := m.node.transport.GetPredecessor(cctx, succ)
	cancel()
	if err != nil {
		m.suspectSuccessor++
		log.Ring.Debug().Err(err).Str("successor", succ.Addr()).Int("suspect", m.suspectSuccessor).Msg("stabilize: successor unreachable")
		if m.suspectSuccessor >= m.cfg.SuspectThreshold {
			m.recoverSuccessor(ctx)
			m.suspectSuccessor = 0
		}
		return
	}
	m.suspectSuccessor = 0

	self := m.node.Self()
	if hasPred && InOpen(pred.ID, self.ID, succ.ID) {
		m.node.state.SetSuccessor(pred)
		succ = pred
		if m.OnRehashPush != nil {
			m.OnRehashPush(succ)
		}
	}

	cctx2, cancel2 := m.callCtx(ctx)
	err = m.node.transport.Notify(cctx2, succ, self)
	cancel2()
	if err != nil {
		log.Ring.Debug().Err(err).Str("successor", succ.Addr()).Msg("stabilize: notify failed")
	}
}

// ProbeHint reacts to an out-of-band membership hint (package ringevents'
// gossip layer): if hint is alive and lies strictly between self and the
// current successor (anywhere on the ring while this peer is its own
// successor), adopt it as successor immediately instead of waiting
// for the next stabilize tick. This is the same guard stabilize already
// applies to a candidate learned from the successor's predecessor — gossip
// only supplies the candidate earlier, it never bypasses the safety check,
// so a stale or fabricated hint can only be ignored, never misroute traffic.
func (m *Maintenance) ProbeHint(ctx context.Context, hint Peer) {
	self := m.node.Self()
	succ := m.node.state.Successor()
	if hint.Equal(self) || hint.Equal(succ) {
		return
	}
	if !succ.Equal(self) && !InOpen(hint.ID, self.ID, succ.ID) {
		return
	}

	cctx, cancel := m.callCtx(ctx)
	err := m.node.transport.Ping(cctx, hint)
	cancel()
	if err != nil {
		return
	}

	m.node.state.SetSuccessor(hint)
	log.Ring.Debug().Str("hint", hint.Addr()).Msg("ringevents: adopted gossip hint as successor ahead of stabilize")
	if m.OnRehashPush != nil {
		m.OnRehashPush(hint)
	}
}

// fixFingers implements spec §4.D's round-robin finger refresh.
func (m *Maintenance) fixFingers(ctx context.Context) {
	i := m.node.state.NextFingerToFix()
	start := m.node.state.FingerStart(i)

	cctx, cancel := m.callCtx(ctx)
	defer cancel()
	succ, err := m.node.FindSuccessor(cctx, start)
	if err != nil {
		// Errors during background maintenance are logged, not surfaced;
		// the stale entry self-heals on a later tick.
		log.Ring.Debug().Err(err).Uint64("finger", uint64(i)).Msg("fix_fingers: lookup failed, leaving entry stale")
		return
	}
	m.node.state.SetFinger(i, succ)
}

// checkPredecessor implements spec §4.D's liveness probe plus the
// consistency sweep over the finger table.
func (m *Maintenance) checkPredecessor(ctx context.Context) {
	pred, hasPred := m.node.state.Predecessor()
	if hasPred {
		cctx, cancel := m.callCtx(ctx)
		err := m.node.transport.Ping(cctx, pred)
		cancel()
		if err != nil {
			m.suspectPredecessor++
			if m.suspectPredecessor >= m.cfg.SuspectThreshold {
				m.node.state.ClearPredecessor()
				m.suspectPredecessor = 0
				if m.OnHeal != nil {
					m.OnHeal()
				}
			}
		} else {
			m.suspectPredecessor = 0
		}
	}

	for i := uint(0); i < m.node.state.M(); i++ {
		f, ok := m.node.state.Finger(i)
		if !ok {
			continue
		}
		cctx, cancel := m.callCtx(ctx)
		err := m.node.transport.Ping(cctx, f)
		cancel()
		if err != nil {
			m.node.state.ClearFinger(i)
		}
	}
}
