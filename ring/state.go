package ring

import "sync"

// State holds the mutable ring triple for a single peer: successor,
// predecessor, and finger table. One RWMutex covers all three fields, per
// the locking discipline in the concurrency model — no lock in this package
// is ever held across a network call.
type State struct {
	mu sync.RWMutex

	self Peer
	m    uint

	successor   Peer
	predecessor Peer
	hasPred     bool

	finger        []Peer // length m; zero Peer means unset
	nextFingerFix uint
}

// NewState creates ring state for self as a freshly founded ring of one.
func NewState(self Peer, m uint) *State {
	s := &State{
		self:      self,
		m:         m,
		successor: self,
		hasPred:   false,
		finger:    make([]Peer, m),
	}
	return s
}

// Self returns the owning peer reference (immutable, needs no lock).
func (s *State) Self() Peer { return s.self }

// M returns the identifier-space bit width.
func (s *State) M() uint { return s.m }

// Successor returns the current successor.
func (s *State) Successor() Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.successor
}

// SetSuccessor replaces the successor.
func (s *State) SetSuccessor(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successor = p
}

// Predecessor returns the current predecessor and whether one is set.
func (s *State) Predecessor() (Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.predecessor, s.hasPred
}

// SetPredecessor sets the predecessor.
func (s *State) SetPredecessor(p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predecessor = p
	s.hasPred = true
}

// ClearPredecessor unsets the predecessor.
func (s *State) ClearPredecessor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predecessor = Peer{}
	s.hasPred = false
}

// Finger returns finger[i] and whether it is set.
func (s *State) Finger(i uint) (Peer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f := s.finger[i]
	return f, !f.IsZero()
}

// SetFinger sets finger[i].
func (s *State) SetFinger(i uint, p Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finger[i] = p
}

// ClearFinger unsets finger[i].
func (s *State) ClearFinger(i uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finger[i] = Peer{}
}

// Fingers returns a snapshot copy of the finger table.
func (s *State) Fingers() []Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Peer, len(s.finger))
	copy(out, s.finger)
	return out
}

// NextFingerToFix advances the round-robin cursor and returns its new value.
func (s *State) NextFingerToFix() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextFingerFix = (s.nextFingerFix + 1) % s.m
	return s.nextFingerFix
}

// FingerStart returns (self.id + 2^i) mod 2^m, the ideal owner of finger[i].
func (s *State) FingerStart(i uint) Id {
	return s.self.ID.add(i, s.m)
}

// Snapshot returns a consistent view of (successor, predecessor, hasPred)
// under a single lock acquisition, useful for status() and stabilize.
func (s *State) Snapshot() (successor, predecessor Peer, hasPred bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.successor, s.predecessor, s.hasPred
}

// IsRingOfOne reports whether this peer is currently its own successor.
func (s *State) IsRingOfOne() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.successor.Equal(s.self)
}

// ClosestPrecedingFinger scans finger[m-1..0] and returns the first entry F
// with in_open(F.id, self.id, key) whose id is not in exclude; if none
// qualifies, returns self. exclude lets a caller that already tried (and
// failed to reach) some candidates ask for the next-best one instead of
// being handed the same top finger again — pass nil or an empty map for the
// plain "closest preceding finger" rule.
func (s *State) ClosestPrecedingFinger(key Id, exclude map[Id]bool) Peer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := int(s.m) - 1; i >= 0; i-- {
		f := s.finger[i]
		if f.IsZero() || exclude[f.ID] {
			continue
		}
		if inOpen(f.ID, s.self.ID, key) {
			return f
		}
	}
	return s.self
}
