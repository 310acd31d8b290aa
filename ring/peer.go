package ring

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Peer is an immutable reference to a ring member: its identifier and the
// address other peers dial to reach it. Two peers are equal iff their ids
// match; legitimate peers never share an id, a collision is treated as
// misconfiguration. Nothing detects one: the bootstrap registry keys its
// entries by address and does not compare ids.
type Peer struct {
	ID   Id
	Host string
	Port uint16
}

// NewPeer derives a peer's id from host:port and returns the full reference.
func NewPeer(host string, port uint16, m uint) Peer {
	addr := fmt.Sprintf("%s:%d", host, port)
	return Peer{ID: HashString(addr, m), Host: host, Port: port}
}

// Addr returns the dialable "host:port" string for this peer.
func (p Peer) Addr() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// IsZero reports whether p is the zero value, used to represent an absent
// (nullable) predecessor or finger entry.
func (p Peer) IsZero() bool {
	return p.Host == "" && p.Port == 0
}

// Equal compares peers by id only, per the data model.
func (p Peer) Equal(other Peer) bool {
	return p.ID == other.ID
}

func (p Peer) String() string {
	return fmt.Sprintf("%s(id=%d)", p.Addr(), p.ID)
}

// ParsePeer reconstructs a Peer from a "host:port" address, the inverse of
// Addr, used to decode addresses carried over the wire (gossip hints,
// registry listings) back into routable peers.
func ParsePeer(addr string, m uint) (Peer, error) {
	host, portStr, err := splitHostPort(addr)
	if err != nil {
		return Peer{}, fmt.Errorf("parse peer %q: %w", addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Peer{}, fmt.Errorf("parse peer %q: bad port: %w", addr, err)
	}
	return NewPeer(host, uint16(port), m), nil
}

func splitHostPort(addr string) (host, port string, err error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", "", fmt.Errorf("missing ':'")
	}
	return addr[:i], addr[i+1:], nil
}

// SortPeersByID sorts peers ascending by id, used when a deterministic
// presentation order is required (e.g. bootstrap registry listings).
func SortPeersByID(peers []Peer) {
	sort.Slice(peers, func(i, j int) bool { return peers[i].ID < peers[j].ID })
}
