// Package ring implements Chord ring topology maintenance: identifier-space
// arithmetic, peer references, per-node ring state, and the join/stabilize/
// fix_fingers/check_predecessor/heal protocol.
package ring

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Id is a point in the m-bit identifier ring, shared by node, file and
// token identifiers.
type Id uint64

// mask returns the bitmask for an m-bit identifier space.
func mask(m uint) uint64 {
	if m >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << m) - 1
}

// Hash maps an arbitrary byte string onto the identifier ring using
// BLAKE3-256, truncated to the low m bits. BLAKE3 needs no cryptographic
// unforgeability here, only a uniform, deterministic digest.
func Hash(s []byte, m uint) Id {
	sum := blake3.Sum256(s)
	v := binary.BigEndian.Uint64(sum[:8])
	return Id(v & mask(m))
}

// HashString is a convenience wrapper around Hash for string keys.
func HashString(s string, m uint) Id {
	return Hash([]byte(s), m)
}

// add returns (id + 2^i) mod 2^m, used to compute finger-table start points.
func (id Id) add(i uint, m uint) Id {
	return Id((uint64(id) + (uint64(1) << i)) & mask(m))
}

// inOpen reports whether x lies strictly clockwise from a and strictly
// counter-clockwise of b on the ring, wrapping through zero when a > b.
// When a == b the open interval is empty.
func inOpen(x, a, b Id) bool {
	if a == b {
		return false
	}
	if a < b {
		return a < x && x < b
	}
	return x > a || x < b
}

// inRightClosed reports inOpen(x,a,b) || x == b. When a == b this degenerates
// to the singleton set {b}.
func inRightClosed(x, a, b Id) bool {
	if a == b {
		return x == b
	}
	return inOpen(x, a, b) || x == b
}

// inClosed reports inOpen(x,a,b) || x == a || x == b.
func inClosed(x, a, b Id) bool {
	if a == b {
		return x == a
	}
	return x == a || inRightClosed(x, a, b)
}

// InOpen exports inOpen for callers outside the package (replica policy,
// rehash engine) that need the same wraparound-aware predicate.
func InOpen(x, a, b Id) bool { return inOpen(x, a, b) }

// InRightClosed exports inRightClosed.
func InRightClosed(x, a, b Id) bool { return inRightClosed(x, a, b) }

// InClosed exports inClosed.
func InClosed(x, a, b Id) bool { return inClosed(x, a, b) }
