package transport

import (
	"crypto/ed25519"
	"fmt"
	"hash"
	"io"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

// identitySalt domain-separates this derivation from any other blake2b/hkdf
// use in the module.
var identitySalt = []byte("chordring-libp2p-identity-v1")

// DeriveIdentity derives a deterministic Ed25519 libp2p identity from a
// peer's host:port address. Chord addresses peers by host:port, not by
// libp2p peer ID; deriving the ID from the address means a peer is
// dialable from its Chord Peer alone, with no separate identity exchange
// or persisted keyfile (contrast the teacher's loadOrCreateIdentity, which
// persists a random key to disk — here the address itself is the seed, so
// any process can recompute the same identity for the same address).
func DeriveIdentity(addr string) (libp2pcrypto.PrivKey, peer.ID, error) {
	extract, err := blake2b.New256(identitySalt)
	if err != nil {
		return nil, "", fmt.Errorf("derive identity: %w", err)
	}
	extract.Write([]byte(addr))
	prk := extract.Sum(nil)

	reader := hkdf.Expand(newBlake2b256, prk, []byte(addr))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, seed); err != nil {
		return nil, "", fmt.Errorf("derive identity: hkdf expand: %w", err)
	}

	edPriv := ed25519.NewKeyFromSeed(seed)
	priv, err := libp2pcrypto.UnmarshalEd25519PrivateKey(edPriv)
	if err != nil {
		return nil, "", fmt.Errorf("derive identity: unmarshal ed25519 key: %w", err)
	}
	id, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, "", fmt.Errorf("derive identity: peer id: %w", err)
	}
	return priv, id, nil
}

func newBlake2b256() hash.Hash {
	h, _ := blake2b.New256(nil)
	return h
}
