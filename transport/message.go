// Package transport implements the wire protocol that carries ring, store,
// and index RPCs between peers: opcodes, two interchangeable codecs, a
// deterministic libp2p identity derivation, and both an in-memory transport
// for tests and a production libp2p stream transport.
package transport

import "github.com/libp2p/go-libp2p/core/protocol"

// Opcode identifies a single RPC carried over a stream.
type Opcode string

// The full opcode table (spec §6): ring maintenance, file storage, the
// inverted index, and rehash handoff all multiplex over one stream protocol.
const (
	OpFindSuccessor     Opcode = "find_successor"
	OpGetPredecessor    Opcode = "get_predecessor"
	OpGetSuccessor      Opcode = "get_successor"
	OpNotify            Opcode = "notify"
	OpPing              Opcode = "ping"
	OpUpdateSuccessor   Opcode = "update_successor"
	OpUpdatePredecessor Opcode = "update_predecessor"

	OpStoreFile Opcode = "store_file"
	OpGetFile   Opcode = "get_file"

	OpStorePosting Opcode = "store_posting"
	OpLookupToken  Opcode = "lookup_token"

	OpTransferArc Opcode = "transfer_arc"
	OpDeleteKeys  Opcode = "delete_keys"
	OpPushBackup  Opcode = "push_backup"
)

// StreamProtocol is the libp2p stream protocol ID all RPCs multiplex over.
const StreamProtocol = protocol.ID("/chordring/rpc/1.0.0")

// Request is one opcode invocation and its parameters, as they cross the
// wire. Fields unused by a given opcode are left zero.
type Request struct {
	Op Opcode `json:"op"`

	Key       uint64 `json:"key,omitempty"`
	Peer      string `json:"peer,omitempty"`      // host:port
	Candidate string `json:"candidate,omitempty"` // host:port, for notify
	Has       bool   `json:"has,omitempty"`

	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data,omitempty"`

	Token string `json:"token,omitempty"`

	Lower uint64   `json:"lower,omitempty"`
	Upper uint64   `json:"upper,omitempty"`
	Names []string `json:"names,omitempty"`

	Records []WireRecord `json:"records,omitempty"`
	Posting *WirePosting `json:"posting,omitempty"`
}

// WireRecord is a store.Record flattened for transport.
type WireRecord struct {
	Filename string `json:"filename"`
	Bytes    []byte `json:"bytes"`
	Key      uint64 `json:"key"`
}

// WirePosting is an index.FileMetadata flattened for transport.
type WirePosting struct {
	Token          string   `json:"token"`
	Filename       string   `json:"filename"`
	FileKey        uint64   `json:"file_key"`
	OriginNodeID   uint64   `json:"origin_node_id"`
	OriginNodeAddr string   `json:"origin_node_addr"`
	AllTokens      []string `json:"all_tokens"`
	Size           uint64   `json:"size"`
}

// Response carries the result of a Request back to the caller.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Peer    string `json:"peer,omitempty"`
	Has     bool   `json:"has,omitempty"`
	Found   bool   `json:"found,omitempty"`
	Data    []byte `json:"data,omitempty"`
	Records []WireRecord `json:"records,omitempty"`
	Postings []WirePosting `json:"postings,omitempty"`
}
