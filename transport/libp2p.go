package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/multiformats/go-multiaddr"

	"github.com/ringmesh/chordring/chorderr"
	"github.com/ringmesh/chordring/index"
	"github.com/ringmesh/chordring/internal/log"
	"github.com/ringmesh/chordring/ring"
	"github.com/ringmesh/chordring/store"
)

// Handlers is the set of local components an inbound RPC is dispatched to.
// chordnode constructs one of these from its ring.Node, store.Store and
// index.Index and wires it to a LibP2P transport's Serve loop.
type Handlers struct {
	Node  *ring.Node
	Store *store.Store
	Index *index.Index
}

// LibP2P is the production transport: a libp2p host whose identity is
// derived deterministically from its own listen address (see identity.go),
// a single multiplexed stream protocol carrying every opcode, and a bounded
// worker pool for inbound requests, matching the teacher's
// registerHandshakeHandler pattern of one SetStreamHandler per protocol ID
// with read/write deadlines on each stream.
type LibP2P struct {
	host    host.Host
	codec   Codec
	self    ring.Peer
	m       uint
	timeout time.Duration

	handlersMu sync.RWMutex
	local      Handlers

	sem chan struct{} // bounds concurrent inbound handlers (MaxInflight)

	dht *dht.IpfsDHT // non-nil only when StartDHT has been called
}

// NewLibP2P derives this peer's identity from self's address, starts a
// libp2p host listening on self's host:port, and registers the RPC stream
// handler. m is the ring's identifier-space bit width, needed to reconstruct
// ring.Peer values decoded off the wire. maxInflight bounds concurrent
// inbound request handling, shedding load with chorderr.ErrBusy once full
// (spec's T_drain/backpressure requirement); requestTimeout bounds how long
// a single stream is kept open.
func NewLibP2P(self ring.Peer, m uint, codec Codec, local Handlers, maxInflight int, requestTimeout time.Duration) (*LibP2P, error) {
	addr := self.Addr()
	priv, _, err := DeriveIdentity(addr)
	if err != nil {
		return nil, fmt.Errorf("new libp2p transport: %w", err)
	}

	listenAddr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", self.Host, self.Port))
	if err != nil {
		return nil, fmt.Errorf("new libp2p transport: listen addr: %w", err)
	}

	h, err := libp2p.New(
		libp2p.Identity(priv),
		libp2p.ListenAddrs(listenAddr),
	)
	if err != nil {
		return nil, fmt.Errorf("new libp2p transport: create host: %w", err)
	}

	if maxInflight <= 0 {
		maxInflight = 1
	}
	t := &LibP2P{
		host:    h,
		codec:   codec,
		local:   local,
		self:    self,
		m:       m,
		timeout: requestTimeout,
		sem:     make(chan struct{}, maxInflight),
	}
	h.SetStreamHandler(StreamProtocol, t.handleStream)
	return t, nil
}

// SetHandlers wires the local ring/store/index components an inbound RPC
// dispatches to. chordnode.New calls this once those components exist —
// they depend on the transport (for outbound calls) while the transport's
// dispatch loop depends on them, so construction order requires this
// second step rather than passing Handlers into NewLibP2P.
func (t *LibP2P) SetHandlers(h Handlers) {
	t.handlersMu.Lock()
	t.local = h
	t.handlersMu.Unlock()
}

func (t *LibP2P) handlers() Handlers {
	t.handlersMu.RLock()
	defer t.handlersMu.RUnlock()
	return t.local
}

// Close shuts down the DHT (if started) and the libp2p host.
func (t *LibP2P) Close() error {
	if t.dht != nil {
		_ = t.dht.Close()
	}
	return t.host.Close()
}

// Addr returns the multiaddr this transport listens on, for logging.
func (t *LibP2P) Addr() []multiaddr.Multiaddr {
	return t.host.Addrs()
}

// Host exposes the underlying libp2p host so optional layers above the core
// RPC transport — gossip-based membership announcements (package
// ringevents), mDNS discovery — can attach to the same identity and
// connection set instead of standing up a second host.
func (t *LibP2P) Host() host.Host {
	return t.host
}

// handleStream is the single entry point for every inbound RPC, mirroring
// the teacher's handshake handler: set a deadline, decode, dispatch,
// encode, close. Load shedding happens before decode so a saturated node
// never even reads an oversized request off a rejected connection.
func (t *LibP2P) handleStream(s network.Stream) {
	defer s.Close()

	select {
	case t.sem <- struct{}{}:
		defer func() { <-t.sem }()
	default:
		log.Transport.Debug().Str("peer", s.Conn().RemotePeer().String()).Msg("inbound RPC rejected, worker pool saturated")
		t.codec.WriteResponse(s, Response{OK: false, Error: chorderr.ErrBusy.Error()})
		return
	}

	_ = s.SetDeadline(time.Now().Add(t.timeout))

	req, err := t.codec.ReadRequest(s)
	if err != nil {
		log.Transport.Debug().Err(err).Msg("inbound RPC decode failed")
		return
	}

	resp := t.dispatch(context.Background(), req)
	if err := t.codec.WriteResponse(s, resp); err != nil {
		log.Transport.Debug().Err(err).Msg("inbound RPC response write failed")
	}
}

// dispatch routes a decoded Request to the matching local handler. It never
// returns a Go error; failures are folded into Response.OK/Error so the
// wire format stays uniform across both codecs.
func (t *LibP2P) dispatch(ctx context.Context, req Request) Response {
	switch req.Op {
	case OpFindSuccessor:
		succ, err := t.handlers().Node.FindSuccessor(ctx, ring.Id(req.Key))
		if err != nil {
			return errResponse(err)
		}
		return Response{OK: true, Peer: succ.Addr()}

	case OpGetPredecessor:
		pred, ok := t.handlers().Node.GetPredecessor()
		return Response{OK: true, Peer: pred.Addr(), Has: ok}

	case OpGetSuccessor:
		return Response{OK: true, Peer: t.handlers().Node.GetSuccessor().Addr()}

	case OpNotify:
		candidate, err := parsePeer(req.Candidate, t.m)
		if err != nil {
			return errResponse(chorderr.New(chorderr.KindInvalidInput, "notify", err))
		}
		t.handlers().Node.Notify(candidate)
		return Response{OK: true}

	case OpPing:
		return Response{OK: true}

	case OpUpdateSuccessor:
		p, err := parsePeer(req.Peer, t.m)
		if err != nil && req.Has {
			return errResponse(chorderr.New(chorderr.KindInvalidInput, "update_successor", err))
		}
		t.handlers().Node.UpdateSuccessor(p, req.Has)
		return Response{OK: true}

	case OpUpdatePredecessor:
		p, err := parsePeer(req.Peer, t.m)
		if err != nil && req.Has {
			return errResponse(chorderr.New(chorderr.KindInvalidInput, "update_predecessor", err))
		}
		t.handlers().Node.UpdatePredecessor(p, req.Has)
		return Response{OK: true}

	case OpStoreFile:
		t.handlers().Store.PutLocalPrimary(store.Record{Filename: req.Filename, Bytes: req.Data, Key: ring.Id(req.Key)})
		return Response{OK: true}

	case OpGetFile:
		data, ok := t.handlers().Store.GetLocal(req.Filename)
		return Response{OK: true, Data: data, Found: ok}

	case OpStorePosting:
		if req.Posting == nil {
			return errResponse(chorderr.New(chorderr.KindInvalidInput, "store_posting", fmt.Errorf("missing posting payload")))
		}
		t.handlers().Index.UpsertLocal(req.Posting.Token, metaFromWire(*req.Posting))
		return Response{OK: true}

	case OpLookupToken:
		metas := t.handlers().Index.LookupLocal(req.Token)
		postings := make([]WirePosting, 0, len(metas))
		for _, m := range metas {
			postings = append(postings, wireFromMeta(req.Token, m))
		}
		return Response{OK: true, Postings: postings}

	case OpTransferArc:
		records := t.handlers().Store.TransferArc(ring.Id(req.Lower), ring.Id(req.Upper))
		wire := make([]WireRecord, 0, len(records))
		for _, r := range records {
			wire = append(wire, WireRecord{Filename: r.Filename, Bytes: r.Bytes, Key: uint64(r.Key)})
		}
		return Response{OK: true, Records: wire}

	case OpDeleteKeys:
		t.handlers().Store.DeleteKeys(req.Names)
		return Response{OK: true}

	case OpPushBackup:
		records := make([]store.Record, 0, len(req.Records))
		for _, r := range req.Records {
			records = append(records, store.Record{Filename: r.Filename, Bytes: r.Bytes, Key: ring.Id(r.Key)})
		}
		t.handlers().Store.ReplaceBackup(records)
		return Response{OK: true}

	default:
		return errResponse(chorderr.New(chorderr.KindInvalidInput, "dispatch", fmt.Errorf("unknown opcode %q", req.Op)))
	}
}

func errResponse(err error) Response {
	return Response{OK: false, Error: err.Error()}
}

func metaFromWire(w WirePosting) index.FileMetadata {
	return index.FileMetadata{
		Filename:       w.Filename,
		FileKey:        ring.Id(w.FileKey),
		OriginNodeID:   ring.Id(w.OriginNodeID),
		OriginNodeAddr: w.OriginNodeAddr,
		AllTokens:      w.AllTokens,
		Size:           w.Size,
	}
}

func wireFromMeta(token string, m index.FileMetadata) WirePosting {
	return WirePosting{
		Token:          token,
		Filename:       m.Filename,
		FileKey:        uint64(m.FileKey),
		OriginNodeID:   uint64(m.OriginNodeID),
		OriginNodeAddr: m.OriginNodeAddr,
		AllTokens:      m.AllTokens,
		Size:           m.Size,
	}
}

// --- client-side calls, dialing a remote peer by its derived identity ---

// dial derives target's peer ID from its address, tells the host about it,
// and opens a fresh stream for a single request/response (no connection
// pooling, mirroring the teacher's per-handshake stream lifecycle).
func (t *LibP2P) dial(ctx context.Context, target ring.Peer) (network.Stream, error) {
	_, id, err := DeriveIdentity(target.Addr())
	if err != nil {
		return nil, chorderr.New(chorderr.KindTransient, "dial", err)
	}
	addr, err := multiaddr.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", target.Host, target.Port))
	if err != nil {
		return nil, chorderr.New(chorderr.KindTransient, "dial", err)
	}
	t.host.Peerstore().AddAddr(id, addr, time.Hour)

	dialCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	s, err := t.host.NewStream(dialCtx, id, StreamProtocol)
	if err != nil {
		return nil, chorderr.New(chorderr.KindTransient, "dial", err)
	}
	_ = s.SetDeadline(time.Now().Add(t.timeout))
	return s, nil
}

func (t *LibP2P) roundTrip(ctx context.Context, target ring.Peer, req Request) (Response, error) {
	s, err := t.dial(ctx, target)
	if err != nil {
		return Response{}, err
	}
	defer s.Close()

	if err := t.codec.WriteRequest(s, req); err != nil {
		return Response{}, chorderr.New(chorderr.KindTransient, string(req.Op), err)
	}
	if c, ok := s.(interface{ CloseWrite() error }); ok {
		_ = c.CloseWrite()
	}

	resp, err := t.codec.ReadResponse(s)
	if err != nil && err != io.EOF {
		return Response{}, chorderr.New(chorderr.KindTransient, string(req.Op), err)
	}
	if !resp.OK && resp.Error != "" {
		return resp, chorderr.New(chorderr.KindTransient, string(req.Op), fmt.Errorf("%s", resp.Error))
	}
	return resp, nil
}

func parsePeer(addr string, m uint) (ring.Peer, error) {
	if addr == "" {
		return ring.Peer{}, nil
	}
	var host string
	var port uint16
	if _, err := fmt.Sscanf(addr, "%[^:]:%d", &host, &port); err != nil {
		return ring.Peer{}, fmt.Errorf("parse peer addr %q: %w", addr, err)
	}
	return ring.NewPeer(host, port, m), nil
}

// --- ring.Transport ---

func (t *LibP2P) FindSuccessor(ctx context.Context, target ring.Peer, key ring.Id) (ring.Peer, error) {
	resp, err := t.roundTrip(ctx, target, Request{Op: OpFindSuccessor, Key: uint64(key)})
	if err != nil {
		return ring.Peer{}, err
	}
	return parsePeer(resp.Peer, t.m)
}

func (t *LibP2P) GetPredecessor(ctx context.Context, target ring.Peer) (ring.Peer, bool, error) {
	resp, err := t.roundTrip(ctx, target, Request{Op: OpGetPredecessor})
	if err != nil {
		return ring.Peer{}, false, err
	}
	p, perr := parsePeer(resp.Peer, t.m)
	return p, resp.Has, perr
}

func (t *LibP2P) GetSuccessor(ctx context.Context, target ring.Peer) (ring.Peer, error) {
	resp, err := t.roundTrip(ctx, target, Request{Op: OpGetSuccessor})
	if err != nil {
		return ring.Peer{}, err
	}
	return parsePeer(resp.Peer, t.m)
}

func (t *LibP2P) Notify(ctx context.Context, target, candidate ring.Peer) error {
	_, err := t.roundTrip(ctx, target, Request{Op: OpNotify, Candidate: candidate.Addr()})
	return err
}

func (t *LibP2P) Ping(ctx context.Context, target ring.Peer) error {
	_, err := t.roundTrip(ctx, target, Request{Op: OpPing})
	return err
}

func (t *LibP2P) UpdateSuccessor(ctx context.Context, target, newSucc ring.Peer, has bool) error {
	_, err := t.roundTrip(ctx, target, Request{Op: OpUpdateSuccessor, Peer: newSucc.Addr(), Has: has})
	return err
}

func (t *LibP2P) UpdatePredecessor(ctx context.Context, target, newPred ring.Peer, has bool) error {
	_, err := t.roundTrip(ctx, target, Request{Op: OpUpdatePredecessor, Peer: newPred.Addr(), Has: has})
	return err
}

// --- store.Transport ---

func (t *LibP2P) StoreFile(ctx context.Context, target ring.Peer, filename string, data []byte, key ring.Id) error {
	_, err := t.roundTrip(ctx, target, Request{Op: OpStoreFile, Filename: filename, Data: data, Key: uint64(key)})
	return err
}

func (t *LibP2P) GetFile(ctx context.Context, target ring.Peer, filename string) ([]byte, bool, error) {
	resp, err := t.roundTrip(ctx, target, Request{Op: OpGetFile, Filename: filename})
	if err != nil {
		return nil, false, err
	}
	return resp.Data, resp.Found, nil
}

// --- index.Transport ---

func (t *LibP2P) StorePosting(ctx context.Context, target ring.Peer, token string, meta index.FileMetadata) error {
	posting := wireFromMeta(token, meta)
	_, err := t.roundTrip(ctx, target, Request{Op: OpStorePosting, Token: token, Posting: &posting})
	return err
}

func (t *LibP2P) LookupToken(ctx context.Context, target ring.Peer, token string) ([]index.FileMetadata, error) {
	resp, err := t.roundTrip(ctx, target, Request{Op: OpLookupToken, Token: token})
	if err != nil {
		return nil, err
	}
	out := make([]index.FileMetadata, 0, len(resp.Postings))
	for _, w := range resp.Postings {
		out = append(out, metaFromWire(w))
	}
	return out, nil
}

// --- rehash.Transport ---

func (t *LibP2P) TransferArc(ctx context.Context, target ring.Peer, lower, upper ring.Id) ([]store.Record, error) {
	resp, err := t.roundTrip(ctx, target, Request{Op: OpTransferArc, Lower: uint64(lower), Upper: uint64(upper)})
	if err != nil {
		return nil, err
	}
	out := make([]store.Record, 0, len(resp.Records))
	for _, r := range resp.Records {
		out = append(out, store.Record{Filename: r.Filename, Bytes: r.Bytes, Key: ring.Id(r.Key)})
	}
	return out, nil
}

func (t *LibP2P) DeleteKeys(ctx context.Context, target ring.Peer, filenames []string) error {
	_, err := t.roundTrip(ctx, target, Request{Op: OpDeleteKeys, Names: filenames})
	return err
}

func (t *LibP2P) PushBackup(ctx context.Context, target ring.Peer, records []store.Record) error {
	wire := make([]WireRecord, 0, len(records))
	for _, r := range records {
		wire = append(wire, WireRecord{Filename: r.Filename, Bytes: r.Bytes, Key: uint64(r.Key)})
	}
	_, err := t.roundTrip(ctx, target, Request{Op: OpPushBackup, Records: wire})
	return err
}


