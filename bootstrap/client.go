package bootstrap

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ringmesh/chordring/chorderr"
	"github.com/ringmesh/chordring/ring"
)

// Client is the joiner-side bootstrap wire client. Each call opens a short
// connection, sends one request line, reads one reply line, and closes —
// mirroring the registry server's accept-one-request-per-connection shape.
type Client struct {
	addr    string
	m       uint
	timeout time.Duration
}

// NewClient targets the bootstrap registry at addr.
func NewClient(addr string, m uint, timeout time.Duration) *Client {
	return &Client{addr: addr, m: m, timeout: timeout}
}

// JoinResult is the outcome of a successful Register call.
type JoinResult struct {
	Status Status
	Seeds  []ring.Peer
}

// Register tells the registry self is joining, returning join seeds on
// success. A registry that cannot be reached returns
// chorderr.ErrBootstrapUnavailable — per spec §4.C, this only blocks join,
// never ongoing peer operation.
func (c *Client) Register(self ring.Peer) (JoinResult, error) {
	line, err := c.roundTrip(fmt.Sprintf("register %s %d", self.Host, self.Port))
	if err != nil {
		return JoinResult{}, err
	}
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return JoinResult{}, chorderr.New(chorderr.KindBootstrapUnavailable, "register", fmt.Errorf("empty reply"))
	}

	switch toks[0] {
	case "joined":
		seeds, err := parsePeerList(toks[1:], c.m)
		if err != nil {
			return JoinResult{}, chorderr.New(chorderr.KindBootstrapUnavailable, "register", err)
		}
		return JoinResult{Status: StatusJoined, Seeds: seeds}, nil
	case "9996":
		return JoinResult{Status: StatusFull}, nil
	case "9998":
		return JoinResult{Status: StatusAlreadyRegistered}, nil
	default:
		return JoinResult{}, chorderr.New(chorderr.KindBootstrapUnavailable, "register", fmt.Errorf("unexpected reply %q", line))
	}
}

// Unregister tells the registry self is leaving gracefully.
func (c *Client) Unregister(self ring.Peer) error {
	_, err := c.roundTrip(fmt.Sprintf("unregister %s %d", self.Host, self.Port))
	return err
}

// Heartbeat refreshes self's liveness at the registry. Returning false (not
// an error) means the registry forgot self, e.g. after a restart — the
// caller should re-register.
func (c *Client) Heartbeat(self ring.Peer) (bool, error) {
	line, err := c.roundTrip(fmt.Sprintf("heartbeat %s %d", self.Host, self.Port))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(line) == "ack", nil
}

// ListPeers returns every peer currently known to the registry.
func (c *Client) ListPeers() ([]ring.Peer, error) {
	line, err := c.roundTrip("list_peers")
	if err != nil {
		return nil, err
	}
	toks := strings.Fields(line)
	if len(toks) < 2 || toks[0] != "peers" {
		return nil, chorderr.New(chorderr.KindBootstrapUnavailable, "list_peers", fmt.Errorf("unexpected reply %q", line))
	}
	return parsePeerList(toks[2:], c.m)
}

func (c *Client) roundTrip(request string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return "", chorderr.New(chorderr.KindBootstrapUnavailable, "bootstrap dial", err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(c.timeout))
	if _, err := fmt.Fprintln(conn, request); err != nil {
		return "", chorderr.New(chorderr.KindBootstrapUnavailable, "bootstrap write", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", chorderr.New(chorderr.KindBootstrapUnavailable, "bootstrap read", err)
	}
	return line, nil
}

// parsePeerList parses a flat "host port host port ..." token list, as
// produced by the registry's joined/peers replies, skipping a leading count
// token if present (the registry's count token is only used for logging on
// this side — the token list length is authoritative).
func parsePeerList(toks []string, m uint) ([]ring.Peer, error) {
	if len(toks) > 0 {
		if _, err := strconv.Atoi(toks[0]); err == nil {
			toks = toks[1:]
		}
	}
	if len(toks)%2 != 0 {
		return nil, fmt.Errorf("malformed peer list: %v", toks)
	}
	peers := make([]ring.Peer, 0, len(toks)/2)
	for i := 0; i < len(toks); i += 2 {
		port, err := strconv.ParseUint(toks[i+1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid port in peer list: %w", err)
		}
		peers = append(peers, ring.NewPeer(toks[i], uint16(port), m))
	}
	return peers, nil
}
