package bootstrap

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/ringmesh/chordring/internal/log"
	"github.com/ringmesh/chordring/ring"
)

// Server accepts bootstrap wire connections and dispatches them to a
// Registry, one goroutine per connection — the same one-thread-per-client
// shape as the original bootstrap_server.py's handle_client, translated to
// goroutines instead of OS threads.
type Server struct {
	registry *Registry
	m        uint
	listener net.Listener
}

// NewServer wraps registry for serving over addr. m is the ring's
// identifier-space bit width, used to compute Peer ids for registered hosts.
func NewServer(registry *Registry, m uint) *Server {
	return &Server{registry: registry, m: m}
}

// Listen binds addr and begins accepting connections in the background.
// Call Shutdown (via ctx cancellation) to stop.
func (s *Server) Listen(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bootstrap server listen: %w", err)
	}
	s.listener = ln
	log.Bootstrap.Info().Str("addr", addr).Msg("bootstrap registry listening")

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	go s.acceptLoop(ctx)
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Bootstrap.Debug().Err(err).Msg("accept failed")
			continue
		}
		go s.handleConn(conn)
	}
}

// handleConn reads a single request line, dispatches it, writes one reply
// line, and closes — matching the original server's accept-one-request-
// per-connection protocol.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return
	}
	toks := strings.Fields(line)
	if len(toks) < 1 {
		fmt.Fprintln(conn, "9999 invalid_command")
		return
	}

	switch toks[0] {
	case "register":
		s.handleRegister(conn, toks)
	case "unregister":
		s.handleUnregister(conn, toks)
	case "heartbeat":
		s.handleHeartbeat(conn, toks)
	case "list_peers":
		s.handleListPeers(conn)
	default:
		fmt.Fprintln(conn, "9999 invalid_command")
	}
}

func parseHostPort(toks []string) (string, uint16, error) {
	if len(toks) < 3 {
		return "", 0, fmt.Errorf("expected host and port, got %v", toks)
	}
	port, err := strconv.ParseUint(toks[2], 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", toks[2], err)
	}
	return toks[1], uint16(port), nil
}

func (s *Server) handleRegister(conn net.Conn, toks []string) {
	host, port, err := parseHostPort(toks)
	if err != nil {
		fmt.Fprintln(conn, "9999 invalid_command")
		return
	}
	p := ring.NewPeer(host, port, s.m)
	status, seeds := s.registry.Register(p)

	switch status {
	case StatusJoined:
		reply := fmt.Sprintf("joined %d", len(seeds))
		for _, seed := range seeds {
			reply += fmt.Sprintf(" %s %d", seed.Host, seed.Port)
		}
		fmt.Fprintln(conn, reply)
	case StatusFull:
		fmt.Fprintln(conn, "9996 full")
	case StatusAlreadyRegistered:
		fmt.Fprintln(conn, "9998 already_registered")
	}
}

func (s *Server) handleUnregister(conn net.Conn, toks []string) {
	host, port, err := parseHostPort(toks)
	if err != nil {
		fmt.Fprintln(conn, "9999 invalid_command")
		return
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	if s.registry.Unregister(addr) {
		fmt.Fprintln(conn, "ok 0")
	} else {
		fmt.Fprintln(conn, "ok 9999")
	}
}

func (s *Server) handleHeartbeat(conn net.Conn, toks []string) {
	host, port, err := parseHostPort(toks)
	if err != nil {
		fmt.Fprintln(conn, "9999 invalid_command")
		return
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	if s.registry.Heartbeat(addr) {
		fmt.Fprintln(conn, "ack")
	} else {
		fmt.Fprintln(conn, "unknown")
	}
}

func (s *Server) handleListPeers(conn net.Conn) {
	peers := s.registry.ListPeers()
	reply := fmt.Sprintf("peers %d", len(peers))
	for _, p := range peers {
		reply += fmt.Sprintf(" %s %d", p.Host, p.Port)
	}
	fmt.Fprintln(conn, reply)
}
