// Package config handles application configuration for a chord ring node.
//
// Configuration is split into two categories:
//   - Ring parameters: shared across the whole ring (m, r) — a node with a
//     mismatched value cannot usefully join.
//   - Node settings: runtime configuration, can vary per node.
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Config holds node-specific runtime configuration.
type Config struct {
	// Core
	DataDir string `conf:"datadir"`

	// Ring parameters
	Ring RingConfig

	// Transport / networking
	Transport TransportConfig

	// Bootstrap registry client settings
	Bootstrap BootstrapConfig

	// Store settings
	Store StoreConfig

	// Logging
	Log LogConfig
}

// RingConfig holds the Chord identifier-space parameters.
type RingConfig struct {
	// M is the identifier-space bit width: ids live in [0, 2^M).
	M int `conf:"ring.m"`
	// R is the replication factor for file records (minimum 1).
	R int `conf:"ring.r"`

	// Timer periods, see spec §5.
	StabilizeInterval        time.Duration `conf:"ring.stabilize_interval"`
	FixFingersInterval       time.Duration `conf:"ring.fix_fingers_interval"`
	CheckPredecessorInterval time.Duration `conf:"ring.check_predecessor_interval"`

	// SuspectThreshold is the number of consecutive remote failures (N_suspect)
	// before a peer is declared dead and recovery is invoked.
	SuspectThreshold int `conf:"ring.suspect_threshold"`

	// MaxHops bounds find_successor forwarding (K_hops); 0 means use M.
	MaxHops int `conf:"ring.max_hops"`
}

// TransportConfig holds peer-to-peer transport settings.
type TransportConfig struct {
	ListenAddr string `conf:"transport.listen"`
	Port       int    `conf:"transport.port"`

	// NetworkID isolates discovery/rendezvous per logical ring.
	NetworkID string `conf:"transport.network_id"`

	// NoDiscover disables mDNS/gossip-assisted discovery; stabilize alone
	// still maintains the ring once peers are connected.
	NoDiscover bool `conf:"transport.nodiscover"`

	// WANDiscover starts a Kademlia DHT (go-libp2p-kad-dht) alongside mDNS,
	// for peer discovery across networks mDNS can't reach. Like NoDiscover's
	// layer, this is a convergence accelerant only: stabilize and the
	// bootstrap registry remain sufficient without it.
	WANDiscover bool `conf:"transport.wan_discover"`

	// DHTServer runs the Kademlia DHT in server mode (advertises itself as
	// a routing-table entry for other peers) instead of client mode. Only
	// meaningful when WANDiscover is set; ignored otherwise.
	DHTServer bool `conf:"transport.dht_server"`

	// RequestTimeout is T_net, the per-request network timeout.
	RequestTimeout time.Duration `conf:"transport.request_timeout"`

	// DrainTimeout is T_drain: how long in-flight inbound requests are
	// allowed to finish after shutdown begins.
	DrainTimeout time.Duration `conf:"transport.drain_timeout"`

	// MaxInflight bounds the worker pool handling inbound requests.
	MaxInflight int `conf:"transport.max_inflight"`

	// Codec selects the wire framing: "text" (whitespace-token) or "json".
	Codec string `conf:"transport.codec"`
}

// BootstrapConfig holds bootstrap-registry client settings.
type BootstrapConfig struct {
	// Addr is host:port of the bootstrap registry. Empty means this peer
	// founds a new ring instead of joining one.
	Addr string `conf:"bootstrap.addr"`

	HeartbeatInterval time.Duration `conf:"bootstrap.heartbeat_interval"`
}

// StoreConfig holds local storage settings.
type StoreConfig struct {
	// Backend selects "memory" (default, no durability required by spec)
	// or "badger" for an optional durable file/posting store.
	Backend string `conf:"store.backend"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// =============================================================================
// Directory helpers
// =============================================================================

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.chordring
//	macOS:   ~/Library/Application Support/Chordring
//	Windows: %APPDATA%\Chordring
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chordring"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Chordring")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Chordring")
		}
		return filepath.Join(home, "AppData", "Roaming", "Chordring")
	default:
		return filepath.Join(home, ".chordring")
	}
}

// StoreDir returns the durable store directory (used only by the badger backend).
func (c *Config) StoreDir() string {
	return filepath.Join(c.DataDir, "store")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "chordring.conf")
}
