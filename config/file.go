package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads node configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a node config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	case "datadir":
		cfg.DataDir = value

	// Ring
	case "ring.m":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Ring.M = n
	case "ring.r":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Ring.R = n
	case "ring.stabilize_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Ring.StabilizeInterval = d
	case "ring.fix_fingers_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Ring.FixFingersInterval = d
	case "ring.check_predecessor_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Ring.CheckPredecessorInterval = d
	case "ring.suspect_threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Ring.SuspectThreshold = n
	case "ring.max_hops":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Ring.MaxHops = n

	// Transport
	case "transport.listen":
		cfg.Transport.ListenAddr = value
	case "transport.port":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Transport.Port = n
	case "transport.network_id":
		cfg.Transport.NetworkID = value
	case "transport.nodiscover":
		cfg.Transport.NoDiscover = parseBool(value)
	case "transport.wan_discover":
		cfg.Transport.WANDiscover = parseBool(value)
	case "transport.dht_server":
		cfg.Transport.DHTServer = parseBool(value)
	case "transport.codec":
		cfg.Transport.Codec = value
	case "transport.request_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Transport.RequestTimeout = d
	case "transport.drain_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Transport.DrainTimeout = d
	case "transport.max_inflight":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Transport.MaxInflight = n

	// Bootstrap
	case "bootstrap.addr":
		cfg.Bootstrap.Addr = value
	case "bootstrap.heartbeat_interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Bootstrap.HeartbeatInterval = d

	// Store
	case "store.backend":
		cfg.Store.Backend = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored.
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default node configuration file.
func WriteDefaultConfig(path string) error {
	content := `# Chord ring node configuration.
#
# Ring parameters (m, r) must match across every peer that joins the
# same ring; everything else is a per-node runtime setting.

# Data directory (default: ~/.chordring)
# datadir = ~/.chordring

# ============================================================================
# Ring
# ============================================================================

ring.m = 16
ring.r = 2
ring.stabilize_interval = 2s
ring.fix_fingers_interval = 3s
ring.check_predecessor_interval = 5s
ring.suspect_threshold = 2

# ============================================================================
# Transport
# ============================================================================

transport.listen = 0.0.0.0
transport.port = 4001
transport.request_timeout = 5s
transport.max_inflight = 256
transport.codec = json

# Ring namespace used for peer discovery (isolates unrelated rings)
# transport.network_id = my-ring

# Disable mDNS/gossip-assisted discovery (stabilize still maintains the ring)
# transport.nodiscover = false

# Enable Kademlia DHT discovery alongside mDNS, for WAN-scale peer-finding
# transport.wan_discover = false
# transport.dht_server = false

# ============================================================================
# Bootstrap registry
# ============================================================================

# host:port of the bootstrap registry; absent founds a new ring
# bootstrap.addr = 127.0.0.1:5000
bootstrap.heartbeat_interval = 3s

# ============================================================================
# Local store
# ============================================================================

store.backend = memory

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
