package config

import (
	"flag"
	"fmt"
	"os"
)

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	DataDir string
	Config  string

	// Ring
	M int
	R int

	// Transport
	ListenAddr string
	Port       int
	NetworkID   string
	NoDiscover  bool
	WANDiscover bool
	DHTServer   bool
	Codec       string

	// Bootstrap
	BootstrapAddr string

	// Store
	StoreBackend string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetNoDiscover  bool
	SetWANDiscover bool
	SetDHTServer   bool
	SetLogJSON     bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("chord-noded", flag.ContinueOnError)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.IntVar(&f.M, "m", 0, "Identifier-space bit width")
	fs.IntVar(&f.R, "r", 0, "File replication factor")

	fs.StringVar(&f.ListenAddr, "listen", "", "Transport listen address")
	fs.IntVar(&f.Port, "port", 0, "Transport listen port")
	fs.StringVar(&f.NetworkID, "network-id", "", "Ring namespace used for discovery")
	fs.BoolVar(&f.NoDiscover, "nodiscover", false, "Disable mDNS/gossip peer discovery")
	fs.BoolVar(&f.WANDiscover, "wan-discover", false, "Enable Kademlia DHT peer discovery alongside mDNS")
	fs.BoolVar(&f.DHTServer, "dht-server", false, "Run the Kademlia DHT in server mode (requires --wan-discover)")
	fs.StringVar(&f.Codec, "codec", "", "Wire codec: text or json")

	fs.StringVar(&f.BootstrapAddr, "bootstrap", "", "host:port of the bootstrap registry (empty founds a new ring)")

	fs.StringVar(&f.StoreBackend, "store", "", "Local store backend: memory or badger")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = func() { printUsage() }

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	f.SetNoDiscover = isFlagSet(fs, "nodiscover")
	f.SetWANDiscover = isFlagSet(fs, "wan-discover")
	f.SetDHTServer = isFlagSet(fs, "dht-server")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) {
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.M != 0 {
		cfg.Ring.M = f.M
	}
	if f.R != 0 {
		cfg.Ring.R = f.R
	}
	if f.ListenAddr != "" {
		cfg.Transport.ListenAddr = f.ListenAddr
	}
	if f.Port != 0 {
		cfg.Transport.Port = f.Port
	}
	if f.NetworkID != "" {
		cfg.Transport.NetworkID = f.NetworkID
	}
	if f.SetNoDiscover {
		cfg.Transport.NoDiscover = f.NoDiscover
	}
	if f.SetWANDiscover {
		cfg.Transport.WANDiscover = f.WANDiscover
	}
	if f.SetDHTServer {
		cfg.Transport.DHTServer = f.DHTServer
	}
	if f.Codec != "" {
		cfg.Transport.Codec = f.Codec
	}
	if f.BootstrapAddr != "" {
		cfg.Bootstrap.Addr = f.BootstrapAddr
	}
	if f.StoreBackend != "" {
		cfg.Store.Backend = f.StoreBackend
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `chord-noded - Chord DHT peer node

Usage:
  chord-noded [options]
  chord-noded --help

Commands:
  --help, -h      Show this help message
  --version       Show version information

Core Options:
  --datadir       Data directory (default: ~/.chordring)
  --config, -c    Config file path (default: <datadir>/chordring.conf)

Ring Options:
  --m             Identifier-space bit width (default: 16)
  --r             File replication factor (default: 2)

Transport Options:
  --listen        Transport listen address (default: 0.0.0.0)
  --port          Transport listen port (default: 4001)
  --network-id    Ring namespace used for peer discovery
  --nodiscover    Disable mDNS/gossip peer discovery
  --wan-discover  Enable Kademlia DHT peer discovery alongside mDNS
  --dht-server    Run the Kademlia DHT in server mode (requires --wan-discover)
  --codec         Wire codec: text (whitespace-token) or json (default: json)

Bootstrap Options:
  --bootstrap     host:port of the bootstrap registry (absent founds a new ring)

Store Options:
  --store         Local store backend: memory (default) or badger

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: <datadir>/logs/chordring.log)
  --log-json      Output logs as JSON

Examples:
  # Found a new ring
  chord-noded --port=4001

  # Join an existing ring via a bootstrap registry
  chord-noded --port=4002 --bootstrap=127.0.0.1:5000
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Command-line flags
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("chord-noded version 0.1.0")
		os.Exit(0)
	}

	cfg := Default()
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}

	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	ApplyFlags(cfg, flags)
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. This is idempotent — safe to call on
// every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.StoreDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
