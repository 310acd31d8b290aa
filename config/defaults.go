package config

import "time"

// DefaultM is the default identifier-space bit width (spec §6 default: 16).
const DefaultM = 16

// DefaultR is the default replication factor for file records.
const DefaultR = 2

// Default returns the default node configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Ring: RingConfig{
			M:                        DefaultM,
			R:                        DefaultR,
			StabilizeInterval:        2 * time.Second,
			FixFingersInterval:       3 * time.Second,
			CheckPredecessorInterval: 5 * time.Second,
			SuspectThreshold:         2,
			MaxHops:                  0, // 0 => use M
		},
		Transport: TransportConfig{
			ListenAddr:     "0.0.0.0",
			Port:           4001,
			NoDiscover:     false,
			WANDiscover:    false,
			DHTServer:      false,
			RequestTimeout: 5 * time.Second,
			DrainTimeout:   500 * time.Millisecond,
			MaxInflight:    256,
			Codec:          "json",
		},
		Bootstrap: BootstrapConfig{
			Addr:              "",
			HeartbeatInterval: 3 * time.Second,
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
