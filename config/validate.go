package config

import "fmt"

// Validate checks runtime node config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Ring.M <= 0 || cfg.Ring.M > 64 {
		return fmt.Errorf("ring.m must be in (0, 64], got %d", cfg.Ring.M)
	}
	if cfg.Ring.R < 1 {
		return fmt.Errorf("ring.r must be >= 1, got %d", cfg.Ring.R)
	}
	if cfg.Ring.SuspectThreshold < 1 {
		return fmt.Errorf("ring.suspect_threshold must be >= 1")
	}
	if cfg.Transport.Port < 0 || cfg.Transport.Port > 65535 {
		return fmt.Errorf("transport.port must be in range [0, 65535]")
	}
	switch cfg.Transport.Codec {
	case "text", "json":
	default:
		return fmt.Errorf("transport.codec must be \"text\" or \"json\", got %q", cfg.Transport.Codec)
	}
	if cfg.Transport.MaxInflight < 1 {
		return fmt.Errorf("transport.max_inflight must be >= 1")
	}
	switch cfg.Store.Backend {
	case "memory", "badger":
	default:
		return fmt.Errorf("store.backend must be \"memory\" or \"badger\", got %q", cfg.Store.Backend)
	}
	return nil
}
