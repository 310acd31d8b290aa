// chord-bootstrapd runs the join-time peer registry described in spec §4.C:
// a small directory new ring members contact once, to learn a couple of
// existing peers to use as find_successor seeds. It never participates in
// the ring protocol itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ringmesh/chordring/bootstrap"
	clog "github.com/ringmesh/chordring/internal/log"
)

func main() {
	listen := flag.String("listen", "0.0.0.0:5000", "Bootstrap registry listen address")
	m := flag.Uint("m", 16, "Ring identifier-space bit width, must match every peer")
	maxPeers := flag.Int("max-peers", 1024, "Maximum peers the registry will track")
	hbTimeout := flag.Duration("heartbeat-timeout", 15*time.Second, "Staleness window before a registration is pruned")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logJSON := flag.Bool("log-json", false, "Output logs as JSON")
	flag.Parse()

	if err := clog.Init(*logLevel, *logJSON, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := clog.WithComponent("bootstrap")

	registry := bootstrap.New(*maxPeers, *hbTimeout)
	server := bootstrap.NewServer(registry, *m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := server.Listen(ctx, *listen); err != nil {
		logger.Fatal().Err(err).Str("addr", *listen).Msg("failed to start bootstrap registry")
	}
	logger.Info().Str("addr", *listen).Int("max_peers", *maxPeers).Msg("bootstrap registry listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	cancel()
}
