// chord-noded runs a single Chord ring peer: it founds or joins a ring,
// serves file and index RPCs, and keeps stabilizing until signalled to stop.
//
// Usage:
//
//	chord-noded [--bootstrap=host:port] [--port=4001]  Run node
//	chord-noded --help                                 Show help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ringmesh/chordring/chordnode"
	"github.com/ringmesh/chordring/config"
	clog "github.com/ringmesh/chordring/internal/log"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logFile := cfg.Log.File
	if logFile == "" {
		logFile = cfg.LogsDir() + "/chordring.log"
	}
	if err := clog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger := clog.WithComponent("node")

	node, err := chordnode.New(cfg, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to assemble node")
	}

	self := node.Self()
	logger.Info().
		Str("addr", self.Addr()).
		Int("m", cfg.Ring.M).
		Str("bootstrap", cfg.Bootstrap.Addr).
		Str("store", cfg.Store.Backend).
		Msg("starting chord-noded")

	ctx := context.Background()
	if err := node.Join(ctx); err != nil {
		logger.Fatal().Err(err).Msg("join failed")
	}
	node.Run(ctx)

	status := node.Status()
	logger.Info().
		Str("successor", status.Successor.Addr()).
		Bool("has_predecessor", status.HasPredecessor).
		Msg("node joined ring")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	if err := node.Leave(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("leave did not complete cleanly")
	}
	logger.Info().Msg("goodbye")
}
