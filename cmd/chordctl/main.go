// chordctl is a thin operator CLI for put/get/search/status against a
// Chord ring: it joins the ring as an ephemeral peer using the
// locally-embedded core (chordnode.Node), issues one operation, then
// leaves. It never talks HTTP — the core client API is the only surface,
// mirroring the teacher's klingnet-cli shape but without a network-facing
// RPC hop.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ringmesh/chordring/chordnode"
	"github.com/ringmesh/chordring/config"
	clog "github.com/ringmesh/chordring/internal/log"
)

func usage() {
	fmt.Fprint(os.Stderr, `chordctl - operator CLI for a Chord ring

Usage:
  chordctl [flags] put <file>
  chordctl [flags] get <filename> [outfile]
  chordctl [flags] search <query>
  chordctl [flags] status
  chordctl --help

Flags are the same as chord-noded (--bootstrap, --port, --m, ...); a
chordctl invocation joins as its own ephemeral peer for the duration of
one command.
`)
}

func main() {
	cfg, flags, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(flags.Args) == 0 {
		usage()
		os.Exit(1)
	}

	if err := clog.Init(cfg.Log.Level, cfg.Log.JSON, ""); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	node, err := chordnode.New(cfg, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: assembling node: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := node.Join(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: join failed: %v\n", err)
		os.Exit(1)
	}
	node.Run(ctx)
	defer node.Leave(context.Background())

	cmd, args := flags.Args[0], flags.Args[1:]
	switch cmd {
	case "put":
		err = cmdPut(ctx, node, args)
	case "get":
		err = cmdGet(ctx, node, args)
	case "search":
		err = cmdSearch(ctx, node, args)
	case "status":
		cmdStatus(node)
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdPut(ctx context.Context, node *chordnode.Node, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: chordctl put <file>")
	}
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	filename := filenameOf(path)
	res, err := node.Put(ctx, filename, data)
	if err != nil {
		return fmt.Errorf("put %s: %w", filename, err)
	}
	fmt.Printf("stored %q (%d bytes) primary=%s\n", filename, len(data), res.Target.Addr())
	return nil
}

func cmdGet(ctx context.Context, node *chordnode.Node, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: chordctl get <filename> [outfile]")
	}
	data, err := node.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("get %s: %w", args[0], err)
	}
	if len(args) == 2 {
		return os.WriteFile(args[1], data, 0644)
	}
	_, err = os.Stdout.Write(data)
	return err
}

func cmdSearch(ctx context.Context, node *chordnode.Node, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: chordctl search <query>")
	}
	hits, err := node.Search(ctx, args[0])
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(hits) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%6.3f  %-40s  %s\n", h.Score, h.Filename, h.Origin)
	}
	return nil
}

func cmdStatus(node *chordnode.Node) {
	s := node.Status()
	fmt.Printf("self:        %s\n", s.Self.Addr())
	fmt.Printf("successor:   %s\n", s.Successor.Addr())
	if s.HasPredecessor {
		fmt.Printf("predecessor: %s\n", s.Predecessor.Addr())
	} else {
		fmt.Printf("predecessor: (none)\n")
	}
	fmt.Printf("primary:     %d records\n", s.LocalPrimaryCount)
	fmt.Printf("backup:      %d records\n", s.LocalBackupCount)
	fmt.Printf("index size:  %d postings\n", s.IndexSize)
	if len(s.LostKeys) > 0 {
		fmt.Printf("lost keys:   %v\n", s.LostKeys)
	}
}

func filenameOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}
