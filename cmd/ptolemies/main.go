// Command ptolemies is the single entry point for the crawl, ingest, and
// query operations of the retrieval engine. Each subcommand resolves to a
// run(args) error function returning into a thin main, which logs a fatal
// error and exits non-zero on failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"ptolemies/internal/cache"
	"ptolemies/internal/chunker"
	"ptolemies/internal/config"
	"ptolemies/internal/embedder"
	"ptolemies/internal/logging"
	"ptolemies/internal/obs"
	"ptolemies/internal/store/graph"
	"ptolemies/internal/store/vector"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: ptolemies <crawl|ingest|query> [flags]")
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "crawl":
		err = runCrawl(args)
	case "ingest":
		err = runIngest(args)
	case "query":
		err = runQuery(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q; want crawl, ingest, or query\n", cmd)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Str("command", cmd).Msg("ptolemies")
	}
}

// components bundles the collaborators every subcommand needs, built once
// from a loaded Config and threaded through rather than re-constructed
// per call.
type components struct {
	cfg      config.Config
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	vectors  vector.Store
	graphs   graph.Store
	cache    cache.Cache
	metrics  obs.Metrics
}

func buildComponents(cfgPath string) (*components, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Options{Level: cfg.LogLevel, LogFile: cfg.LogFile})

	ctx := context.Background()
	vs, err := vector.Open(ctx, cfg.Vector)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	gs, err := graph.Open(ctx, cfg.Graph)
	if err != nil {
		return nil, fmt.Errorf("open graph store: %w", err)
	}
	ch, err := cache.Open(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	return &components{
		cfg:      cfg,
		chunker:  chunker.New(cfg.Chunking),
		embedder: embedder.New(cfg.Embedding),
		vectors:  vs,
		graphs:   gs,
		cache:    ch,
		metrics:  obs.NewOtelMetrics("ptolemies"),
	}, nil
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to config.yaml")
	return fs, cfgPath
}
