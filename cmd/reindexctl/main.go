// Command reindexctl is an operational CLI for the index manager (C6):
// force a full reindex or dump queue/dead-letter stats, grounded on the
// teacher's cmd/embedctl/main.go shape (flag.Parse, config.Load, one-shot
// action, log.Fatalf on error) generalized from one HTTP call to the two
// index-manager operations this service needs from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"castingai/internal/config"
	"castingai/internal/embedding"
	"castingai/internal/indexmanager"
	"castingai/internal/profiles"
	"castingai/internal/vectorindex"
)

func main() {
	log.SetFlags(0)
	flag.Usage = func() {
		os.Stderr.WriteString("usage: reindexctl <reindex|stats>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	// One-shot CLI: no cache store to wire in, so embeds always call through.
	embedder := embedding.New(cfg.Embedding, nil)
	index, err := vectorindex.New(ctx, cfg.VectorIndex)
	if err != nil {
		log.Fatalf("init vector index: %v", err)
	}
	defer index.Close()

	profileClient := profiles.New(profiles.Config{
		BaseURL: cfg.Profiles.BaseURL,
		APIKey:  cfg.Profiles.APIKey,
		Timeout: cfg.Profiles.Timeout,
	}, nil)

	mgr := indexmanager.New(cfg.IndexManager, index, embedder, profileClient)

	switch args[0] {
	case "reindex":
		if err := mgr.Reindex(ctx); err != nil {
			log.Fatalf("reindex: %v", err)
		}
		count, err := index.Count(ctx)
		if err != nil {
			log.Fatalf("count: %v", err)
		}
		log.Printf("reindex complete: %d vectors indexed", count)
	case "stats":
		stats := mgr.Stats()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(stats); err != nil {
			log.Fatalf("encode stats: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
