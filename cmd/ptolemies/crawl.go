package main

import (
	"context"
	"fmt"

	"ptolemies/internal/crawler"
	"ptolemies/internal/ingest"
	"ptolemies/internal/model"
)

// runCrawl drives every configured Source through the crawler and feeds
// each emitted Document straight into the ingestion orchestrator,
// composing C6 -> C7 the way §2's data-flow diagram describes.
func runCrawl(args []string) error {
	fs, cfgPath := newFlagSet("crawl")
	if err := fs.Parse(args); err != nil {
		return err
	}

	comps, err := buildComponents(*cfgPath)
	if err != nil {
		return err
	}
	if len(comps.cfg.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}

	c := crawler.New(comps.metrics)
	orch := ingest.New(comps.chunker, comps.embedder, comps.vectors, comps.graphs, comps.cache, comps.metrics)

	ctx := context.Background()
	var failures int
	for _, src := range comps.cfg.Sources {
		progress := make(chan crawler.Progress, 8)
		docs, errs := c.CrawlSource(ctx, src, progress)

		go func() {
			for p := range progress {
				fmt.Printf("source=%s pages_seen=%d pages_fetched=%d pages_failed=%d\n", p.SourceID, p.PagesSeen, p.PagesFetched, p.PagesFailed)
			}
		}()

		for doc := range docs {
			res := orch.IngestDocument(ctx, doc)
			if res.Outcome == ingest.OutcomeFailed {
				failures++
				fmt.Printf("document=%s outcome=failed err=%v\n", res.DocumentID, res.Err)
				continue
			}
			fmt.Printf("document=%s outcome=%s chunks=%d corpus_version=%d\n", res.DocumentID, res.Outcome, len(res.ChunkIDs), res.CorpusVersion)
		}
		if err := <-errs; err != nil && model.KindOf(err) != model.ErrUnknown {
			fmt.Printf("source=%s crawl error: %v\n", src.ID, err)
		}
	}
	if failures > 0 {
		return fmt.Errorf("%d document(s) failed to ingest", failures)
	}
	return nil
}
