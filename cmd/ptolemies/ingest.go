package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"ptolemies/internal/ingest"
	"ptolemies/internal/model"
)

// runIngest ingests a single document read from -file (or STDIN),
// bypassing the crawler for one-off backfills and tests.
func runIngest(args []string) error {
	fs, cfgPath := newFlagSet("ingest")
	id := fs.String("id", "", "document id (required)")
	sourceID := fs.String("source", "", "source id")
	url := fs.String("url", "", "document url")
	title := fs.String("title", "", "document title")
	contentType := fs.String("content-type", "text/markdown", "document content type")
	file := fs.String("file", "", "path to the document's content; reads STDIN if empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("-id is required")
	}

	var content []byte
	var err error
	if *file != "" {
		content, err = os.ReadFile(*file)
	} else {
		content, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}

	comps, err := buildComponents(*cfgPath)
	if err != nil {
		return err
	}
	orch := ingest.New(comps.chunker, comps.embedder, comps.vectors, comps.graphs, comps.cache, comps.metrics)

	sum := sha256.Sum256([]byte(string(content) + "|" + *sourceID + "|" + *url))
	doc := &model.Document{
		ID:          *id,
		SourceID:    *sourceID,
		URL:         *url,
		Title:       *title,
		ContentType: *contentType,
		Content:     string(content),
		RawHash:     hex.EncodeToString(sum[:]),
		FetchedAt:   time.Now(),
	}

	res := orch.IngestDocument(context.Background(), doc)
	fmt.Printf("document=%s outcome=%s chunks=%d corpus_version=%d\n", res.DocumentID, res.Outcome, len(res.ChunkIDs), res.CorpusVersion)
	if res.Outcome == ingest.OutcomeFailed {
		return res.Err
	}
	return nil
}
