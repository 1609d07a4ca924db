package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"ptolemies/internal/query"
)

// runQuery answers a single query from the command line and prints the
// fused, ranked items as JSON. A one-shot CLI process has no live
// ingestion orchestrator to consult for the corpus version, so cache
// fingerprints here are scoped to version 0; a long-running deployment
// wires query.New's corpusVersion callback to the same *Orchestrator a
// crawl/ingest process bumps, so ingestion commits invalidate fused
// query results automatically.
func runQuery(args []string) error {
	fs, cfgPath := newFlagSet("query")
	text := fs.String("text", "", "query text (required)")
	mode := fs.String("mode", string(query.ModeHybridBalanced), "SEMANTIC_ONLY|GRAPH_ONLY|HYBRID_BALANCED|CONCEPT_EXPANSION")
	k := fs.Int("k", 0, "number of results (0 = config default)")
	deadlineMS := fs.Int("deadline-ms", 0, "query deadline in milliseconds (0 = config default)")
	filterFlag := fs.String("filter", "", "comma-separated key=value metadata filters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *text == "" {
		return fmt.Errorf("-text is required")
	}

	comps, err := buildComponents(*cfgPath)
	if err != nil {
		return err
	}

	engine := query.New(comps.embedder, comps.vectors, comps.graphs, comps.cache, comps.cfg.Query, comps.cfg.Vector.Threshold, comps.cfg.Chunking.Frameworks, func() uint64 { return 0 }, comps.metrics)

	resp, err := engine.Answer(context.Background(), query.Request{
		Text:       *text,
		Mode:       query.Mode(*mode),
		K:          *k,
		DeadlineMS: *deadlineMS,
		Filters:    parseFilters(*filterFlag),
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func parseFilters(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
