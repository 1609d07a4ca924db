package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// fingerprintFor computes the deterministic cache key of §4.8: a hash
// over (text, filters, k, mode, corpus version), so any ingestion commit
// (which bumps the corpus version) naturally misses stale cache entries
// without an explicit invalidation pass for query results (only
// InvalidatePrefix on "query:" at ingest commit is needed as a
// belt-and-suspenders sweep; see internal/ingest).
func fingerprintFor(p Plan, corpusVersion uint64) string {
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(p.Text)
	b.WriteByte('|')
	b.WriteString(string(p.Mode))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(p.K))
	b.WriteByte('|')
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, p.Filters[k])
	}
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(corpusVersion, 10))

	sum := sha256.Sum256([]byte(b.String()))
	return "query:" + hex.EncodeToString(sum[:])
}

func encodeResponse(resp Response) ([]byte, bool) {
	raw, err := json.Marshal(resp.Items)
	if err != nil {
		return nil, false
	}
	return raw, true
}

func decodeResponse(raw []byte) (Response, bool) {
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return Response{}, false
	}
	return Response{Items: items, State: StateAnswered}, true
}
