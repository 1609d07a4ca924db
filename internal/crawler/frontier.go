package crawler

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// frontier is the per-source BFS queue of discovered, not-yet-fetched URLs
// (§4.1's "Breadth-first frontier per source"). depth is carried alongside
// each URL so max-depth can be enforced on pop.
type frontier struct {
	queue []frontierItem
}

type frontierItem struct {
	url   string
	depth int
}

func newFrontier(root string) *frontier {
	return &frontier{queue: []frontierItem{{url: root, depth: 0}}}
}

func (f *frontier) empty() bool { return len(f.queue) == 0 }

func (f *frontier) push(u string, depth int) {
	f.queue = append(f.queue, frontierItem{url: u, depth: depth})
}

func (f *frontier) pop() (string, int, bool) {
	if len(f.queue) == 0 {
		return "", 0, false
	}
	item := f.queue[0]
	f.queue = f.queue[1:]
	return item.url, item.depth, true
}

// normalizeURL canonicalizes scheme, host, path, and sorted query per
// §4.1's "dedup URLs by normalized form (scheme, host, path, sorted
// query)"; fragments are dropped entirely since they never affect the
// fetched resource.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(strings.Join(q[k], ","))
	}
	u.RawQuery = sb.String()
	return u.String()
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.ToLower(u.Host)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}

func documentID(sourceID, rawURL string) string {
	sum := sha256.Sum256([]byte(sourceID + "|" + normalizeURL(rawURL)))
	return hex.EncodeToString(sum[:16])
}

func computeRawHash(text, sourceID, u string) string {
	sum := sha256.Sum256([]byte(text + "|" + sourceID + "|" + u))
	return hex.EncodeToString(sum[:])
}
