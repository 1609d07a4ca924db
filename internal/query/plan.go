package query

import (
	"strings"

	"ptolemies/internal/config"
)

// Plan is the normalized, mode-resolved execution plan for a Request: a
// single oversampled vector candidate budget plus a graph anchor set,
// weighted per the resolved mode.
type Plan struct {
	Text     string
	Mode     Mode
	K        int
	VecK     int
	Filters  map[string]string
	Weights  config.ModeWeights
	Anchors  []string
	MaxDepth int
}

func (e *Engine) buildPlan(req Request) Plan {
	weights, ok := e.cfg.Weights[string(req.Mode)]
	if !ok {
		weights = config.DefaultModeWeights()[string(req.Mode)]
	}

	filters := map[string]string{}
	for k, v := range req.Filters {
		if v != "" {
			filters[k] = v
		}
	}

	vecK := int(float64(req.K) * e.cfg.AlphaOversample)
	if vecK < req.K {
		vecK = req.K
	}

	return Plan{
		Text:     normalizeText(req.Text),
		Mode:     req.Mode,
		K:        req.K,
		VecK:     vecK,
		Filters:  filters,
		Weights:  weights,
		Anchors:  e.extractAnchors(req.Text),
		MaxDepth: e.cfg.MaxGraphDepth,
	}
}

func normalizeText(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	prevSpace := false
	for _, r := range s {
		if r == '\n' || r == '\t' || r == '\r' {
			r = ' '
		}
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

var anchorStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "for": true, "with": true, "on": true, "is": true,
	"how": true, "what": true, "does": true, "do": true, "use": true, "using": true,
}

// extractAnchors derives graph anchor node ids from a query's free text:
// a "framework:<name>" anchor for every configured framework name that
// appears in the text, and a "concept:<word>" anchor for every other
// non-stopword token of length > 3, per §4.8's "extract anchor entities
// from text (framework/topic matches)".
func (e *Engine) extractAnchors(text string) []string {
	lower := strings.ToLower(text)
	var anchors []string
	seen := map[string]bool{}

	for _, fw := range e.frameworks {
		if fw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(fw)) {
			id := "framework:" + fw
			if !seen[id] {
				anchors = append(anchors, id)
				seen[id] = true
			}
		}
	}

	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?:;()[]{}\"'")
		if len(word) <= 3 || anchorStopwords[word] {
			continue
		}
		id := "concept:" + word
		if !seen[id] {
			anchors = append(anchors, id)
			seen[id] = true
		}
	}
	return anchors
}
