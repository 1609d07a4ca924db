package textsplit

import (
	"regexp"
	"strings"
)

// MarkdownConfig configures heading-aware segmentation.
type MarkdownConfig struct {
	Within BoundaryConfig
	Code   CodeConfig
}

var mdHeadingRe = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+?)\s*$`)

type markdownSplitter struct{ cfg MarkdownConfig }

func NewMarkdownSplitter(cfg MarkdownConfig) Splitter { return &markdownSplitter{cfg: cfg} }

// Split segments text by Markdown headings, preserving each heading as its
// own unit (so the chunker can carry it into topic extraction) and
// grouping each section's body through the code-aware splitter so fenced
// blocks inside a section stay atomic.
func (m *markdownSplitter) Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	code := m.cfg.Code
	if code.Within.Size == 0 && code.Within.Unit == "" {
		code.Within = m.cfg.Within
	}
	idxs := mdHeadingRe.FindAllStringSubmatchIndex(text, -1)
	if len(idxs) == 0 {
		return NewCodeSplitter(code).Split(text)
	}

	var out []string
	for i := 0; i < len(idxs); i++ {
		start := idxs[i][0]
		end := len(text)
		if i+1 < len(idxs) {
			end = idxs[i+1][0]
		}
		heading := strings.TrimSpace(text[start:idxs[i][1]])
		body := strings.TrimSpace(text[idxs[i][1]:end])
		if heading != "" {
			out = append(out, heading)
		}
		cs := NewCodeSplitter(code)
		out = append(out, cs.Split(body)...)
	}
	return out
}

// Headings extracts the Markdown heading text (without '#' markers) from a
// document, in order, for topic extraction.
func Headings(text string) []string {
	matches := mdHeadingRe.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[2]))
	}
	return out
}
