package textsplit

import (
	"regexp"
	"strings"
)

// CodeConfig configures code-fence-aware splitting so a code block's
// contents are never split or overlapped (§4.2: "never split a code
// block").
type CodeConfig struct {
	Within BoundaryConfig
}

var fenceRe = regexp.MustCompile("(?s)```.*?```")

// codeSplitter treats fenced code blocks as atomic units and groups the
// surrounding prose around them with a boundary splitter.
type codeSplitter struct{ cfg CodeConfig }

func NewCodeSplitter(cfg CodeConfig) Splitter { return &codeSplitter{cfg: cfg} }

func (s *codeSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	matches := fenceRe.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return NewHybridSplitter(s.cfg.Within).Split(text)
	}

	var out []string
	cursor := 0
	bs := NewHybridSplitter(s.cfg.Within)
	for _, m := range matches {
		start, end := m[0], m[1]
		if prose := strings.TrimSpace(text[cursor:start]); prose != "" {
			out = append(out, bs.Split(prose)...)
		}
		block := strings.TrimSpace(text[start:end])
		if block != "" {
			out = append(out, block) // atomic: never split, never overlapped
		}
		cursor = end
	}
	if prose := strings.TrimSpace(text[cursor:]); prose != "" {
		out = append(out, bs.Split(prose)...)
	}
	return out
}

// IsCodeBlock reports whether seg is a fenced code block, so callers (the
// chunker's packer) can treat it as an indivisible unit.
func IsCodeBlock(seg string) bool {
	return strings.HasPrefix(strings.TrimSpace(seg), "```")
}
