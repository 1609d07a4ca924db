package textsplit

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// BoundaryConfig controls sentence/paragraph/hybrid grouping.
type BoundaryConfig struct {
	Unit      Unit
	Size      int // target size; <=0 defaults to 500
	Overlap   int // overlap in the same unit, best-effort
	Tokenizer Tokenizer
}

var sentRe = regexp.MustCompile(`(?s)([^.!?]+[.!?]+|[^.!?]+$)`)

func sentencesOf(text string) []string {
	parts := sentRe.FindAllString(strings.TrimSpace(text), -1)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var blankLineRe = regexp.MustCompile(`\n\s*\n+`)

func paragraphsOf(text string) []string {
	raw := blankLineRe.Split(strings.TrimSpace(text), -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func measure(text string, unit Unit, tok Tokenizer) int {
	if unit == UnitTokens {
		if tok == nil {
			tok = WhitespaceTokenizer{}
		}
		return len(tok.Tokenize(text))
	}
	return utf8.RuneCountInString(text)
}

func clipOverlapTail(chunk string, want int, unit Unit, tok Tokenizer) string {
	if want <= 0 || chunk == "" {
		return ""
	}
	if unit == UnitTokens {
		if tok == nil {
			tok = WhitespaceTokenizer{}
		}
		toks := tok.Tokenize(chunk)
		if want >= len(toks) {
			return chunk
		}
		return tok.Detokenize(toks[len(toks)-want:])
	}
	n := utf8.RuneCountInString(chunk)
	if want >= n {
		return chunk
	}
	idxs := make([]int, 0, n+1)
	idxs = append(idxs, 0)
	for i := 0; i < len(chunk); {
		_, w := utf8.DecodeRuneInString(chunk[i:])
		i += w
		idxs = append(idxs, i)
	}
	start := idxs[n-want]
	return chunk[start:]
}

// groupByTarget greedily packs units into segments up to cfg.Size, carrying
// an overlap tail forward between segments (§4.2: "allow a small overlap
// window between adjacent chunks to preserve context").
func groupByTarget(units []string, cfg BoundaryConfig) []string {
	if len(units) == 0 {
		return nil
	}
	size := cfg.Size
	if size <= 0 {
		size = 500
	}
	if cfg.Overlap < 0 {
		cfg.Overlap = 0
	}
	var tok Tokenizer
	if cfg.Unit == UnitTokens {
		tok = cfg.Tokenizer
		if tok == nil {
			tok = WhitespaceTokenizer{}
		}
	}

	var chunks []string
	var cur strings.Builder
	for i, u := range units {
		if u == "" {
			continue
		}
		candidate := u
		if cur.Len() > 0 {
			candidate = cur.String() + "\n" + u
		}
		if measure(candidate, cfg.Unit, tok) <= size || cur.Len() == 0 {
			if cur.Len() > 0 {
				cur.WriteString("\n")
			}
			cur.WriteString(u)
			if i == len(units)-1 {
				if s := cur.String(); s != "" {
					chunks = append(chunks, s)
				}
			}
			continue
		}
		if s := cur.String(); s != "" {
			chunks = append(chunks, s)
		}
		tail := clipOverlapTail(cur.String(), cfg.Overlap, cfg.Unit, tok)
		cur.Reset()
		if tail != "" {
			cur.WriteString(tail)
			cur.WriteString("\n")
		}
		cur.WriteString(u)
		if i == len(units)-1 {
			if s := cur.String(); s != "" {
				chunks = append(chunks, s)
			}
		}
	}
	return chunks
}

type boundarySplitter struct {
	mode string // "sent" | "para" | "hybrid"
	cfg  BoundaryConfig
}

func NewSentenceSplitter(cfg BoundaryConfig) Splitter  { return &boundarySplitter{mode: "sent", cfg: cfg} }
func NewParagraphSplitter(cfg BoundaryConfig) Splitter { return &boundarySplitter{mode: "para", cfg: cfg} }
func NewHybridSplitter(cfg BoundaryConfig) Splitter    { return &boundarySplitter{mode: "hybrid", cfg: cfg} }

func (s *boundarySplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var units []string
	switch s.mode {
	case "para":
		units = paragraphsOf(text)
	case "hybrid":
		for _, p := range paragraphsOf(text) {
			if s.cfg.Size > 0 && measure(p, s.cfg.Unit, s.cfg.Tokenizer) > s.cfg.Size*2 {
				units = append(units, sentencesOf(p)...)
			} else {
				units = append(units, p)
			}
		}
	default:
		units = sentencesOf(text)
	}
	return groupByTarget(units, s.cfg)
}
