// Package chunker implements C5: turning an extracted Document into
// ordered, bounded Chunks with topics and a quality score. Segmentation is
// delegated to internal/textsplit's dedicated code/Markdown-aware
// splitters so fenced code blocks and headings stay intact across chunk
// boundaries.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"ptolemies/internal/config"
	"ptolemies/internal/model"
	"ptolemies/internal/textsplit"
)

// Chunker converts Documents into Chunks.
type Chunker struct {
	cfg config.ChunkingConfig
}

func New(cfg config.ChunkingConfig) *Chunker {
	if cfg.MinTokens <= 0 {
		cfg.MinTokens = 120
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 480
	}
	if cfg.MaxTopics <= 0 {
		cfg.MaxTopics = 8
	}
	return &Chunker{cfg: cfg}
}

// Chunk segments doc.Content into ordered model.Chunk values. Fails with
// ErrExtractionEmpty when no text survives extraction, and
// ErrUnsupportedContentType for content types that carry no extractable
// text (§4.2's contract).
func (c *Chunker) Chunk(doc *model.Document) ([]*model.Chunk, error) {
	if doc.ContentType != "" && !isTextual(doc.ContentType) {
		return nil, model.NewError(model.ErrUnsupportedContentType, doc.ContentType, nil)
	}
	text := strings.TrimSpace(doc.Content)
	if text == "" {
		return nil, model.NewError(model.ErrExtractionEmpty, "document has no extractable text", nil)
	}

	splitter := textsplit.NewMarkdownSplitter(textsplit.MarkdownConfig{
		Within: textsplit.BoundaryConfig{
			Unit:      textsplit.UnitTokens,
			Size:      c.cfg.MaxTokens,
			Overlap:   c.cfg.OverlapTokens,
			Tokenizer: textsplit.WhitespaceTokenizer{},
		},
	})
	segments := splitter.Split(text)
	if len(segments) == 0 {
		return nil, model.NewError(model.ErrExtractionEmpty, "no segments produced", nil)
	}

	packed := pack(segments, c.cfg)
	if len(packed) == 0 {
		return nil, model.NewError(model.ErrExtractionEmpty, "no chunks produced", nil)
	}

	headings := textsplit.Headings(text)
	now := time.Now()
	chunks := make([]*model.Chunk, 0, len(packed))
	for i, body := range packed {
		topics := extractTopics(body, headings, c.cfg.Frameworks, c.cfg.MaxTopics)
		quality := scoreQuality(body, topics, c.cfg)
		ch := &model.Chunk{
			ID:         chunkID(doc.ID, i),
			DocumentID: doc.ID,
			Ordinal:    i,
			Text:       body,
			TokenCount: len(textsplit.WhitespaceTokenizer{}.Tokenize(body)),
			Topics:     topics,
			Quality:    quality,
			CreatedAt:  now,
			SourceID:   doc.SourceID,
		}
		chunks = append(chunks, ch)
	}
	return chunks, nil
}

// pack re-groups the splitter's segments (headings, prose groups, atomic
// code blocks) into chunks of at most MaxTokens, treating fenced-code
// segments as indivisible units that are never split or overlapped across
// a chunk boundary (§4.2 step 2). MinTokens is not enforced as a floor: a
// chunk is flushed whenever the next segment would overflow MaxTokens, so
// any chunk (a lone heading, for one) can be shorter than MinTokens, and a
// code block longer than MaxTokens forms a chunk of its own above it.
func pack(segments []string, cfg config.ChunkingConfig) []string {
	tok := textsplit.WhitespaceTokenizer{}
	var chunks []string
	var cur strings.Builder
	curTokens := 0

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curTokens = 0
	}

	for _, seg := range segments {
		segTokens := len(tok.Tokenize(seg))
		isCode := textsplit.IsCodeBlock(seg)

		if curTokens > 0 && (curTokens+segTokens > cfg.MaxTokens) {
			flush()
		}
		if isCode && segTokens > cfg.MaxTokens && cur.Len() == 0 {
			// An oversized code block stands alone rather than being
			// split (§4.2: "never split a code block").
			chunks = append(chunks, strings.TrimSpace(seg))
			continue
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(seg)
		curTokens += segTokens

		if !isCode && curTokens >= cfg.MinTokens && curTokens >= cfg.MaxTokens {
			flush()
		}
	}
	flush()
	return chunks
}

func isTextual(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		contentType == "application/json" ||
		strings.HasSuffix(contentType, "html") ||
		strings.HasSuffix(contentType, "xhtml+xml")
}

func chunkID(documentID string, ordinal int) string {
	sum := sha256.Sum256([]byte(documentID + "#" + itoa(ordinal)))
	return hex.EncodeToString(sum[:16])
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
