package textsplit

import "strings"

// Tokenizer provides tokenization for token-based splitting and for the
// chunker's token-count accounting.
type Tokenizer interface {
	Tokenize(text string) []string
	Detokenize(tokens []string) string
}

// WhitespaceTokenizer splits on runs of whitespace. It is a crude proxy for
// a model's real tokenizer, but gives a stable, dependency-free count
// that scales consistently with prose length.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Tokenize(text string) []string {
	return strings.Fields(text)
}

func (WhitespaceTokenizer) Detokenize(tokens []string) string {
	return strings.Join(tokens, " ")
}
