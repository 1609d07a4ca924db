package textsplit

import (
	"strings"
	"testing"
)

func TestCodeSplitterKeepsFenceAtomic(t *testing.T) {
	text := "Some prose before.\n\n```go\nfunc main() {\n\tprintln(\"hi\")\n}\n```\n\nSome prose after."
	s := NewCodeSplitter(CodeConfig{Within: BoundaryConfig{Unit: UnitTokens, Size: 500}})
	segs := s.Split(text)

	var foundFence bool
	for _, seg := range segs {
		if IsCodeBlock(seg) {
			foundFence = true
			if !strings.Contains(seg, "func main") {
				t.Errorf("expected fence to contain the full function, got %q", seg)
			}
		}
	}
	if !foundFence {
		t.Fatal("expected at least one code-block segment")
	}
}

func TestMarkdownSplitterPreservesHeadings(t *testing.T) {
	text := "# Title\n\nIntro paragraph.\n\n## Section\n\nBody text."
	s := NewMarkdownSplitter(MarkdownConfig{Within: BoundaryConfig{Unit: UnitTokens, Size: 500}})
	segs := s.Split(text)
	if len(segs) == 0 {
		t.Fatal("expected non-empty segments")
	}
	joined := strings.Join(segs, "\n")
	if !strings.Contains(joined, "# Title") || !strings.Contains(joined, "## Section") {
		t.Errorf("expected headings preserved, got %v", segs)
	}
}

func TestHeadings(t *testing.T) {
	hs := Headings("# One\n\ntext\n\n## Two\n")
	if len(hs) != 2 || hs[0] != "One" || hs[1] != "Two" {
		t.Errorf("unexpected headings: %v", hs)
	}
}

func TestGroupByTargetRespectsOverlap(t *testing.T) {
	units := []string{"alpha beta gamma", "delta epsilon zeta", "eta theta iota"}
	cfg := BoundaryConfig{Unit: UnitTokens, Size: 4, Overlap: 1}
	groups := groupByTarget(units, cfg)
	if len(groups) < 2 {
		t.Fatalf("expected multiple groups, got %v", groups)
	}
	if !strings.HasPrefix(groups[1], "gamma\n") {
		t.Errorf("expected second group to start with the one-token overlap tail %q, got %q", "gamma", groups[1])
	}
}
