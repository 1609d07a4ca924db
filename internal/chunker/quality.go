package chunker

import (
	"strings"
	"unicode"

	"ptolemies/internal/config"
)

// scoreQuality combines three equal-weighted signals into a [0,1] score:
// length adequacy (how close the chunk is to the configured token window),
// signal-to-noise (ratio of alphanumeric content to total runes, penalizing
// boilerplate/whitespace-heavy chunks), and topic coverage (0 topics -> 0,
// 1 topic -> 0.6, 2 or more -> 1). Resolved as equal thirds per the Open Question
// on quality-score coefficients — no single signal dominates absent
// evidence that one should.
func scoreQuality(body string, topics []string, cfg config.ChunkingConfig) float64 {
	length := lengthAdequacy(body, cfg)
	snr := signalToNoise(body)
	coverage := topicCoverage(topics)
	return (length + snr + coverage) / 3.0
}

func lengthAdequacy(body string, cfg config.ChunkingConfig) float64 {
	tokens := len(strings.Fields(body))
	min, max := cfg.MinTokens, cfg.MaxTokens
	if max <= min {
		max = min + 1
	}
	switch {
	case tokens < min:
		if min == 0 {
			return 1
		}
		return float64(tokens) / float64(min)
	case tokens > max:
		overshoot := float64(tokens-max) / float64(max)
		score := 1 - overshoot
		if score < 0 {
			return 0
		}
		return score
	default:
		return 1
	}
}

func signalToNoise(body string) float64 {
	if body == "" {
		return 0
	}
	var meaningful, total int
	for _, r := range body {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			meaningful++
		}
	}
	if total == 0 {
		return 0
	}
	ratio := float64(meaningful) / float64(total)
	// Prose typically sits around 0.65-0.8 meaningful-rune density; normalize
	// so that band maps close to 1.0 rather than penalizing ordinary text.
	score := ratio / 0.75
	if score > 1 {
		score = 1
	}
	return score
}

func topicCoverage(topics []string) float64 {
	switch {
	case len(topics) == 0:
		return 0
	case len(topics) == 1:
		return 0.6
	default:
		return 1
	}
}
