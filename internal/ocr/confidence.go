package ocr

import (
	"strings"
	"unicode"
)

// heuristicConfidence scores decoded text when the provider reports no per-token confidence.
// Mostly-alphanumeric text made of plausible words scores higher than symbol soup.
func heuristicConfidence(txt string) float32 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	var alnum, total int
	for _, r := range txt {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	score := float32(0.2) // base
	if total > 0 {
		score += 0.5 * float32(alnum) / float32(total)
	}
	words := strings.Fields(txt)
	var plausible int
	for _, w := range words {
		if n := len(w); n >= 2 && n <= 24 {
			plausible++
		}
	}
	if len(words) > 0 {
		score += 0.2 * float32(plausible) / float32(len(words))
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
