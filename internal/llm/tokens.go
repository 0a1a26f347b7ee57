package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var encoding = sync.OnceValues(func() (*tiktoken.Tiktoken, error) {
	return tiktoken.GetEncoding("cl100k_base")
})

// Truncate bounds text to maxTokens cl100k tokens. It reports whether text was cut.
// A byte length at or under the budget cannot exceed it, so the encoder is not loaded.
// When the encoding is unavailable it falls back to ~4 bytes per token.
func Truncate(text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || len(text) <= maxTokens {
		return text, false
	}
	enc, err := encoding()
	if err != nil {
		limit := maxTokens * 4
		if len(text) <= limit {
			return text, false
		}
		for limit > 0 && !isRuneStart(text[limit]) {
			limit--
		}
		return text[:limit], true
	}
	toks := enc.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text, false
	}
	return enc.Decode(toks[:maxTokens]), true
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
