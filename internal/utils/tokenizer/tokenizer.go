package tokenizer

import (
	"github.com/tiktoken-go/tokenizer/codec"
)

// EstimateTokens returns an approximate token count for content. Used when
// the upstream response carries no usage metadata; the o200k vocabulary is a
// close enough proxy for Gemini's.
func EstimateTokens(content string) int {
	enc := codec.NewO200kBase()
	tc, err := enc.Count(content)
	if err != nil {
		return 0
	}
	return tc
}
