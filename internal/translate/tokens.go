package translate

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/converse/pkg/chat"
)

// Estimator approximates input token counts for a conversation before
// dispatch, so callers can budget maxTokens and spot oversized prompts.
// Counts are estimates: the hosted families use their own tokenizers, and
// the authoritative numbers come back in the response usage.
type Estimator struct {
	tokenizer *tiktoken.Tiktoken
}

// NewEstimator creates an estimator for the given model identifier, falling
// back to the cl100k_base encoding for families tiktoken does not know.
func NewEstimator(modelID string) (*Estimator, error) {
	enc, err := tiktoken.EncodingForModel(modelID)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Estimator{tokenizer: enc}, nil
}

// perMessageOverhead approximates the wire framing cost of one message.
const perMessageOverhead = 4

// EstimateTokens returns the approximate token count of a conversation's
// text content.
func (e *Estimator) EstimateTokens(messages []chat.Message) int {
	total := 0
	for _, m := range messages {
		total += perMessageOverhead
		total += len(e.tokenizer.Encode(m.Text(), nil, nil))
		for _, b := range m.Content {
			if b.Type == chat.BlockToolUse && b.ToolUse != nil {
				total += len(e.tokenizer.Encode(string(b.ToolUse.Input), nil, nil))
			}
			if b.Type == chat.BlockToolResult && b.ToolResult != nil {
				total += len(e.tokenizer.Encode(b.ToolResult.Content, nil, nil))
			}
		}
	}
	return total
}
