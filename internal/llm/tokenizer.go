package llm

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used for models tiktoken-go doesn't know yet.
const fallbackEncoding = "cl100k_base"

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err == nil {
		return enc, nil
	}
	enc, err = tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer: %w", err)
	}
	return enc, nil
}

// CountTokens returns the number of tokens text encodes to under model's
// tokenizer.
func CountTokens(model, text string) (int, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// Truncate cuts text to at most maxTokens tokens under model's tokenizer.
// Extracted PDF text can exceed the model context window by a wide margin;
// truncating on token boundaries keeps the prompt valid and the cost bounded.
func Truncate(model, text string, maxTokens int) (string, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return "", err
	}
	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return enc.Decode(tokens[:maxTokens]), nil
}
