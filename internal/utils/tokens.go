package utils

// Token estimation for prompt budgeting. Model tokenizers differ; this is a
// rough upper-bound guide only.

// CountTokens estimates the number of tokens in the given text.
// We approximate 1 token ~= 4 characters.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	// Ensure at least 1 token for any non-empty text
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}

// CountTokensAll sums CountTokens over texts.
func CountTokensAll(texts ...string) int {
	n := 0
	for _, t := range texts {
		n += CountTokens(t)
	}
	return n
}
