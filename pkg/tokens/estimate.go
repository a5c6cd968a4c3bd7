// Package tokens provides a cheap, tokenizer-free estimate of prompt cost.
package tokens

import "unicode/utf8"

// charsPerToken is the usual rule of thumb for English prompts.
const charsPerToken = 4

// Estimate returns ceil(characters/4). It does not match any real tokenizer;
// it is monotonic in length and stable, which is all before/after
// compression accounting needs.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + charsPerToken - 1) / charsPerToken
}

// Saved returns the tokens saved going from original to compressed, never
// negative.
func Saved(original, compressed int) int {
	if compressed >= original {
		return 0
	}
	return original - compressed
}

// Ratio returns compressed/original, or 1.0 when original is zero.
func Ratio(original, compressed int) float64 {
	if original <= 0 {
		return 1.0
	}
	return float64(compressed) / float64(original)
}
