// Package compress shrinks prompts before they are sent to the text
// generation API.
//
// Compression is a cost optimisation, never a correctness dependency: every
// Compressor returns the original prompt with a ratio of 1.0 when it cannot
// do better, and none of them return errors.
package compress

import (
	"context"
	"regexp"
	"strings"

	"github.com/urmzd/homepanel/pkg/tokens"
)

// Strategy names, as used in configuration.
const (
	StrategyLocal  = "local"
	StrategyRemote = "remote"
)

// Result is the outcome of a compression attempt.
type Result struct {
	Prompt           string  `json:"compressed_prompt"`
	OriginalTokens   int     `json:"original_tokens"`
	CompressedTokens int     `json:"compressed_tokens"`
	Ratio            float64 `json:"compression_ratio"` // compressed/original
	Strategy         string  `json:"strategy"`
	Cached           bool    `json:"cached"`
	FellBack         bool    `json:"fell_back"`
}

// Saved returns the estimated tokens saved.
func (r Result) Saved() int {
	return tokens.Saved(r.OriginalTokens, r.CompressedTokens)
}

// Compressor rewrites a prompt (with optional separate context) to reduce its
// token count.
type Compressor interface {
	Compress(ctx context.Context, prompt, contextText string) Result
}

// Unchanged builds the fallback result: the original prompt, ratio 1.0.
func Unchanged(prompt, strategy string) Result {
	n := tokens.Estimate(prompt)
	return Result{
		Prompt:           prompt,
		OriginalTokens:   n,
		CompressedTokens: n,
		Ratio:            1.0,
		Strategy:         strategy,
		FellBack:         true,
	}
}

var (
	extraNewlines = regexp.MustCompile(`\n{3,}`)
	extraSpaces   = regexp.MustCompile(` {3,}`)
)

// Local collapses runs of blank lines and spaces. It is deterministic,
// offline and always succeeds.
type Local struct{}

// NewLocal creates a Local compressor.
func NewLocal() *Local {
	return &Local{}
}

// Compress collapses 3+ newlines to 2 and 3+ spaces to 2, then trims. The
// context argument is prepended unchanged when present.
func (l *Local) Compress(_ context.Context, prompt, contextText string) Result {
	full := joinContext(contextText, prompt)
	out := extraNewlines.ReplaceAllString(full, "\n\n")
	out = extraSpaces.ReplaceAllString(out, "  ")
	out = strings.TrimSpace(out)

	original := tokens.Estimate(full)
	compressed := tokens.Estimate(out)
	return Result{
		Prompt:           out,
		OriginalTokens:   original,
		CompressedTokens: compressed,
		Ratio:            tokens.Ratio(original, compressed),
		Strategy:         StrategyLocal,
	}
}

func joinContext(contextText, prompt string) string {
	if contextText == "" {
		return prompt
	}
	return contextText + "\n\n" + prompt
}
