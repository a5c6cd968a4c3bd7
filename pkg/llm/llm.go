// Package llm talks to the text-generation API used to interpret commands.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoCandidates is returned when the API answers without any completion.
var ErrNoCandidates = errors.New("no response candidates")

// Params are the sampling parameters sent with every request.
type Params struct {
	Temperature     float32
	TopK            float32
	TopP            float32
	MaxOutputTokens int32
}

// DefaultParams bound the reply length and keep sampling moderate.
var DefaultParams = Params{
	Temperature:     0.7,
	TopK:            40,
	TopP:            0.95,
	MaxOutputTokens: 1024,
}

// Generator produces a single text completion for a single prompt. No
// conversation state is kept between calls.
type Generator interface {
	Generate(ctx context.Context, prompt string, params Params) (string, error)
}

// StatusError is returned when the API rejects a request.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}
