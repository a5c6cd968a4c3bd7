// Package interpreter turns free-text commands into device actions.
//
// It grounds a text-generation model in the current rooms and devices,
// optionally compresses the prompt, and validates the structure of the reply.
// Executing the resulting actions is the caller's job.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/compress"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/llm"
	"github.com/urmzd/homepanel/pkg/tokens"
)

// Action is one device/status-patch pair produced by interpretation.
type Action struct {
	DeviceID string        `json:"device_id"`
	Status   device.Status `json:"status"`
}

// Executable reports whether the action names a device and carries a patch.
func (a Action) Executable() bool {
	return a.DeviceID != "" && len(a.Status) > 0
}

// Usage is the prompt token accounting for one interpretation.
type Usage struct {
	OriginalTokens   int     `json:"original_tokens"`
	CompressedTokens int     `json:"compressed_tokens"`
	Ratio            float64 `json:"compression_ratio"`
	Compressed       bool    `json:"compressed"`
	Strategy         string  `json:"strategy,omitempty"`
}

// Saved returns the tokens saved by compression.
func (u Usage) Saved() int {
	return tokens.Saved(u.OriginalTokens, u.CompressedTokens)
}

// Response is the validated reply of the model.
type Response struct {
	Actions      []Action `json:"actions"`
	Confirmation string   `json:"confirmation"`
	Suggestions  []string `json:"suggestions,omitempty"`
	Usage        Usage    `json:"usage"`
}

// Kind classifies interpretation failures.
type Kind int

const (
	// KindConfig is a missing or blank API key
	KindConfig Kind = iota + 1
	// KindTransport is a network failure or non-success status
	KindTransport
	// KindParse is a reply that is empty, not JSON, or missing required fields
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is the single failure type returned by Interpret.
type Error struct {
	Kind    Kind
	Status  int // HTTP status for KindTransport, when known
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error: %d - %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an interpreter *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ie *Error
	return errors.As(err, &ie) && ie.Kind == kind
}

// Options configures an Interpreter.
type Options struct {
	APIKey     string
	Generator  llm.Generator
	Compressor compress.Compressor // nil disables compression
	Params     *llm.Params         // nil uses llm.DefaultParams
}

// Interpreter converts commands into validated action lists.
type Interpreter struct {
	apiKey     string
	generator  llm.Generator
	compressor compress.Compressor
	params     llm.Params
}

// New creates an Interpreter.
func New(opts Options) *Interpreter {
	params := llm.DefaultParams
	if opts.Params != nil {
		params = *opts.Params
	}
	return &Interpreter{
		apiKey:     opts.APIKey,
		generator:  opts.Generator,
		compressor: opts.Compressor,
		params:     params,
	}
}

// Interpret builds the grounded prompt for command, sends it to the model and
// returns the validated reply. Failures are always *Error; nothing is retried.
func (i *Interpreter) Interpret(ctx context.Context, command string, rooms []device.Room, devices []device.Device) (*Response, error) {
	if strings.TrimSpace(i.apiKey) == "" {
		return nil, &Error{
			Kind:    KindConfig,
			Message: "Gemini API key is not configured. Add it in Settings to use AI commands.",
		}
	}
	if i.generator == nil {
		return nil, &Error{Kind: KindConfig, Message: "no text generator configured"}
	}

	prompt, err := BuildPrompt(command, rooms, devices)
	if err != nil {
		return nil, &Error{Kind: KindParse, Message: "failed to build prompt", Err: err}
	}

	original := tokens.Estimate(prompt)
	usage := Usage{OriginalTokens: original, CompressedTokens: original, Ratio: 1.0}

	if i.compressor != nil {
		res := i.compressor.Compress(ctx, prompt, "")
		prompt = res.Prompt
		usage = Usage{
			OriginalTokens:   res.OriginalTokens,
			CompressedTokens: res.CompressedTokens,
			Ratio:            res.Ratio,
			Compressed:       true,
			Strategy:         res.Strategy,
		}
		log.Debug().
			Str("strategy", res.Strategy).
			Int("original_tokens", res.OriginalTokens).
			Int("compressed_tokens", res.CompressedTokens).
			Int("tokens_saved", res.Saved()).
			Bool("fell_back", res.FellBack).
			Msg("Prompt compression applied")
	}

	text, err := i.generator.Generate(ctx, prompt, i.params)
	if err != nil {
		return nil, classify(err)
	}

	resp, err := parseResponse(text)
	if err != nil {
		return nil, &Error{Kind: KindParse, Message: err.Error(), Err: err}
	}
	resp.Usage = usage

	log.Debug().
		Int("input_tokens", usage.CompressedTokens).
		Int("actions", len(resp.Actions)).
		Msg("Command interpreted")

	return resp, nil
}

func classify(err error) error {
	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		return &Error{Kind: KindTransport, Status: statusErr.Code, Message: statusErr.Message, Err: err}
	}
	if errors.Is(err, llm.ErrNoCandidates) {
		return &Error{Kind: KindParse, Message: "No response from Gemini API", Err: err}
	}
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}
