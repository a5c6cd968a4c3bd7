package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-flash-latest"

// GeminiOptions configures a Gemini generator.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string        // Override for tests and proxies
	Timeout time.Duration // Bounds each request; 0 means 60s
}

// Gemini generates completions with Google's Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator. It does not contact the API.
func NewGemini(ctx context.Context, opts GeminiOptions) (*Gemini, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Generate sends one prompt and returns the text of the first candidate.
func (g *Gemini) Generate(ctx context.Context, prompt string, params Params) (string, error) {
	start := time.Now()

	resp, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr(params.Temperature),
			TopK:            genai.Ptr(params.TopK),
			TopP:            genai.Ptr(params.TopP),
			MaxOutputTokens: params.MaxOutputTokens,
		},
	)
	if err != nil {
		return "", translateError(err)
	}

	log.Debug().
		Str("model", g.model).
		Dur("latency", time.Since(start)).
		Msg("Gemini response received")

	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrNoCandidates
	}

	text := resp.Text()
	if text == "" {
		return "", ErrNoCandidates
	}
	return text, nil
}

// Name returns the generator identifier.
func (g *Gemini) Name() string {
	return fmt.Sprintf("gemini:%s", g.model)
}

func translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Code: apiErr.Code, Message: apiMessage(apiErr)}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{Code: apiErrPtr.Code, Message: apiMessage(*apiErrPtr)}
	}
	return fmt.Errorf("gemini request: %w", err)
}

func apiMessage(e genai.APIError) string {
	if e.Message != "" {
		return e.Message
	}
	return "Unknown error"
}
