package compress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/tokens"
)

// DefaultTargetRate asks the service to keep roughly half the tokens.
const DefaultTargetRate = 0.5

// RemoteOptions configures a Remote compressor.
type RemoteOptions struct {
	Endpoint   string
	APIKey     string
	TargetRate float64
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Remote delegates compression to an external HTTP service and memoises the
// results.
type Remote struct {
	endpoint string
	apiKey   string
	rate     float64
	client   *http.Client
	cache    *fifoCache
}

// NewRemote creates a Remote compressor.
func NewRemote(opts RemoteOptions) *Remote {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	rate := opts.TargetRate
	if rate <= 0 || rate > 1 {
		rate = DefaultTargetRate
	}
	return &Remote{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		rate:     rate,
		client:   client,
		cache:    newFIFOCache(DefaultCacheSize),
	}
}

type remoteRequest struct {
	Context    string  `json:"context"`
	Prompt     string  `json:"prompt"`
	TargetRate float64 `json:"target_rate"`
}

// Compress returns the cached or freshly compressed prompt. Any failure
// yields the original prompt with ratio 1.0.
func (r *Remote) Compress(ctx context.Context, prompt, contextText string) Result {
	key := cacheKey(prompt, contextText)
	if cached, ok := r.cache.get(key); ok {
		cached.Cached = true
		return cached
	}

	if strings.TrimSpace(r.apiKey) == "" || r.endpoint == "" {
		return remoteFallback(prompt, contextText)
	}

	res, err := r.call(ctx, prompt, contextText)
	if err != nil {
		log.Warn().Err(err).Msg("Prompt compression failed, using uncompressed prompt")
		return remoteFallback(prompt, contextText)
	}

	r.cache.put(key, res)
	return res
}

// remoteFallback returns the prompt untouched. The context is only counted,
// matching what a successful call reports.
func remoteFallback(prompt, contextText string) Result {
	res := Unchanged(joinContext(contextText, prompt), StrategyRemote)
	res.Prompt = prompt
	return res
}

// ClearCache drops every memoised result.
func (r *Remote) ClearCache() {
	r.cache.clear()
}

// CacheLen returns the number of memoised results.
func (r *Remote) CacheLen() int {
	return r.cache.len()
}

func (r *Remote) call(ctx context.Context, prompt, contextText string) (Result, error) {
	body, err := json.Marshal(remoteRequest{
		Context:    contextText,
		Prompt:     prompt,
		TargetRate: r.rate,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshalling compression request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating compression request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("compression request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Result{}, fmt.Errorf("compression failed (status %d): %s", resp.StatusCode, respBody)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("decoding compression response: %w", err)
	}

	ex, ok := extract(payload)
	if !ok {
		return Result{}, fmt.Errorf("unrecognised compression response shape")
	}

	original := ex.originalTokens
	if original <= 0 {
		original = tokens.Estimate(joinContext(contextText, prompt))
	}
	compressed := ex.compressedTokens
	if compressed <= 0 {
		compressed = tokens.Estimate(ex.prompt)
	}

	log.Debug().
		Int("original_tokens", original).
		Int("compressed_tokens", compressed).
		Msg("Prompt compressed")

	return Result{
		Prompt:           ex.prompt,
		OriginalTokens:   original,
		CompressedTokens: compressed,
		Ratio:            tokens.Ratio(original, compressed),
		Strategy:         StrategyRemote,
	}, nil
}

// extraction is what a strategy pulls out of a compression reply.
type extraction struct {
	prompt           string
	originalTokens   int
	compressedTokens int
}

// extractor tries to read one known reply layout. It reports false on a
// structural mismatch so the next layout can be tried.
type extractor func(payload map[string]any) (extraction, bool)

// extractors lists the reply layouts seen from the compression service, most
// recent first.
var extractors = []extractor{
	topLevelExtractor,
	nestedResultsExtractor,
}

func extract(payload map[string]any) (extraction, bool) {
	for _, fn := range extractors {
		if ex, ok := fn(payload); ok {
			return ex, true
		}
	}
	return extraction{}, false
}

// {"compressed_prompt": "...", "original_prompt_tokens": 120, ...}
func topLevelExtractor(payload map[string]any) (extraction, bool) {
	return fromObject(payload)
}

// {"results": {"compressed_prompt": "...", ...}}
func nestedResultsExtractor(payload map[string]any) (extraction, bool) {
	results, ok := payload["results"].(map[string]any)
	if !ok {
		return extraction{}, false
	}
	return fromObject(results)
}

func fromObject(obj map[string]any) (extraction, bool) {
	p, ok := obj["compressed_prompt"].(string)
	if !ok || p == "" {
		return extraction{}, false
	}
	return extraction{
		prompt:           p,
		originalTokens:   firstInt(obj, "original_prompt_tokens", "original_tokens"),
		compressedTokens: firstInt(obj, "compressed_prompt_tokens", "compressed_tokens"),
	}, true
}

func firstInt(obj map[string]any, keys ...string) int {
	for _, k := range keys {
		if f, ok := obj[k].(float64); ok && f > 0 {
			return int(f)
		}
	}
	return 0
}
