// Package assistant runs natural-language commands end to end: it builds the
// interpreter from the current settings, interprets the command and executes
// the resulting actions through the home store.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/compress"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/home"
	"github.com/urmzd/homepanel/pkg/interpreter"
	"github.com/urmzd/homepanel/pkg/llm"
)

// Keys read from the api_keys setting.
const (
	KeyGemini             = "gemini_api_key"
	KeyCompression        = "scaledown_api_key"
	KeyCompressionEnabled = "compression_enabled"
)

// Command sources.
const (
	SourceText  = "text"
	SourceVoice = "voice"
)

// ErrEmptyCommand is returned for blank command text.
var ErrEmptyCommand = errors.New("command text is empty")

// QuickActions are suggested one-tap commands.
var QuickActions = []string{
	"Turn on living room lights",
	"Set bedroom AC to 22°C",
	"Good morning",
	"Goodnight",
}

// GeneratorFactory creates a text generator for an API key.
type GeneratorFactory func(ctx context.Context, apiKey string) (llm.Generator, error)

// CompressionOptions configures the compressor used when compression is
// enabled in settings.
type CompressionOptions struct {
	Strategy   string // compress.StrategyLocal or compress.StrategyRemote
	Endpoint   string
	APIKey     string // fallback when the setting has no key
	TargetRate float64
	Timeout    time.Duration
}

// Options configures an Assistant.
type Options struct {
	// GeminiAPIKey is used when the api_keys setting has no key.
	GeminiAPIKey string
	NewGenerator GeneratorFactory
	Compression  CompressionOptions
	// CommandStep is the pause between executed actions. Negative disables it.
	CommandStep time.Duration
	Params      *llm.Params
}

// Command is one request from the command bar or a voice transcript.
type Command struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// Result is what the caller shows the user.
type Result struct {
	Confirmation string               `json:"confirmation"`
	Suggestions  []string             `json:"suggestions,omitempty"`
	Executed     []interpreter.Action `json:"executed"`
	Skipped      int                  `json:"skipped"`
	Usage        interpreter.Usage    `json:"usage"`
}

// Assistant executes commands against a home store.
type Assistant struct {
	store *home.Store
	opts  Options

	mu        sync.Mutex
	genKey    string
	generator llm.Generator
	remoteKey string
	remote    *compress.Remote
	local     *compress.Local
}

// New creates an Assistant.
func New(store *home.Store, opts Options) *Assistant {
	if opts.CommandStep == 0 {
		opts.CommandStep = 200 * time.Millisecond
	}
	if opts.Compression.Strategy == "" {
		opts.Compression.Strategy = compress.StrategyRemote
	}
	return &Assistant{
		store: store,
		opts:  opts,
		local: compress.NewLocal(),
	}
}

// Execute interprets cmd and applies every action that names a device and
// carries a status, in order, with trigger ai. Interpretation failures are
// recorded on the store and cause no mutations. The first failing action
// aborts the remaining ones.
func (a *Assistant) Execute(ctx context.Context, cmd Command) (*Result, error) {
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return nil, ErrEmptyCommand
	}
	source := cmd.Source
	if source == "" {
		source = SourceText
	}

	settings := a.store.Setting(device.SettingAPIKeys)
	apiKey := firstNonBlank(settings.String(KeyGemini), a.opts.GeminiAPIKey)

	var generator llm.Generator
	if strings.TrimSpace(apiKey) != "" {
		g, err := a.generatorFor(ctx, apiKey)
		if err != nil {
			a.store.SetError(err.Error())
			return nil, &interpreter.Error{Kind: interpreter.KindConfig, Message: err.Error(), Err: err}
		}
		generator = g
	}

	interp := interpreter.New(interpreter.Options{
		APIKey:     apiKey,
		Generator:  generator,
		Compressor: a.compressorFor(settings),
		Params:     a.opts.Params,
	})

	log.Info().Str("command", text).Str("source", source).Msg("Processing command")

	resp, err := interp.Interpret(ctx, text, a.store.Rooms(), a.store.Devices())
	if err != nil {
		a.store.SetError(err.Error())
		log.Error().Err(err).Str("command", text).Msg("Command interpretation failed")
		return nil, err
	}

	if resp.Usage.Compressed {
		a.store.RecordTokenUsage(resp.Usage.OriginalTokens, resp.Usage.CompressedTokens, resp.Usage.Ratio)
	}

	result := &Result{
		Confirmation: resp.Confirmation,
		Suggestions:  resp.Suggestions,
		Executed:     []interpreter.Action{},
		Usage:        resp.Usage,
	}

	for _, action := range resp.Actions {
		if !action.Executable() {
			result.Skipped++
			continue
		}
		if len(result.Executed) > 0 {
			if err := pause(ctx, a.opts.CommandStep); err != nil {
				return result, err
			}
		}
		if _, err := a.store.UpdateDevice(ctx, action.DeviceID, action.Status, device.TriggerAI); err != nil {
			return result, fmt.Errorf("executing action on %s: %w", action.DeviceID, err)
		}
		result.Executed = append(result.Executed, action)
	}

	if len(result.Executed) > 0 {
		if _, err := a.store.AddActivityLog(ctx, device.ActivityLog{
			ActionType: device.ActionAICommand,
			Trigger:    device.TriggerAI,
			Command:    text,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to record command activity")
		}
	}

	log.Info().
		Int("executed", len(result.Executed)).
		Int("skipped", result.Skipped).
		Msg("Command completed")

	return result, nil
}

// generatorFor returns a generator for key, reusing the previous one while the
// key is unchanged.
func (a *Assistant) generatorFor(ctx context.Context, key string) (llm.Generator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generator != nil && a.genKey == key {
		return a.generator, nil
	}
	if a.opts.NewGenerator == nil {
		return nil, errors.New("no text generator configured")
	}
	g, err := a.opts.NewGenerator(ctx, key)
	if err != nil {
		return nil, err
	}
	a.generator, a.genKey = g, key
	return g, nil
}

// compressorFor returns nil unless compression is enabled in settings. The
// remote compressor is kept while its key is unchanged so its cache survives
// across commands.
func (a *Assistant) compressorFor(settings *device.Setting) compress.Compressor {
	if !settings.Bool(KeyCompressionEnabled) {
		return nil
	}
	if a.opts.Compression.Strategy == compress.StrategyLocal {
		return a.local
	}

	key := firstNonBlank(settings.String(KeyCompression), a.opts.Compression.APIKey)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.remote == nil || a.remoteKey != key {
		a.remote = compress.NewRemote(compress.RemoteOptions{
			Endpoint:   a.opts.Compression.Endpoint,
			APIKey:     key,
			TargetRate: a.opts.Compression.TargetRate,
			Timeout:    a.opts.Compression.Timeout,
		})
		a.remoteKey = key
	}
	return a.remote
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
