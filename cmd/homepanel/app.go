package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/homepanel/pkg/assistant"
	"github.com/urmzd/homepanel/pkg/bridge"
	"github.com/urmzd/homepanel/pkg/config"
	"github.com/urmzd/homepanel/pkg/db"
	"github.com/urmzd/homepanel/pkg/device"
	"github.com/urmzd/homepanel/pkg/device/schema"
	"github.com/urmzd/homepanel/pkg/home"
	"github.com/urmzd/homepanel/pkg/llm"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg       *config.Config
	database  *db.DB
	sink      device.Sink // nil when the MQTT bridge is disabled
	store     *home.Store
	assistant *assistant.Assistant
}

// newApp loads configuration, opens and seeds the database, connects the
// bridge and loads the store.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	config.SetupLogging(cfg.Logging)

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info().Str("path", database.Path()).Msg("Database opened")

	a := &app{cfg: cfg, database: database}
	if err := a.prepareDatabase(ctx); err != nil {
		a.close()
		return nil, err
	}

	if cfg.MQTT.Enabled {
		b, err := bridge.Connect(ctx, bridge.Options{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		})
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT bridge unavailable, continuing without it")
		} else {
			a.sink = b
		}
	}

	a.store = home.New(database, home.Options{
		Validator:      schema.NewValidator(),
		Sink:           a.sink,
		SceneStepDelay: cfg.Pacing.SceneStep,
	})
	if err := a.store.Initialize(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("loading home state: %w", err)
	}

	a.assistant = assistant.New(a.store, assistant.Options{
		GeminiAPIKey: cfg.Gemini.APIKey,
		NewGenerator: func(ctx context.Context, apiKey string) (llm.Generator, error) {
			return llm.NewGemini(ctx, llm.GeminiOptions{
				APIKey:  apiKey,
				Model:   cfg.Gemini.Model,
				BaseURL: cfg.Gemini.BaseURL,
				Timeout: cfg.Gemini.Timeout,
			})
		},
		Compression: assistant.CompressionOptions{
			Strategy:   cfg.Compression.Strategy,
			Endpoint:   cfg.Compression.Endpoint,
			APIKey:     cfg.Compression.APIKey,
			TargetRate: cfg.Compression.TargetRate,
			Timeout:    cfg.Compression.Timeout,
		},
		CommandStep: cfg.Pacing.CommandStep,
	})

	log.Info().
		Int("rooms", len(a.store.Rooms())).
		Int("devices", len(a.store.Devices())).
		Int("scenes", len(a.store.Scenes())).
		Bool("mqtt", a.sink != nil).
		Msg("Home loaded")

	return a, nil
}

func (a *app) prepareDatabase(ctx context.Context) error {
	if err := a.database.Migrate(ctx); err != nil {
		return fmt.Errorf("running database migrations: %w", err)
	}

	// Bootstrap if needed (first run)
	needsBootstrap, err := a.database.NeedsBootstrap(ctx)
	if err != nil {
		return fmt.Errorf("checking bootstrap status: %w", err)
	}
	if needsBootstrap {
		log.Info().Msg("First run detected, seeding demo home...")
		if err := a.database.Bootstrap(ctx); err != nil {
			return fmt.Errorf("bootstrapping database: %w", err)
		}
		log.Info().Msg("Database bootstrapped successfully")
	}
	return nil
}

func (a *app) close() {
	if a.sink != nil {
		a.sink.Close()
	}
	if err := a.database.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close database")
	}
}
