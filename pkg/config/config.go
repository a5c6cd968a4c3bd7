// Package config loads the homepanel configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is the root configuration for homepanel.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	Compression CompressionConfig `mapstructure:"compression"`
	Pacing      PacingConfig      `mapstructure:"pacing"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Schedules   []Schedule        `mapstructure:"schedules"`
}

// ServerConfig holds the REST API listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig locates the SQLite file. Empty means the default path.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// GeminiConfig configures the text generation client. APIKey is a fallback;
// the api_keys setting wins when set.
type GeminiConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CompressionConfig configures prompt compression.
type CompressionConfig struct {
	Strategy   string        `mapstructure:"strategy"` // "local" or "remote"
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	TargetRate float64       `mapstructure:"target_rate"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// PacingConfig sets the pause between consecutive device updates.
type PacingConfig struct {
	SceneStep   time.Duration `mapstructure:"scene_step"`
	CommandStep time.Duration `mapstructure:"command_step"`
}

// MQTTConfig configures the device bridge.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
}

// Schedule applies a scene on a cron expression.
type Schedule struct {
	Scene string `mapstructure:"scene"` // scene id or name
	Cron  string `mapstructure:"cron"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the search order
// is ./homepanel.yaml, $XDG_CONFIG_HOME/homepanel/homepanel.yaml,
// /etc/homepanel/homepanel.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-flash-latest")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.timeout", 60*time.Second)
	v.SetDefault("compression.strategy", "remote")
	v.SetDefault("compression.endpoint", "https://api.scaledown.com/v1/compress")
	v.SetDefault("compression.api_key", "")
	v.SetDefault("compression.target_rate", 0.5)
	v.SetDefault("compression.timeout", 10*time.Second)
	v.SetDefault("pacing.scene_step", 200*time.Millisecond)
	v.SetDefault("pacing.command_step", 200*time.Millisecond)
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "homepanel")
	v.SetDefault("mqtt.topic_prefix", "homepanel")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("homepanel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "homepanel"))
		} else if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "homepanel"))
		}
		v.AddConfigPath("/etc/homepanel")
	}

	// Environment variables: HOMEPANEL_SERVER_PORT, HOMEPANEL_GEMINI_API_KEY, etc.
	v.SetEnvPrefix("HOMEPANEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		log.Debug().Msg("No config file found, using defaults and environment variables")
	} else {
		log.Info().Str("path", v.ConfigFileUsed()).Msg("Loaded config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.Gemini.APIKey = resolveEnvRef(cfg.Gemini.APIKey)
	cfg.Compression.APIKey = resolveEnvRef(cfg.Compression.APIKey)
	cfg.MQTT.Password = resolveEnvRef(cfg.MQTT.Password)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Compression.Strategy {
	case "local", "remote":
	default:
		return fmt.Errorf("compression.strategy must be local or remote, got %q", c.Compression.Strategy)
	}
	if c.Compression.TargetRate <= 0 || c.Compression.TargetRate > 1 {
		return fmt.Errorf("compression.target_rate must be in (0, 1], got %v", c.Compression.TargetRate)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	for i, s := range c.Schedules {
		if s.Scene == "" || s.Cron == "" {
			return fmt.Errorf("schedules[%d] needs both scene and cron", i)
		}
	}
	return nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global zerolog logger.
func SetupLogging(cfg LoggingConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if strings.ToLower(cfg.Format) == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
