// Package config resolves runtime configuration from defaults, an optional
// YAML file, a .env file, environment variables and command-line flags.
//
// Precedence (highest first): flags, environment, config file, defaults.
// The result is a plain Config value handed to constructors; nothing here is
// process-global.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = ".budgetchat"
	envPrefix  = "CHAT"
)

// Defaults for the OpenAI-compatible endpoint the agent talks to out of the box.
const (
	DefaultBaseURL     = "https://api.together.xyz/v1/"
	DefaultModel       = "meta-llama/Meta-Llama-3.1-70B-Instruct-Turbo"
	DefaultHistoryFile = "message_history.json"
	DefaultTokenLimit  = 2048
)

var (
	ErrMissingAPIKey        = errors.New("config: API key is not set (CHAT_API_KEY or API_KEY)")
	ErrMissingSystemMessage = errors.New("config: system message is not set (CHAT_SYSTEM_MESSAGE or SYSTEM_MESSAGE)")
)

// Config is the resolved configuration for one process.
type Config struct {
	APIKey         string        `mapstructure:"api_key"`
	SystemMessage  string        `mapstructure:"system_message"`
	Provider       string        `mapstructure:"provider" validate:"oneof=openai anthropic"`
	BaseURL        string        `mapstructure:"base_url" validate:"omitempty,url"`
	Model          string        `mapstructure:"model" validate:"required"`
	Temperature    float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int           `mapstructure:"max_tokens" validate:"gt=0"`
	TokenLimit     int           `mapstructure:"token_limit" validate:"gte=0"`
	Encoding       string        `mapstructure:"encoding" validate:"required"`
	HistoryFile    string        `mapstructure:"history_file" validate:"required"`
	Stream         bool          `mapstructure:"stream"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	LogLevel       string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Observe        bool          `mapstructure:"observe"`
	EventsDir      string        `mapstructure:"events_dir"`
	MetricsAddr    string        `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// RequireCredentials checks the values the chat loop cannot run without.
func (c Config) RequireCredentials() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.SystemMessage) == "" {
		return ErrMissingSystemMessage
	}
	return nil
}

// flagKeys maps config keys to the flag names that may override them.
var flagKeys = map[string]string{
	"provider":        "provider",
	"base_url":        "base-url",
	"model":           "model",
	"temperature":     "temperature",
	"max_tokens":      "max-tokens",
	"token_limit":     "token-limit",
	"encoding":        "encoding",
	"history_file":    "history-file",
	"stream":          "stream",
	"request_timeout": "timeout",
	"log_level":       "log-level",
	"observe":         "observe",
	"events_dir":      "events-dir",
	"metrics_addr":    "metrics-addr",
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an explicit YAML file; it must exist when set.
	ConfigFile string
	// Flags, when non-nil, are bound as the highest-precedence source.
	Flags *pflag.FlagSet
	// DotEnvDir is where the .env search starts; empty means the working directory.
	DotEnvDir string
	// SkipDotEnv disables .env loading.
	SkipDotEnv bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("base_url", "")
	v.SetDefault("model", DefaultModel)
	v.SetDefault("temperature", 0.1)
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("token_limit", DefaultTokenLimit)
	v.SetDefault("encoding", "cl100k_base")
	v.SetDefault("history_file", DefaultHistoryFile)
	v.SetDefault("stream", true)
	v.SetDefault("request_timeout", 5*time.Minute)
	v.SetDefault("log_level", "warn")
	v.SetDefault("observe", false)
	v.SetDefault("events_dir", ".agent")
	v.SetDefault("metrics_addr", "")
}

// Load resolves a Config. It does not check credentials; see RequireCredentials.
func Load(opts Options) (Config, error) {
	if !opts.SkipDotEnv {
		if err := loadDotEnv(opts.DotEnvDir); err != nil {
			return Config{}, err
		}
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// Unprefixed names are accepted as a fallback.
	if err := v.BindEnv("api_key", "CHAT_API_KEY", "API_KEY"); err != nil {
		return Config{}, err
	}
	if err := v.BindEnv("system_message", "CHAT_SYSTEM_MESSAGE", "SYSTEM_MESSAGE"); err != nil {
		return Config{}, err
	}

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return Config{}, err
	}

	if opts.Flags != nil {
		for key, name := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Provider = strings.ToLower(cfg.Provider)

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func readConfigFile(v *viper.Viper, explicit string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", explicit, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
	}
	return nil
}

// loadDotEnv loads the nearest .env at or above dir. Variables already set in
// the environment win over the file. A missing .env is not an error.
func loadDotEnv(dir string) error {
	path, ok := findDotEnv(dir)
	if !ok {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func findDotEnv(dir string) (string, bool) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", false
		}
		dir = cwd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(dir, ".env")
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
