// Package config loads parla settings from an optional YAML file, a .env
// file and PARLA_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/abhisek/parla/internal/llm"
	"github.com/abhisek/parla/internal/logging"
	"github.com/abhisek/parla/internal/session"
	"github.com/abhisek/parla/internal/store"
)

// Config is the full application configuration.
type Config struct {
	LLM     LLMConfig      `mapstructure:"llm"`
	Store   StoreConfig    `mapstructure:"store"`
	Server  ServerConfig   `mapstructure:"server"`
	Log     logging.Config `mapstructure:"log"`
	Session SessionConfig  `mapstructure:"session"`
	Redis   RedisConfig    `mapstructure:"redis"`

	// providerSet records whether llm.provider was configured explicitly.
	providerSet bool
}

type LLMConfig struct {
	Provider      string         `mapstructure:"provider"`
	Timeout       time.Duration  `mapstructure:"timeout"`
	Temperature   float64        `mapstructure:"temperature"`
	MaxTokens     int            `mapstructure:"max_tokens"`
	RetryAttempts int            `mapstructure:"retry_attempts"`
	Anthropic     ProviderConfig `mapstructure:"anthropic"`
	OpenAI        ProviderConfig `mapstructure:"openai"`
	Gemini        ProviderConfig `mapstructure:"gemini"`
	OpenRouter    ProviderConfig `mapstructure:"openrouter"`
}

type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`    // empty means the default sqlite path
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type SessionConfig struct {
	Backend         string        `mapstructure:"backend"` // memory or redis
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	MaxSessions     int           `mapstructure:"max_sessions"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func setDefaults(v *viper.Viper) {
	def := llm.DefaultConfig()
	v.SetDefault("llm.provider", def.Provider)
	v.SetDefault("llm.timeout", def.Timeout)
	v.SetDefault("llm.temperature", def.Temperature)
	v.SetDefault("llm.max_tokens", def.MaxTokens)
	v.SetDefault("llm.retry_attempts", def.Retry.MaxAttempts)
	for name, model := range map[string]string{
		"anthropic":  def.Anthropic.Model,
		"openai":     def.OpenAI.Model,
		"gemini":     def.Gemini.Model,
		"openrouter": def.OpenRouter.Model,
	} {
		v.SetDefault("llm."+name+".api_key", "")
		v.SetDefault("llm."+name+".model", model)
		v.SetDefault("llm."+name+".base_url", "")
	}

	v.SetDefault("store.driver", store.DriverSQLite)
	v.SetDefault("store.dsn", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 90*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 2.0)
	v.SetDefault("server.rate_limit_burst", 10)

	logDef := logging.DefaultConfig()
	v.SetDefault("log.level", logDef.Level)
	v.SetDefault("log.format", logDef.Format)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", logDef.MaxSizeMB)
	v.SetDefault("log.max_backups", logDef.MaxBackups)
	v.SetDefault("log.max_age_days", logDef.MaxAgeDays)
	v.SetDefault("log.compress", logDef.Compress)

	sessDef := session.DefaultOptions()
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.idle_ttl", sessDef.IdleTTL)
	v.SetDefault("session.max_sessions", sessDef.MaxSessions)
	v.SetDefault("session.janitor_interval", sessDef.JanitorInterval)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// Load reads configuration. path names an explicit YAML file; when empty,
// parla.yaml is looked up in the working directory and in
// $XDG_CONFIG_HOME/parla, and a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Ext(path) == "" {
			v.SetConfigType("yaml")
		}
	} else {
		v.SetConfigName("parla")
		v.AddConfigPath(".")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix("PARLA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases for the provider keys.
	_ = v.BindEnv("llm.provider", "PARLA_LLM_PROVIDER", "PARLA_PROVIDER")
	_ = v.BindEnv("llm.anthropic.api_key", "PARLA_LLM_ANTHROPIC_API_KEY", "PARLA_ANTHROPIC_API_KEY")
	_ = v.BindEnv("llm.openai.api_key", "PARLA_LLM_OPENAI_API_KEY", "PARLA_OPENAI_API_KEY")
	_ = v.BindEnv("llm.gemini.api_key", "PARLA_LLM_GEMINI_API_KEY", "PARLA_GEMINI_API_KEY")
	_ = v.BindEnv("llm.openrouter.api_key", "PARLA_LLM_OPENROUTER_API_KEY", "PARLA_OPENROUTER_API_KEY")
	_ = v.BindEnv("store.dsn", "PARLA_STORE_DSN", "PARLA_DB")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.providerSet = v.InConfig("llm.provider") || os.Getenv("PARLA_LLM_PROVIDER") != "" || os.Getenv("PARLA_PROVIDER") != ""
	return &cfg, nil
}

func configDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "parla"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "parla"), nil
}

// LLMProviderConfig converts the llm section for llm.NewProvider. When no
// provider was chosen explicitly and the default one has no key, the
// standard provider variables (OPENAI_API_KEY and friends) are probed.
func (c *Config) LLMProviderConfig() llm.Config {
	out := llm.DefaultConfig()
	out.Provider = c.LLM.Provider
	out.Timeout = c.LLM.Timeout
	out.Temperature = c.LLM.Temperature
	out.MaxTokens = c.LLM.MaxTokens
	out.Retry.MaxAttempts = c.LLM.RetryAttempts

	out.Anthropic = llm.AnthropicConfig{APIKey: c.LLM.Anthropic.APIKey, Model: c.LLM.Anthropic.Model, BaseURL: c.LLM.Anthropic.BaseURL}
	out.OpenAI = llm.OpenAIConfig{APIKey: c.LLM.OpenAI.APIKey, Model: c.LLM.OpenAI.Model, BaseURL: c.LLM.OpenAI.BaseURL}
	out.Gemini = llm.GeminiConfig{APIKey: c.LLM.Gemini.APIKey, Model: c.LLM.Gemini.Model}
	out.OpenRouter = llm.OpenRouterConfig{APIKey: c.LLM.OpenRouter.APIKey, Model: c.LLM.OpenRouter.Model}
	if c.LLM.OpenRouter.BaseURL != "" {
		out.OpenRouter.BaseURL = c.LLM.OpenRouter.BaseURL
	}

	if out.Validate() != nil && !c.providerSet {
		if discovered, ok := llm.DiscoverConfig(); ok {
			discovered.Timeout = out.Timeout
			discovered.Temperature = out.Temperature
			discovered.MaxTokens = out.MaxTokens
			discovered.Retry = out.Retry
			return discovered
		}
	}
	return out
}

// SessionOptions converts the session section.
func (c *Config) SessionOptions() session.Options {
	return session.Options{
		IdleTTL:         c.Session.IdleTTL,
		MaxSessions:     c.Session.MaxSessions,
		JanitorInterval: c.Session.JanitorInterval,
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case store.DriverSQLite:
	case store.DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Session.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	return nil
}
