package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSystemInstruction is the AUM FAQ persona sent with every generation request
// unless generation.system_instruction_file points elsewhere.
//
//go:embed persona.txt
var DefaultSystemInstruction string

const (
	DefaultModel           = "gemini-2.5-pro-exp-03-25"
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 2048
	DefaultSearchCount     = 5
)

// Config represents runtime configuration for the service.
// Values are read by viper from a JSON config file and environment variables.
type Config struct {
	Server     ServerConfig              `mapstructure:"server"`
	Log        LogConfig                 `mapstructure:"log"`
	LLM        LLMConfig                 `mapstructure:"llm"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Generation GenerationConfig          `mapstructure:"generation"`
	Search     SearchConfig              `mapstructure:"search"`
	Session    SessionConfig             `mapstructure:"session"`
	Databases  map[string]DatabaseConfig `mapstructure:"databases"`
	Redis      RedisConfig               `mapstructure:"redis"`
	Workers    WorkerConfig              `mapstructure:"workers"`
}

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	AccessToken string `mapstructure:"access_token"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLMConfig selects which entry of Providers answers generation requests.
type LLMConfig struct {
	Provider string `mapstructure:"provider"`
}

type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	APIKey  string `mapstructure:"api_key"`
}

type GenerationConfig struct {
	Temperature           float32 `mapstructure:"temperature"`
	MaxOutputTokens       int     `mapstructure:"max_output_tokens"`
	SystemInstructionFile string  `mapstructure:"system_instruction_file"`

	// SystemInstruction is resolved by Load and never changes afterwards.
	SystemInstruction string `mapstructure:"-"`
}

type SearchConfig struct {
	Provider  string            `mapstructure:"provider"`
	Fallbacks []string          `mapstructure:"fallbacks"`
	Count     int               `mapstructure:"count"`
	Timeout   time.Duration     `mapstructure:"timeout"`
	Brave     BraveConfig       `mapstructure:"brave"`
	Google    GoogleConfig      `mapstructure:"google"`
	Cache     SearchCacheConfig `mapstructure:"cache"`
}

type BraveConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

type GoogleConfig struct {
	APIKey         string `mapstructure:"api_key"`
	SearchEngineID string `mapstructure:"search_engine_id"`
}

type SearchCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type SessionConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	Params   string `mapstructure:"params"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig bounds concurrent reply generation in the HTTP server.
type WorkerConfig struct {
	MinWorkers  int           `mapstructure:"min_workers"`
	MaxWorkers  int           `mapstructure:"max_workers"`
	QueueSize   int           `mapstructure:"queue_size"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// Load reads configuration from the provided path. An empty path means
// "config.json in the working directory, if present"; a missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUMCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindSecrets(v)

	baseDir := "."
	if path != "" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		v.SetConfigFile(absPath)
		baseDir = filepath.Dir(absPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", absPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.resolveSystemInstruction(baseDir); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("providers.gemini.model", DefaultModel)

	v.SetDefault("generation.temperature", DefaultTemperature)
	v.SetDefault("generation.max_output_tokens", DefaultMaxOutputTokens)

	v.SetDefault("search.provider", "brave")
	v.SetDefault("search.fallbacks", []string{})
	v.SetDefault("search.count", DefaultSearchCount)
	v.SetDefault("search.timeout", "10s")
	v.SetDefault("search.cache.enabled", false)
	v.SetDefault("search.cache.ttl", "30m")

	v.SetDefault("session.driver", "memory")
	v.SetDefault("databases.sqlite3.dsn", "file:aumchat.db?_foreign_keys=on")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("workers.min_workers", 1)
	v.SetDefault("workers.max_workers", 8)
	v.SetDefault("workers.queue_size", 64)
	v.SetDefault("workers.idle_timeout", "1m")
}

// bindSecrets maps the well-known provider key variables onto config keys.
func bindSecrets(v *viper.Viper) {
	_ = v.BindEnv("providers.gemini.api_key", "GEMINI_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("providers.claude.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("search.brave.api_key", "BRAVE_API_KEY")
	_ = v.BindEnv("search.google.api_key", "GOOGLE_API_KEY")
	_ = v.BindEnv("search.google.search_engine_id", "GOOGLE_SEARCH_ENGINE_ID")
	_ = v.BindEnv("server.access_token", "AUMCHAT_ACCESS_TOKEN")
}

func (c *Config) resolveSystemInstruction(baseDir string) error {
	file := strings.TrimSpace(c.Generation.SystemInstructionFile)
	if file == "" {
		c.Generation.SystemInstruction = DefaultSystemInstruction
		return nil
	}
	if !filepath.IsAbs(file) {
		file = filepath.Join(baseDir, file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read system instruction: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return fmt.Errorf("system instruction file %s is empty", file)
	}
	c.Generation.SystemInstruction = string(data)
	return nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Generation.MaxOutputTokens <= 0 {
		return errors.New("generation.max_output_tokens must be positive")
	}
	if c.Generation.Temperature < 0 {
		return errors.New("generation.temperature cannot be negative")
	}
	if c.Search.Count <= 0 {
		return errors.New("search.count must be positive")
	}
	if c.Workers.MaxWorkers <= 0 {
		return errors.New("workers.max_workers must be positive")
	}
	if strings.TrimSpace(c.LLM.Provider) == "" {
		return errors.New("llm.provider must be configured")
	}
	if _, ok := c.Providers[c.LLM.Provider]; !ok {
		return fmt.Errorf("provider %s not configured", c.LLM.Provider)
	}
	return nil
}

// Provider returns the settings of the active language-model provider.
func (c *Config) Provider() ProviderConfig {
	p := c.Providers[c.LLM.Provider]
	if p.Model == "" && c.LLM.Provider == "gemini" {
		p.Model = DefaultModel
	}
	return p
}
