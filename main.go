package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"aumchat/internal/config"
	"aumchat/internal/redis"
	"aumchat/internal/service/ai"
	"aumchat/internal/service/search"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "aumchat",
	Short: "FAQ assistant for the American University of Mongolia",
	Long: `aumchat answers questions about the American University of Mongolia.
Questions that look like lookups ("what is", "how to", ...) are augmented
with web search results before being sent to the language model.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("AUMCHAT_CONFIG"), "path to a JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	rootCmd.AddCommand(serveCmd, chatCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger; console output unless JSON is requested.
func newLogger(cfg config.LogConfig, forceConsole bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if forceConsole || !strings.EqualFold(cfg.Format, "json") {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// newResponder wires the language model and search providers. The returned
// cleanup releases the optional Redis connection.
func newResponder(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*ai.Service, func(), error) {
	lm, err := ai.NewLanguageModel(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init language model: %w", err)
	}

	cleanup := func() {}
	var rdb *redis.Client
	if cfg.Search.Cache.Enabled {
		rdb, err = redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis client: %w", err)
		}
		cleanup = func() { rdb.Close() }
	}

	provider, err := search.NewFromConfig(ctx, cfg.Search, rdb, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("init search provider: %w", err)
	}
	if provider == nil {
		logger.Info().Msg("web search disabled")
	} else {
		logger.Info().Str("provider", provider.Name()).Msg("web search enabled")
	}
	logger.Info().Str("llm", cfg.LLM.Provider).Str("model", cfg.Provider().Model).Msg("language model ready")

	return ai.NewService(lm, provider, ai.OptionsFromConfig(cfg), logger), cleanup, nil
}
