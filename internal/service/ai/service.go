// Package ai turns a conversation history into a model reply, optionally
// augmenting the latest question with web search results.
package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"aumchat/internal/config"
	"aumchat/internal/models"
	"aumchat/internal/service/search"
)

// GenerateRequest is a single, non-streaming generation call.
type GenerateRequest struct {
	Model             string
	Contents          []string
	SystemInstruction string
	Temperature       float32
	MaxOutputTokens   int
}

// LanguageModel produces the reply text for a request.
type LanguageModel interface {
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
}

// Reply is the outcome of one Respond call.
type Reply struct {
	Text      string
	Augmented bool
	Warnings  []string
}

// Options holds the generation settings fixed at startup.
type Options struct {
	Model             string
	SystemInstruction string
	Temperature       float32
	MaxOutputTokens   int
	SearchCount       int
}

// OptionsFromConfig copies the generation settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:             cfg.Provider().Model,
		SystemInstruction: cfg.Generation.SystemInstruction,
		Temperature:       cfg.Generation.Temperature,
		MaxOutputTokens:   cfg.Generation.MaxOutputTokens,
		SearchCount:       cfg.Search.Count,
	}
}

// Service answers conversations. It keeps no per-conversation state.
type Service struct {
	model  LanguageModel
	search search.Provider
	opts   Options
	logger zerolog.Logger
}

// NewService wires a language model and an optional search provider.
func NewService(lm LanguageModel, provider search.Provider, opts Options, logger zerolog.Logger) *Service {
	if opts.Model == "" {
		opts.Model = config.DefaultModel
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = config.DefaultMaxOutputTokens
	}
	if opts.SearchCount <= 0 {
		opts.SearchCount = config.DefaultSearchCount
	}
	return &Service{
		model:  lm,
		search: provider,
		opts:   opts,
		logger: logger.With().Str("component", "ai").Logger(),
	}
}

// Respond generates the assistant's reply to history. history is read only.
// Search failures become warnings; model failures are returned.
func (s *Service) Respond(ctx context.Context, history []models.Message) (*Reply, error) {
	reply := &Reply{}
	contents := make([]string, 0, len(history))
	for _, msg := range history {
		contents = append(contents, msg.Content)
	}

	lastUser := models.LastUserContent(history)
	if ShouldSearch(lastUser) && s.search != nil {
		augmented, ok, err := augment(ctx, s.search, s.opts.SearchCount, lastUser, contents)
		if err != nil {
			s.warn(ctx, reply, fmt.Sprintf("web search failed: %v", err), err)
		} else {
			contents = augmented
			reply.Augmented = ok
		}
	}

	text, err := s.model.Generate(ctx, &GenerateRequest{
		Model:             s.opts.Model,
		Contents:          contents,
		SystemInstruction: s.opts.SystemInstruction,
		Temperature:       s.opts.Temperature,
		MaxOutputTokens:   s.opts.MaxOutputTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}
	reply.Text = text
	s.logger.Debug().Bool("augmented", reply.Augmented).Int("turns", len(history)).Msg("response generated")
	return reply, nil
}

func (s *Service) warn(ctx context.Context, reply *Reply, message string, err error) {
	s.logger.Warn().Err(err).Msg("web search failed, continuing without results")
	reply.Warnings = append(reply.Warnings, message)
	EmitWarning(ctx, message)
}
