package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"aumchat/internal/config"
)

// EinoModel adapts an eino chat model (OpenAI, Claude) to LanguageModel.
type EinoModel struct {
	chat model.BaseChatModel
}

// NewEinoModel wraps an existing eino chat model.
func NewEinoModel(chat model.BaseChatModel) *EinoModel {
	return &EinoModel{chat: chat}
}

// Generate sends the system instruction and contents as one eino chat request.
func (m *EinoModel) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	resp, err := m.chat.Generate(ctx, einoMessages(req),
		model.WithTemperature(req.Temperature),
		model.WithMaxTokens(req.MaxOutputTokens),
	)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("empty model response")
	}
	return resp.Content, nil
}

func einoMessages(req *GenerateRequest) []*schema.Message {
	messages := make([]*schema.Message, 0, len(req.Contents)+1)
	if req.SystemInstruction != "" {
		messages = append(messages, schema.SystemMessage(req.SystemInstruction))
	}
	for _, c := range req.Contents {
		messages = append(messages, schema.UserMessage(c))
	}
	return messages
}

// NewLanguageModel builds the model selected by llm.provider.
func NewLanguageModel(ctx context.Context, cfg *config.Config) (LanguageModel, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	provCfg := cfg.Provider()
	switch name {
	case "gemini":
		return NewGemini(ctx, provCfg.APIKey)
	case "openai":
		if provCfg.APIKey == "" {
			return nil, errors.New("openai: OPENAI_API_KEY is not set")
		}
		chat, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: provCfg.BaseURL,
			Model:   provCfg.Model,
			APIKey:  provCfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("openai: %w", err)
		}
		return NewEinoModel(chat), nil
	case "claude":
		if provCfg.APIKey == "" {
			return nil, errors.New("claude: ANTHROPIC_API_KEY is not set")
		}
		var baseURL *string
		if provCfg.BaseURL != "" {
			baseURL = &provCfg.BaseURL
		}
		chat, err := claude.NewChatModel(ctx, &claude.Config{
			APIKey:    provCfg.APIKey,
			Model:     provCfg.Model,
			BaseURL:   baseURL,
			MaxTokens: cfg.Generation.MaxOutputTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("claude: %w", err)
		}
		return NewEinoModel(chat), nil
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.LLM.Provider)
	}
}

var _ LanguageModel = (*EinoModel)(nil)
