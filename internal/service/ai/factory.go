package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/scatty/backend/internal/config"
	"github.com/zhouzirui/scatty/backend/internal/model/persona"
)

// NewGenerator builds the configured provider with the persona's system prompt.
func NewGenerator(ctx context.Context, cfg config.AIConfig, p persona.Persona, logger zerolog.Logger) (Generator, error) {
	systemPrompt := NewPromptManager().BuildSystemPrompt(p)

	switch cfg.Provider {
	case config.ProviderGemini:
		gen, err := NewGeminiGenerator(ctx, cfg, systemPrompt, logger)
		if err != nil {
			return nil, err
		}
		return gen, nil
	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		gen, err := NewArkGenerator(ctx, chatModel, systemPrompt, logger)
		if err != nil {
			return nil, err
		}
		return gen, nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
