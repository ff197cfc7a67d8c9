package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config - настройки клиента генерации.
type Config struct {
	Type    string // openai, ollama, gemini, scripted
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// Script используется только типом scripted.
	Script map[string][]Reply
}

// NewClient создает клиент генерации в зависимости от конфигурации.
func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (StreamingClient, error) {
	switch strings.ToLower(cfg.Type) {
	case "", providerOpenAI:
		return newOpenAIClient(cfg, logger)
	case providerOllama:
		return newOllamaClient(cfg, logger)
	case providerGemini:
		return newGeminiClient(ctx, cfg, logger)
	case "scripted":
		logger.Warn("Using scripted generation client, upstream is not contacted")
		return NewScriptedClient(cfg.Script), nil
	default:
		return nil, fmt.Errorf("unknown AI client type %q", cfg.Type)
	}
}
