package provider

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/llm"
	"github.com/joseph-ayodele/freight-audit/internal/llm/gemini"
	"github.com/joseph-ayodele/freight-audit/internal/llm/openai"
)

// New builds the generator selected by cfg.Provider. The returned close func is never nil.
func New(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Generator, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Provider {
	case "openai":
		c, err := openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case "gemini", "":
		c, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		}, logger)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	default:
		return nil, noop, common.NewAppError("CONFIG_ERROR", "unknown llm provider "+cfg.Provider, common.ErrInvalidInput)
	}
}
