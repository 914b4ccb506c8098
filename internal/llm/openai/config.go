package openai

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/freight-audit/internal/common"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	// One dimension extraction prompt; long search contexts need the headroom.
	DefaultTimeout = 45 * time.Second
)

// Config for the chat-completions generator. Values come from the LLM_*
// settings in common.LLMConfig.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32 // clamped to 0..2; 0 keeps extractions repeatable
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient applies defaults and rejects a config without an API key.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "openai api key is required", common.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	switch {
	case cfg.Temperature < 0:
		cfg.Temperature = 0
	case cfg.Temperature > 2:
		cfg.Temperature = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}
