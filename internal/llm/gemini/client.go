package gemini

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/freight-audit/internal/common"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string
	Model       string // default gemini-2.5-flash
	Temperature float32
}

// Client implements llm.Generator on top of the Gemini SDK.
type Client struct {
	cfg    Config
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

// NewClient dials the Gemini API. Close releases the underlying connection.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "gemini api key is required", common.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, common.ExternalFailure("LLM", err)
	}
	model := client.GenerativeModel(cfg.Model)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(cfg.Temperature)

	return &Client{cfg: cfg, client: client, model: model, logger: logger}, nil
}

func (c *Client) Name() string { return "Gemini" }

func (c *Client) Close() error { return c.client.Close() }

// Generate sends a single-turn prompt and concatenates the text parts of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	c.logger.Info("llm.generate.start",
		"req_id", rid,
		"provider", "gemini",
		"model", c.cfg.Model,
		"prompt_len", len(prompt),
	)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Error("llm.generate.api_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.ExternalFailure("LLM", err)
	}

	text := candidateText(resp)
	if text == "" {
		c.logger.Error("llm.generate.empty",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.ExternalFailure("LLM", errors.New("empty gemini response"))
	}

	c.logger.Info("llm.generate.ok",
		"req_id", rid,
		"content_len", len(text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String())
}
