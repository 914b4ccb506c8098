package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/llm"
	"github.com/joseph-ayodele/freight-audit/internal/utils"
)

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Name() string { return "OpenAI" }

// Generate implements llm.Generator using chat/completions in JSON mode.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	c.logger.Info("llm.generate.start",
		"req_id", rid,
		"provider", "openai",
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"prompt_len", len(prompt),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": "You extract product dimensions and answer with a single JSON object."},
			{"role": "user", "content": prompt},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(llm.BuildDimensionsJSONSchema())},
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	raw, status, err := utils.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("llm.generate.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.ExternalFailure("LLM", err)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.generate.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.ExternalFailure("LLM", fmt.Errorf("decode openai response: %w", err))
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.generate.no_choices",
			"req_id", rid, "elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.ExternalFailure("LLM", errors.New("no choices in openai response"))
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.logger.Info("llm.generate.ok",
		"req_id", rid,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
