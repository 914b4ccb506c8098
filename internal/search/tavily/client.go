package tavily

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/search"
	"github.com/joseph-ayodele/freight-audit/internal/utils"
)

type searchRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Query        string          `json:"query"`
	Results      []search.Result `json:"results"`
	ResponseTime float64         `json:"response_time"`
}

func (c *Client) Name() string { return "Tavily" }

// Search implements search.Searcher against the Tavily /search endpoint.
func (c *Client) Search(ctx context.Context, query, depth string) ([]search.Result, error) {
	rid := common.RequestIDFromContext(ctx)
	start := time.Now()

	body := searchRequest{
		Query:       query,
		SearchDepth: depth,
		MaxResults:  c.cfg.MaxResults,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/search"

	raw, status, err := utils.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("search.tavily.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, common.ExternalFailure("SEARCH", err)
	}

	var out searchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		c.logger.Error("search.tavily.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
		)
		return nil, common.ExternalFailure("SEARCH", fmt.Errorf("decode tavily response: %w", err))
	}

	c.logger.Info("search.tavily.ok",
		"req_id", rid,
		"depth", depth,
		"results", len(out.Results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out.Results, nil
}
