package search

import (
	"context"
	"strings"
)

// Result is one search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// Searcher is the search capability the dimension resolver depends on.
type Searcher interface {
	Search(ctx context.Context, query, depth string) ([]Result, error)
	Name() string
}

// JoinSnippets concatenates results into one context blob for the model.
// Results with no text are skipped, so an all-empty response yields "".
func JoinSnippets(results []Result) string {
	var b strings.Builder
	for _, r := range results {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		if r.Title != "" {
			b.WriteString(r.Title)
			b.WriteString("\n")
		}
		if r.URL != "" {
			b.WriteString(r.URL)
			b.WriteString("\n")
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String()
}
