package extract

import (
	"context"
	"errors"
	"log/slog"
)

// PageExtractor returns the text of each page of a document, in page order.
type PageExtractor interface {
	Pages(ctx context.Context, path string) ([]string, error)
}

// FallbackExtractor tries each extractor in turn and returns the first result
// that contains any text.
type FallbackExtractor struct {
	extractors []PageExtractor
	logger     *slog.Logger
}

func NewFallbackExtractor(logger *slog.Logger, extractors ...PageExtractor) *FallbackExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackExtractor{extractors: extractors, logger: logger}
}

func (f *FallbackExtractor) Pages(ctx context.Context, path string) ([]string, error) {
	var errs []error
	for i, x := range f.extractors {
		pages, err := x.Pages(ctx, path)
		if err != nil {
			f.logger.Warn("extract.pages.extractor_failed", "index", i, "path", path, "error", err)
			errs = append(errs, err)
			continue
		}
		if hasText(pages) {
			return pages, nil
		}
		f.logger.Debug("extract.pages.empty", "index", i, "path", path)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

func hasText(pages []string) bool {
	for _, p := range pages {
		for _, r := range p {
			if r != ' ' && r != '\n' && r != '\t' && r != '\f' {
				return true
			}
		}
	}
	return false
}
