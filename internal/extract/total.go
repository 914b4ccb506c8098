package extract

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/constants"
	"github.com/joseph-ayodele/freight-audit/internal/common"
)

// amountPattern: optional currency symbol, 1-3 leading digits, 3-digit groups
// separated by "." or ",", then a 2-digit fraction. The leading group keeps
// the match from starting in the middle of a longer digit run.
var amountPattern = regexp.MustCompile(`(?:^|[^\d.,])[$€]?\s*(\d{1,3}(?:[.,]\d{3})*[,.]\d{2})`)

// ParseAmount finds the first monetary amount in line. Every separator is
// dropped and a decimal point is placed before the last two digits, so
// "$12.345,67" and "12,345.67" both yield 12345.67.
func ParseAmount(line string) (decimal.Decimal, bool) {
	m := amountPattern.FindStringSubmatch(line)
	if m == nil {
		return decimal.Zero, false
	}
	digits := strings.NewReplacer(".", "", ",", "").Replace(m[1])
	d, err := decimal.NewFromString(digits[:len(digits)-2] + "." + digits[len(digits)-2:])
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// TotalFromPages scans pages last to first and lines top to bottom, returning
// the amount on the first line that carries the TOTAL marker and an amount.
func TotalFromPages(pages []string) *decimal.Decimal {
	for i := len(pages) - 1; i >= 0; i-- {
		for _, line := range strings.Split(pages[i], "\n") {
			if !strings.Contains(line, constants.TotalMarker) {
				continue
			}
			if d, ok := ParseAmount(line); ok {
				return &d
			}
		}
	}
	return nil
}

// TotalExtractor locates the invoice total of a PDF.
type TotalExtractor struct {
	pages  PageExtractor
	logger *slog.Logger
}

func NewTotalExtractor(pages PageExtractor, logger *slog.Logger) *TotalExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &TotalExtractor{pages: pages, logger: logger}
}

// ExtractTotal returns (nil, nil) when the document has no readable total.
// Only a path that does not resolve is an error (ErrNotFound).
func (t *TotalExtractor) ExtractTotal(ctx context.Context, path string) (*decimal.Decimal, error) {
	start := time.Now()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			t.logger.Error("extract.pdf.not_found", "path", path)
			return nil, fmt.Errorf("%w: %s", common.ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	pages, err := t.pages.Pages(ctx, path)
	if err != nil {
		t.logger.Error("extract.pdf.unreadable", "path", path, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, nil
	}

	total := TotalFromPages(pages)
	if total == nil {
		t.logger.Warn("extract.pdf.total_missing", "path", path, "pages", len(pages),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, nil
	}
	t.logger.Info("extract.pdf.total_found", "path", path, "pages", len(pages), "total", total.StringFixed(2),
		"elapsed_ms", time.Since(start).Milliseconds())
	return total, nil
}
