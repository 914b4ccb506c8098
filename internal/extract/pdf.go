package extract

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// rowTolerance is the maximum Y distance for two glyphs to share a line.
const rowTolerance = 2.0

// PDFReader reads page text with the pure-Go ledongthuc/pdf parser and
// rebuilds lines from glyph coordinates.
type PDFReader struct {
	logger *slog.Logger
}

func NewPDFReader(logger *slog.Logger) *PDFReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFReader{logger: logger}
}

func (x *PDFReader) Pages(ctx context.Context, path string) (pages []string, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			x.logger.Warn("extract.pdf.close_error", "path", path, "error", cerr)
		}
	}()
	// The parser panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			pages, err = nil, fmt.Errorf("pdf parse panic: %v", rec)
		}
	}()

	total := r.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, linesFromTexts(p.Content().Text))
	}
	return pages, nil
}

type textRow struct {
	y     float64
	texts []pdf.Text
}

// linesFromTexts groups glyph runs by baseline, orders rows top to bottom and
// runs left to right, and inserts a space where the horizontal gap is wide.
func linesFromTexts(texts []pdf.Text) string {
	var rows []textRow
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		placed := false
		for i := range rows {
			if math.Abs(rows[i].y-t.Y) < rowTolerance {
				rows[i].texts = append(rows[i].texts, t)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, textRow{y: t.Y, texts: []pdf.Text{t}})
		}
	}

	// PDF user space grows upward.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	var b strings.Builder
	for i, row := range rows {
		sort.SliceStable(row.texts, func(a, c int) bool { return row.texts[a].X < row.texts[c].X })
		if i > 0 {
			b.WriteByte('\n')
		}
		var prevEnd float64
		for j, t := range row.texts {
			if j > 0 {
				gap := t.X - prevEnd
				if gap > 0.25*math.Max(t.FontSize, 1) {
					b.WriteByte(' ')
				}
			}
			b.WriteString(t.S)
			prevEnd = t.X + t.W
		}
	}
	return b.String()
}
