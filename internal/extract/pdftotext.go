package extract

import (
	"context"
	"fmt"
	"strings"
)

// PdftotextReader shells out to poppler's pdftotext. It handles PDFs whose
// content streams the pure-Go reader cannot decode.
type PdftotextReader struct {
	Binary string
	runner Runner
}

func NewPdftotextReader(binary string, runner Runner) *PdftotextReader {
	if binary == "" {
		binary = "pdftotext"
	}
	if runner == nil {
		runner = execRunner{}
	}
	return &PdftotextReader{Binary: binary, runner: runner}
}

func (p *PdftotextReader) Pages(ctx context.Context, path string) ([]string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := p.runner.Run(ctx, p.Binary, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w: %s", err, truncate(string(errb), 512))
	}
	// A form-feed \f is used as page separator by default
	pages := strings.Split(string(out), "\f")
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}
	return pages, nil
}
