package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/freight-audit/internal/common"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"TOTAL $12.345,67", "12345.67", true},
		{"TOTAL 1.234,56", "1234.56", true},
		{"TOTAL: 12,345.67", "12345.67", true},
		{"TOTAL € 5.600,00", "5600.00", true},
		{"TOTAL 980,50", "980.50", true},
		{"TOTAL 1.234.567,89 ARS", "1234567.89", true},
		{"TOTAL", "", false},
		{"TOTAL 1234", "", false},
		{"TOTAL 5600.00", "", false}, // a 4-digit leading run is outside the grammar
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.line)
		if ok != tt.ok {
			t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.line, ok, tt.ok)
		}
		if ok && !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", tt.line, got, tt.want)
		}
	}
}

func TestTotalFromPages(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  string // empty means absent
	}{
		{
			name:  "last page wins",
			pages: []string{"SUBTOTAL 1.000,00\nTOTAL 1.000,00", "Detalle\nTOTAL $ 5.600,00\nGracias"},
			want:  "5600.00",
		},
		{
			name:  "falls back to earlier pages",
			pages: []string{"TOTAL 2.000,00", "no totals here"},
			want:  "2000.00",
		},
		{
			name:  "first matching line within page",
			pages: []string{"TOTAL NETO 100,00\nTOTAL 200,00"},
			want:  "100.00",
		},
		{
			name:  "TOTAL line without amount is skipped",
			pages: []string{"TOTAL DE BULTOS: 3\nTOTAL 300,00"},
			want:  "300.00",
		},
		{
			name:  "marker is case sensitive",
			pages: []string{"Total 999,99\ntotal 888,88"},
		},
		{
			name:  "empty document",
			pages: []string{"", "   "},
		},
		{
			name: "no pages",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalFromPages(tt.pages)
			if tt.want == "" {
				if got != nil {
					t.Fatalf("expected absent total, got %s", got)
				}
				return
			}
			if got == nil || !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Fatalf("TotalFromPages = %v, want %s", got, tt.want)
			}
		})
	}
}

type stubPages struct {
	pages []string
	err   error
}

func (s stubPages) Pages(context.Context, string) ([]string, error) { return s.pages, s.err }

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestTotalExtractor_ExtractTotal(t *testing.T) {
	ctx := context.Background()
	path := writeTempFile(t, "invoice.pdf", "%PDF-1.4")

	x := NewTotalExtractor(stubPages{pages: []string{"TOTAL $ 5.600,00"}}, nil)
	got, err := x.ExtractTotal(ctx, path)
	if err != nil {
		t.Fatalf("ExtractTotal: %v", err)
	}
	if got == nil || got.StringFixed(2) != "5600.00" {
		t.Fatalf("ExtractTotal = %v, want 5600.00", got)
	}

	// unreadable text is an absent total, not an error
	x = NewTotalExtractor(stubPages{err: errors.New("broken xref")}, nil)
	got, err = x.ExtractTotal(ctx, path)
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for unreadable pdf, got (%v, %v)", got, err)
	}

	_, err = x.ExtractTotal(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFallbackExtractor(t *testing.T) {
	ctx := context.Background()
	f := NewFallbackExtractor(nil,
		stubPages{err: errors.New("unsupported filter")},
		stubPages{pages: []string{"  \n"}},
		stubPages{pages: []string{"TOTAL 10,00"}},
	)
	pages, err := f.Pages(ctx, "x.pdf")
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 1 || pages[0] != "TOTAL 10,00" {
		t.Fatalf("unexpected pages %q", pages)
	}

	f = NewFallbackExtractor(nil, stubPages{err: errors.New("a")}, stubPages{err: errors.New("b")})
	if _, err := f.Pages(ctx, "x.pdf"); err == nil {
		t.Fatal("expected joined error when every extractor fails")
	}
}

type fakeRunner struct {
	stdout []byte
	err    error
	args   []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.args = append([]string{name}, args...)
	return f.stdout, nil, f.err
}

func TestPdftotextReader_SplitsPages(t *testing.T) {
	r := &fakeRunner{stdout: []byte("page one\n\fpage two\nTOTAL 1.000,00\n\f")}
	pages, err := NewPdftotextReader("", r).Pages(context.Background(), "in.pdf")
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d: %q", len(pages), pages)
	}
	if r.args[0] != "pdftotext" || r.args[len(r.args)-1] != "-" {
		t.Fatalf("unexpected invocation %v", r.args)
	}
	if got := TotalFromPages(pages); got == nil || got.StringFixed(2) != "1000.00" {
		t.Fatalf("total = %v", got)
	}
}
