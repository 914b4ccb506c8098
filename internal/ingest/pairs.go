package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/joseph-ayodele/freight-audit/constants"
)

// Pair is an invoice PDF and its cost report sharing a base name in one directory.
type Pair struct {
	Key string // dir + lower-cased base name
	PDF string
	CSV string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned  uint32
	Matched  uint32
	Paired   uint32
	Unpaired uint32
}

// kindOf reports which half of a pair path is, if any.
func kindOf(path string) (constants.DocumentKind, bool) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	for kind, allowed := range constants.AllowedExtensions {
		if ext == allowed {
			return kind, true
		}
	}
	return "", false
}

func pairKey(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return filepath.Join(filepath.Dir(path), strings.ToLower(base))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Tracker collects pair halves as they appear and yields a Pair once both exist.
// Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*Pair
}

func NewTracker() *Tracker {
	return &Tracker{pending: make(map[string]*Pair)}
}

// Add records path. It returns the completed pair, removing it from the tracker,
// when path supplies the missing half.
func (t *Tracker) Add(path string) (Pair, bool) {
	kind, ok := kindOf(path)
	if !ok || IsHidden(path) {
		return Pair{}, false
	}
	key := pairKey(path)

	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.pending[key]
	if p == nil {
		p = &Pair{Key: key}
		t.pending[key] = p
	}
	switch kind {
	case constants.DocumentInvoicePDF:
		p.PDF = path
	case constants.DocumentReportCSV:
		p.CSV = path
	}
	if p.PDF == "" || p.CSV == "" {
		return Pair{}, false
	}
	delete(t.pending, key)
	return *p, true
}

// Pending lists the keys still waiting for their other half.
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.pending))
	for k := range t.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ScanPairs lists the complete pairs directly under root, sorted by key.
// Subdirectories and hidden files are skipped.
func ScanPairs(root string) ([]Pair, DirStats, error) {
	return scanInto(NewTracker(), root)
}

// scanInto feeds root's files to t, leaving unmatched halves pending in it.
func scanInto(t *Tracker, root string) ([]Pair, DirStats, error) {
	var stats DirStats
	if strings.TrimSpace(root) == "" {
		return nil, stats, errors.New("root path is required")
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, stats, fmt.Errorf("read dir: %w", err)
	}

	var pairs []Pair
	for _, e := range entries {
		stats.Scanned++
		if e.IsDir() {
			continue
		}
		path := filepath.Join(root, e.Name())
		if _, ok := kindOf(path); !ok || IsHidden(path) {
			continue
		}
		stats.Matched++
		if p, ok := t.Add(path); ok {
			pairs = append(pairs, p)
			stats.Paired++
		}
	}
	stats.Unpaired = stats.Matched - 2*stats.Paired
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs, stats, nil
}
