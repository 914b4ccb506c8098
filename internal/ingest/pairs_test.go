package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
	return p
}

func TestTracker_Add(t *testing.T) {
	tr := NewTracker()

	_, ok := tr.Add("/in/enero.pdf")
	assert.False(t, ok)
	_, ok = tr.Add("/in/notes.txt")
	assert.False(t, ok)
	_, ok = tr.Add("/in/.enero.csv")
	assert.False(t, ok)
	assert.Equal(t, []string{filepath.Join("/in", "enero")}, tr.Pending())

	p, ok := tr.Add("/in/ENERO.csv")
	require.True(t, ok)
	assert.Equal(t, "/in/enero.pdf", p.PDF)
	assert.Equal(t, "/in/ENERO.csv", p.CSV)
	assert.Empty(t, tr.Pending())
}

func TestTracker_SameNameDifferentDirs(t *testing.T) {
	tr := NewTracker()
	tr.Add("/a/x.pdf")
	_, ok := tr.Add("/b/x.csv")
	assert.False(t, ok)
	assert.Len(t, tr.Pending(), 2)
}

func TestScanPairs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.pdf")
	touch(t, dir, "b.csv")
	touch(t, dir, "a.PDF")
	touch(t, dir, "a.csv")
	touch(t, dir, "lonely.pdf")
	touch(t, dir, ".hidden.csv")
	touch(t, dir, "readme.md")
	require.NoError(t, os.Mkdir(filepath.Join(dir, DoneDir), 0o755))
	touch(t, filepath.Join(dir, DoneDir), "c.pdf")
	touch(t, filepath.Join(dir, DoneDir), "c.csv")

	pairs, stats, err := ScanPairs(dir)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, filepath.Join(dir, "a.PDF"), pairs[0].PDF)
	assert.Equal(t, filepath.Join(dir, "b.csv"), pairs[1].CSV)
	assert.EqualValues(t, 5, stats.Matched)
	assert.EqualValues(t, 2, stats.Paired)
	assert.EqualValues(t, 1, stats.Unpaired)
}

func TestScanPairs_Errors(t *testing.T) {
	_, _, err := ScanPairs("  ")
	assert.Error(t, err)
	_, _, err = ScanPairs(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
