package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-audit/constants"
)

type brokenStore struct{}

func (brokenStore) Put(context.Context, string, string, io.Reader) error {
	return errors.New("permission denied")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "facturas/inv.pdf", Key(constants.DocumentInvoicePDF, "/tmp/x/inv.pdf"))
	assert.Equal(t, "csv/report.csv", Key(constants.DocumentReportCSV, `C:\Users\me\report.csv`))
}

func TestArchiver_LocalStore(t *testing.T) {
	root := t.TempDir()
	a := NewArchiver(NewLocalStore(root), "audit", nil)

	require.True(t, a.Archive(context.Background(), constants.DocumentInvoicePDF, "inv.pdf", []byte("%PDF")))
	require.True(t, a.Archive(context.Background(), constants.DocumentReportCSV, "r.csv", []byte("a,b")))

	got, err := os.ReadFile(filepath.Join(root, "audit", "facturas", "inv.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(got))

	_, err = os.Stat(filepath.Join(root, "audit", "csv", "r.csv"))
	assert.NoError(t, err)
}

func TestArchiver_Failures(t *testing.T) {
	a := NewArchiver(brokenStore{}, "audit", nil)
	assert.False(t, a.Archive(context.Background(), constants.DocumentInvoicePDF, "inv.pdf", nil))

	b := NewArchiver(NewLocalStore(t.TempDir()), "audit", nil)
	assert.False(t, b.Archive(context.Background(), constants.DocumentKind("XLS"), "x.xls", nil))
}

func TestLocalStore_RejectsEscapingKeys(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	assert.Error(t, s.Put(context.Background(), "b", "../../etc/passwd", nil))
}
