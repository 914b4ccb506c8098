package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/pipeline"
)

type fakeRunner struct {
	calls   int
	persist bool
	got     pipeline.Upload
	err     error
}

func (f *fakeRunner) Run(_ context.Context, up pipeline.Upload, persist bool) (*pipeline.RunResult, error) {
	f.calls++
	f.got, f.persist = up, persist
	return &pipeline.RunResult{Intake: &pipeline.IntakeResult{Period: 202401}}, f.err
}

func dropPair(t *testing.T, dir, base string) Pair {
	t.Helper()
	return Pair{Key: base, PDF: touch(t, dir, base+".pdf"), CSV: touch(t, dir, base+".csv")}
}

func TestInbox_ProcessMovesToDone(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{}
	in := NewInbox(r, true, nil)

	require.NoError(t, in.Process(context.Background(), dropPair(t, dir, "enero")))
	assert.Equal(t, 1, r.calls)
	assert.True(t, r.persist)
	assert.Equal(t, "enero.pdf", r.got.PDFName)
	assert.Equal(t, "enero.csv", string(r.got.CSV))

	assert.NoFileExists(t, filepath.Join(dir, "enero.pdf"))
	assert.FileExists(t, filepath.Join(dir, DoneDir, "enero.pdf"))
	assert.FileExists(t, filepath.Join(dir, DoneDir, "enero.csv"))

	data, err := os.ReadFile(filepath.Join(dir, DoneDir, "enero.result.json"))
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.NotEmpty(t, got["sha256"])
	assert.Nil(t, got["error"])
}

func TestInbox_FailureMovesToFailed(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{err: common.ErrTotalsMismatch}
	in := NewInbox(r, false, nil)

	err := in.Process(context.Background(), dropPair(t, dir, "feb"))
	assert.True(t, errors.Is(err, common.ErrTotalsMismatch))
	assert.FileExists(t, filepath.Join(dir, FailedDir, "feb.pdf"))

	data, err := os.ReadFile(filepath.Join(dir, FailedDir, "feb.result.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), common.ErrTotalsMismatch.Error())
}

func TestInbox_SkipsDuplicateContent(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{}
	in := NewInbox(r, false, nil)

	require.NoError(t, in.Process(context.Background(), dropPair(t, dir, "same")))
	require.NoError(t, os.Remove(filepath.Join(dir, DoneDir, "same.pdf")))
	require.NoError(t, os.Remove(filepath.Join(dir, DoneDir, "same.csv")))

	require.NoError(t, in.Process(context.Background(), dropPair(t, dir, "same")))
	assert.Equal(t, 1, r.calls)
	data, err := os.ReadFile(filepath.Join(dir, DoneDir, "same.result.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "duplicate")
}

func TestInbox_MissingFile(t *testing.T) {
	in := NewInbox(&fakeRunner{}, false, nil)
	err := in.Process(context.Background(), Pair{PDF: "/nope.pdf", CSV: "/nope.csv"})
	assert.Error(t, err)
}

// gatedRunner holds every Run until release is closed.
type gatedRunner struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	err     error
}

func (g *gatedRunner) Run(ctx context.Context, _ pipeline.Upload, _ bool) (*pipeline.RunResult, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &pipeline.RunResult{}, g.err
}

func TestInbox_DuplicateWhileInFlight(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	r := &gatedRunner{started: make(chan struct{}, 2), release: make(chan struct{})}
	in := NewInbox(r, false, nil)
	ctx := context.Background()

	first := dropPair(t, a, "same")
	done := make(chan error, 1)
	go func() { done <- in.Process(ctx, first) }()
	<-r.started

	// identical content from another directory while the first is still running
	require.NoError(t, in.Process(ctx, dropPair(t, b, "same")))
	close(r.release)
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), r.calls.Load())
	data, err := os.ReadFile(filepath.Join(b, DoneDir, "same.result.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "being audited")
}

func TestInbox_FailureReleasesContent(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	r := &gatedRunner{started: make(chan struct{}, 2), release: make(chan struct{}), err: common.ErrTotalsMismatch}
	close(r.release)
	in := NewInbox(r, false, nil)
	ctx := context.Background()

	assert.ErrorIs(t, in.Process(ctx, dropPair(t, a, "retry")), common.ErrTotalsMismatch)
	r.err = nil
	require.NoError(t, in.Process(ctx, dropPair(t, b, "retry")))
	assert.Equal(t, int32(2), r.calls.Load())
	assert.FileExists(t, filepath.Join(b, DoneDir, "retry.pdf"))
}
