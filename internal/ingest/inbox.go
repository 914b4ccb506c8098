package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/freight-audit/internal/common"
	"github.com/joseph-ayodele/freight-audit/internal/pipeline"
)

const (
	DoneDir   = "done"
	FailedDir = "failed"
)

// Runner audits one upload end to end.
type Runner interface {
	Run(ctx context.Context, up pipeline.Upload, persist bool) (*pipeline.RunResult, error)
}

// Inbox audits pairs dropped into a watched directory. Finished pairs move to
// done/ or failed/ next to them, with a <name>.result.json report.
type Inbox struct {
	runner  Runner
	persist bool
	logger  *slog.Logger

	mu   sync.Mutex
	seen map[string]auditState // by content hash
}

type auditState int

const (
	auditing auditState = iota + 1
	audited
)

func NewInbox(runner Runner, persist bool, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{runner: runner, persist: persist, logger: logger, seen: make(map[string]auditState)}
}

type result struct {
	PDF      string              `json:"pdf"`
	CSV      string              `json:"csv"`
	SHA256   string              `json:"sha256"`
	Finished time.Time           `json:"finished_at"`
	Result   *pipeline.RunResult `json:"result,omitempty"`
	Error    string              `json:"error,omitempty"`
}

// Process runs p through the audit. A pair whose content was already audited,
// or is being audited, by this Inbox is moved to done/ without running again.
// A failed audit releases its content so a later drop can retry it.
func (i *Inbox) Process(ctx context.Context, p Pair) error {
	rid := common.RequestIDFromContext(ctx)
	pdf, err := os.ReadFile(p.PDF)
	if err != nil {
		return fmt.Errorf("read pdf: %w", err)
	}
	csv, err := os.ReadFile(p.CSV)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}

	h := sha256.New()
	h.Write(pdf)
	h.Write(csv)
	sum := hex.EncodeToString(h.Sum(nil))

	i.mu.Lock()
	state, dup := i.seen[sum]
	if !dup {
		i.seen[sum] = auditing
	}
	i.mu.Unlock()
	if dup {
		msg := "duplicate of an audited pair"
		if state == auditing {
			msg = "duplicate of a pair being audited"
		}
		i.logger.Info("ingest.inbox.duplicate", "req_id", rid, "pair", p.Key, "sha256", sum, "in_flight", state == auditing)
		return i.finish(p, DoneDir, result{PDF: p.PDF, CSV: p.CSV, SHA256: sum, Error: msg})
	}

	res, runErr := i.runner.Run(ctx, pipeline.Upload{
		PDFName: filepath.Base(p.PDF),
		PDF:     pdf,
		CSVName: filepath.Base(p.CSV),
		CSV:     csv,
	}, i.persist)

	out := result{PDF: p.PDF, CSV: p.CSV, SHA256: sum, Result: res}
	dest := DoneDir
	i.mu.Lock()
	if runErr != nil {
		out.Error = runErr.Error()
		dest = FailedDir
		delete(i.seen, sum)
	} else {
		i.seen[sum] = audited
	}
	i.mu.Unlock()
	if err := i.finish(p, dest, out); err != nil {
		i.logger.Error("ingest.inbox.move_failed", "req_id", rid, "pair", p.Key, "error", err)
		if runErr == nil {
			return err
		}
	}
	return runErr
}

// finish moves both halves into dir/<sub>/ and writes the result report there.
func (i *Inbox) finish(p Pair, sub string, out result) error {
	dir := filepath.Join(filepath.Dir(p.PDF), sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	out.Finished = time.Now().UTC()
	for _, src := range []string{p.PDF, p.CSV} {
		if err := os.Rename(src, filepath.Join(dir, filepath.Base(src))); err != nil {
			return err
		}
	}
	base := strings.TrimSuffix(filepath.Base(p.PDF), filepath.Ext(p.PDF))
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, base+".result.json"), data, 0o644)
}
