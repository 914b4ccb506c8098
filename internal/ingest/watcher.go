package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Roots       []string      // directories to watch, not recursive
	InitialScan bool          // emit pairs already present at start
	Debounce    time.Duration // wait for writes to settle before emitting
}

// StartWatcher emits each pair once both halves have been written under a root.
// With InitialScan, halves already present count toward later pairs.
// Both channels close when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan Pair, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	for _, r := range cfg.Roots {
		if err := w.Add(r); err != nil {
			logger.Error("failed to watch root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	tracker := NewTracker()
	var initial []Pair
	if cfg.InitialScan {
		for _, r := range cfg.Roots {
			pairs, stats, err := scanInto(tracker, r)
			if err != nil {
				_ = w.Close()
				return nil, nil, err
			}
			logger.Info("ingest.scan", "root", r, "paired", stats.Paired, "unpaired", stats.Unpaired)
			initial = append(initial, pairs...)
		}
	}

	pairCh := make(chan Pair, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(pairCh)
		defer close(errCh)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("close watcher", "error", err)
			}
		}()

		emit := func(p Pair) bool {
			select {
			case pairCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range initial {
			if !emit(p) {
				return
			}
		}

		// path -> last event; flushed once quiet for Debounce
		pending := map[string]time.Time{}
		tick := time.NewTicker(tickInterval(cfg.Debounce))
		defer tick.Stop()

		flush := func(now time.Time) bool {
			for path, at := range pending {
				if now.Sub(at) < cfg.Debounce {
					continue
				}
				delete(pending, path)
				if p, ok := tracker.Add(path); ok {
					if !emit(p) {
						return false
					}
				}
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if _, match := kindOf(e.Name); !match || IsHidden(e.Name) {
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					pending[e.Name] = time.Now()
				}
				if cfg.Debounce <= 0 && !flush(time.Now()) {
					return
				}
			case now := <-tick.C:
				if !flush(now) {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return pairCh, errCh, nil
}

func tickInterval(debounce time.Duration) time.Duration {
	if debounce <= 0 {
		return time.Second
	}
	if d := debounce / 4; d > 10*time.Millisecond {
		return d
	}
	return 10 * time.Millisecond
}
