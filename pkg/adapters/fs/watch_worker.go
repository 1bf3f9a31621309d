package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

// DebounceDelay is the quiet period before a burst of file events is reported.
const DebounceDelay = 50 * time.Millisecond

// watchWorker turns fsnotify events of one user directory into core.Events.
type watchWorker struct {
	*worker.BaseWorker
	repo      *Repository
	dir       string
	events    chan<- core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	cancel    context.CancelFunc
	seen      map[string]time.Time
}

func newWatchWorker(repo *Repository, dir string, events chan<- core.Event) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
		dir:        dir,
		events:     events,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create watched directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	if !w.repo.config.Gitless {
		_ = watcher.Add(filepath.Join(w.repo.Path, ".git"))
	}

	w.watcher = watcher
	w.debouncer = newDebouncer(DebounceDelay)
	w.seen = w.snapshot()
	w.repo.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"dir":               w.dir,
		}
	})
}

func (w *watchWorker) logger() *slog.Logger {
	return w.repo.config.Logger
}

// handleGitLockEvent tracks .git/index.lock so that the burst of events a
// commit causes is not reported file by file.
func (w *watchWorker) handleGitLockEvent(event fsnotify.Event, gitLocked bool) (handled, locked bool) {
	if filepath.Base(event.Name) != "index.lock" || filepath.Base(filepath.Dir(event.Name)) != ".git" {
		return false, gitLocked
	}
	switch {
	case event.Has(fsnotify.Create):
		w.logger().Debug("git operation detected, pausing watcher")
		return true, true
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		w.logger().Debug("git operation finished, reconciling")
		return true, false
	}
	return true, gitLocked
}

// reconcile reports changes missed while the watcher was paused.
func (w *watchWorker) reconcile(ctx context.Context) {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for _, e := range w.diffSnapshot() {
			w.sendEvent(ctx, e)
		}
		w.repo.recordReconcile()
		return nil
	}, lifecycle.WithErrorHandler(w.reportError))
}

// snapshot records modification times of the documents in the directory.
func (w *watchWorker) snapshot() map[string]time.Time {
	ids, err := w.repo.discover(w.dir)
	if err != nil {
		w.reportError(err)
		return map[string]time.Time{}
	}
	out := make(map[string]time.Time, len(ids))
	for _, id := range ids {
		if info, err := os.Stat(w.repo.docPath(w.dir, id)); err == nil {
			out[id] = info.ModTime()
		}
	}
	return out
}

func (w *watchWorker) diffSnapshot() []core.Event {
	now := w.snapshot()
	ts := time.Now().Unix()

	w.repo.mu.Lock()
	defer w.repo.mu.Unlock()
	var out []core.Event
	for id, mod := range now {
		prev, ok := w.seen[id]
		switch {
		case !ok:
			out = append(out, core.Event{Type: core.EventCreate, ID: id, Timestamp: ts})
		case !prev.Equal(mod):
			out = append(out, core.Event{Type: core.EventModify, ID: id, Timestamp: ts})
		}
	}
	for id := range w.seen {
		if _, ok := now[id]; !ok {
			out = append(out, core.Event{Type: core.EventDelete, ID: id, Timestamp: ts})
		}
	}
	w.seen = now
	return out
}

func (w *watchWorker) remember(id string, eType core.EventType) {
	w.repo.mu.Lock()
	defer w.repo.mu.Unlock()
	if eType == core.EventDelete {
		delete(w.seen, id)
		return
	}
	if info, err := os.Stat(w.repo.docPath(w.dir, id)); err == nil {
		w.seen[id] = info.ModTime()
	}
}

// resolveID maps a path inside the directory to a document id, or "" when
// the path is not a document.
func (w *watchWorker) resolveID(path string) string {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return ""
	}
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	if strings.HasPrefix(rel, "..") || strings.HasPrefix(base, TempFilePrefix) || strings.HasPrefix(base, ".") {
		return ""
	}
	if filepath.Ext(rel) != Extension {
		return ""
	}
	if ok, _ := doublestar.Match(w.repo.config.Pattern, rel); !ok {
		return ""
	}
	return strings.TrimSuffix(rel, Extension)
}

func mapEventType(event fsnotify.Event) core.EventType {
	switch {
	case event.Has(fsnotify.Create):
		return core.EventCreate
	case event.Has(fsnotify.Write):
		return core.EventModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return core.EventDelete
	}
	return ""
}

func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	w.logger().Debug("event received", "name", event.Name, "op", event.Op.String())

	id := w.resolveID(event.Name)
	if id == "" {
		return false
	}
	eType := mapEventType(event)
	if eType == "" {
		return false
	}

	w.remember(id, eType)
	w.sendEvent(ctx, core.Event{Type: eType, ID: id, Timestamp: time.Now().Unix()})
	return true
}

func (w *watchWorker) sendEvent(ctx context.Context, event core.Event) {
	w.debouncer.add(event, func(e core.Event) {
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}

func (w *watchWorker) reportError(err error) {
	w.logger().Error("fs watcher error", "dir", w.dir, "error", err)
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
	}
}

func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.logger().Enabled(ctx, slog.LevelDebug) {
				w.logger().Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.logger().Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	err = w.loop(ctx)

	// In-flight debounce callbacks must finish before the owner closes the
	// events channel.
	w.debouncer.stopAndWait(5 * time.Second)
	return err
}

func (w *watchWorker) loop(ctx context.Context) error {
	gitLocked := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}

			if handled, locked := w.handleGitLockEvent(event, gitLocked); handled {
				wasLocked := gitLocked
				gitLocked = locked
				if wasLocked && !gitLocked {
					w.reconcile(ctx)
				}
				continue
			}
			if gitLocked {
				continue
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.reportError(wErr)
		}
	}
}
