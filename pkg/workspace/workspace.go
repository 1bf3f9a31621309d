// Package workspace keeps the diagram in step with the session.
//
// A Workspace follows the events of a session.Manager and rebinds a
// diagram.Controller to whatever document is active, with the layout derived
// from the user's difficulty tier. When the collaborator can report external
// changes, clean open documents are refreshed as their files change.
package workspace

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"

	lcsource "github.com/gnowledge/nodeBook-sub003/pkg/adapters/lifecycle"
	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/diagram"
	"github.com/gnowledge/nodeBook-sub003/pkg/session"
)

// Option configures a Workspace.
type Option func(*Workspace)

// WithPreferences supplies the difficulty tier that picks the default layout.
func WithPreferences(p core.Preferences) Option {
	return func(w *Workspace) {
		w.prefs = p
	}
}

// WithWatcher enables refreshing open documents on external changes.
func WithWatcher(src core.Watchable) Option {
	return func(w *Workspace) {
		w.watcher = src
	}
}

// WithLayout fixes the layout, ignoring preferences.
func WithLayout(layout string) Option {
	return func(w *Workspace) {
		w.layout = layout
		w.fixed = layout != ""
	}
}

// WithLogger sets the logger for the workspace.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Workspace wires a session to a diagram controller.
type Workspace struct {
	manager    *session.Manager
	controller *diagram.Controller
	prefs      core.Preferences
	watcher    core.Watchable
	logger     *slog.Logger

	mu     sync.Mutex
	layout string
	fixed  bool
}

// New creates a workspace. Nothing happens until Run.
func New(m *session.Manager, c *diagram.Controller, opts ...Option) *Workspace {
	w := &Workspace{
		manager:    m,
		controller: c,
		logger:     m.Context().Log(),
		layout:     diagram.DefaultLayout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Layout returns the layout used for new binds.
func (w *Workspace) Layout() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.layout
}

// SetLayout changes the layout and rebinds the active document.
func (w *Workspace) SetLayout(layout string) error {
	w.mu.Lock()
	w.layout = layout
	w.fixed = true
	w.mu.Unlock()
	return w.Sync()
}

// Sync binds the controller to the active document, or clears it when no
// document is active.
func (w *Workspace) Sync() error {
	doc, ok := w.manager.Active()
	if !ok {
		w.controller.Clear()
		return nil
	}
	return w.controller.Bind(diagram.Input{
		DocumentID: doc.ID,
		Revision:   doc.Revision,
		Parsed:     doc.Parsed,
		Layout:     w.Layout(),
	})
}

// Run follows the session until ctx is canceled or the session shuts down.
// It returns nil in both cases.
func (w *Workspace) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.resolveLayout(ctx)
	if err := w.Sync(); err != nil {
		return err
	}

	sessionEvents := lcsource.NewSource(w.manager.Events())
	if err := sessionEvents.Start(ctx); err != nil {
		return err
	}

	var changes <-chan lifecycle.Event
	if w.watcher != nil {
		ch, err := w.watcher.Watch(ctx, w.manager.Context().UserID)
		if err != nil {
			w.logger.Warn("external changes will not be followed", "error", err)
		} else {
			src := lcsource.NewSource(ch)
			if err := src.Start(ctx); err != nil {
				return err
			}
			changes = src.Events()
		}
	}

	events := sessionEvents.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				w.logger.Debug("session ended, workspace stops")
				return nil
			}
			w.handle(ctx, ev)
		case ev, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			w.handle(ctx, ev)
		}
	}
}

func (w *Workspace) handle(ctx context.Context, ev lifecycle.Event) {
	switch e := ev.(type) {
	case session.Event:
		w.onSessionEvent(e)
	case core.Event:
		w.onExternalChange(ctx, e)
	default:
		w.logger.Debug("ignoring unknown event", "event", ev.String())
	}
}

func (w *Workspace) onSessionEvent(e session.Event) {
	switch e.Type {
	case session.EventEdited, session.EventCreated:
		// Neither changes what the diagram shows.
		return
	}
	if err := w.Sync(); err != nil && !errors.Is(err, diagram.ErrControllerClosed) {
		w.logger.Warn("diagram sync failed", "event", e.String(), "error", err)
	}
}

func (w *Workspace) onExternalChange(ctx context.Context, e core.Event) {
	if e.Type == core.EventDelete {
		if _, err := w.manager.Document(e.ID); err == nil {
			w.logger.Warn("open document was deleted externally", "id", e.ID)
		}
		return
	}
	if _, err := w.manager.Document(e.ID); err != nil {
		return
	}
	// Refresh blocks on the document's lock; keep the event loop responsive.
	lifecycle.Go(ctx, func(ctx context.Context) error {
		return w.manager.Refresh(ctx, e.ID)
	}, lifecycle.WithErrorHandler(func(err error) {
		if errors.Is(err, core.ErrStale) || errors.Is(err, core.ErrClosed) ||
			errors.Is(err, core.ErrNotOpen) || errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Warn("refresh after external change failed", "id", e.ID, "error", err)
	}))
}

// resolveLayout derives the layout from the user's difficulty tier.
func (w *Workspace) resolveLayout(ctx context.Context) {
	w.mu.Lock()
	fixed := w.fixed
	w.mu.Unlock()
	if fixed || w.prefs == nil {
		return
	}

	d, err := w.prefs.GetDifficulty(ctx, w.manager.Context().UserID)
	if err != nil {
		w.logger.Warn("difficulty unavailable, using default layout", "error", err)
		return
	}
	w.mu.Lock()
	if !w.fixed {
		w.layout = diagram.LayoutFor(d)
	}
	w.mu.Unlock()
	w.logger.Debug("layout selected", "difficulty", d, "layout", w.Layout())
}
