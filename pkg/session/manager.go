// Package session keeps the set of open knowledge-graph documents of one user.
//
// A Manager fetches documents from a core.GraphSource, tracks which one is
// active and which ones carry unsaved edits, and reports every transition on
// its Events channel. Collaborator calls never happen while the session state
// is locked, and operations on the same document id are serialised.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

// ErrEmptyTitle is returned by Create when a title yields no identifier.
var ErrEmptyTitle = errors.New("title does not produce a document identifier")

// ConfirmFunc asks whether a document with unsaved edits may be discarded.
type ConfirmFunc func(doc core.Document) bool

// Manager is the multi-document session of one user.
type Manager struct {
	sc      core.SessionContext
	source  core.GraphSource
	logger  *slog.Logger
	metrics *metrics
	locks   *keyedLocks

	mu           sync.Mutex
	store        *Store
	order        []string
	active       string
	activation   uint64
	selected     uint64 // bumped only when a caller picks a different document
	available    []core.DocumentInfo
	hasAvailable bool
	closed       bool
	events       chan Event
}

// New creates a session for sc.UserID backed by source.
func New(sc core.SessionContext, source core.GraphSource, opts ...Option) *Manager {
	o := options{
		logger:      sc.Log(),
		eventBuffer: DefaultEventBuffer,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = sc.Log()
	}
	sc.Logger = o.logger

	return &Manager{
		sc:      sc,
		source:  source,
		logger:  o.logger.With("user", sc.UserID),
		metrics: newMetrics(o.registerer),
		locks:   newKeyedLocks(),
		store:   NewStore(),
		events:  make(chan Event, o.eventBuffer),
	}
}

// Context returns the session context the manager acts for.
func (m *Manager) Context() core.SessionContext {
	return m.sc
}

// Events returns the channel of session transitions. It is closed by Shutdown.
//
// Delivery is best effort: when the buffer (see WithEventBuffer) is full the
// event is dropped and a warning logged, so operations never block on a slow
// reader. Treat an event as a hint to re-read Active, ActiveID or Document,
// not as a complete log of changes.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// ListAvailable returns the documents the user can open and remembers them
// as the available list. The open set is not touched.
func (m *Manager) ListAvailable(ctx context.Context) ([]core.DocumentInfo, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	start := time.Now()
	list, err := m.source.ListGraphs(ctx, m.sc.UserID)
	m.observe("list", start, err)
	if err != nil {
		return nil, core.NewOpError("list", "", core.ErrFetchFailure, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("list: %w", core.ErrStale)
	}
	m.available = slices.Clone(list)
	m.hasAvailable = true
	return slices.Clone(list), nil
}

// Open makes id the active document, fetching it first unless it is already
// open. Raw text and parsed structure are fetched concurrently and both must
// succeed; on failure nothing is added to the session. The result is
// discarded with ErrStale when another document was opened or activated
// while the fetch was in flight. Closing documents does not count.
func (m *Manager) Open(ctx context.Context, id string) error {
	unlock, err := m.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return core.ErrClosed
	}
	if m.store.Has(id) {
		m.activateLocked(id)
		m.mu.Unlock()
		return nil
	}
	seq := m.selected
	title := m.titleLocked(id)
	m.mu.Unlock()

	raw, parsed, err := m.fetch(ctx, "open", id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.selected != seq {
		m.logger.Debug("discarding stale open", "id", id)
		return fmt.Errorf("open %s: %w", id, core.ErrStale)
	}

	m.store.Add(core.Document{ID: id, Title: title, Raw: &raw, Parsed: parsed})
	m.order = append(m.order, id)
	doc, _ := m.store.Get(id)
	m.emitLocked(Event{Type: EventOpened, ID: id, Revision: doc.Revision})
	m.activateLocked(id)
	m.syncGaugesLocked()
	m.logger.Debug("document opened", "id", id, "nodes", parsed.Len())
	return nil
}

// Create registers a new document titled title and opens it.
// The identifier is derived from the title with core.Slugify.
func (m *Manager) Create(ctx context.Context, title, description string) (string, error) {
	id := core.Slugify(title)
	if id == "" {
		return "", fmt.Errorf("create %q: %w", title, ErrEmptyTitle)
	}

	unlock, err := m.locks.Lock(ctx, id)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		unlock()
		return "", core.ErrClosed
	}
	if m.knownLocked(id) {
		m.mu.Unlock()
		unlock()
		return "", &core.OpError{Op: "create", ID: id, Kind: core.ErrDuplicateDocument, Err: fmt.Errorf("%q is already taken", id)}
	}
	m.mu.Unlock()

	start := time.Now()
	err = m.source.CreateDocument(ctx, m.sc.UserID, id, title, description)
	m.observe("create", start, err)
	if err != nil {
		unlock()
		if errors.Is(err, core.ErrDuplicateDocument) {
			return "", core.NewOpError("create", id, core.ErrDuplicateDocument, err)
		}
		return "", core.NewOpError("create", id, core.ErrSaveFailure, err)
	}

	m.mu.Lock()
	if !m.closed {
		m.available = append(m.available, core.DocumentInfo{ID: id, Title: title})
		m.emitLocked(Event{Type: EventCreated, ID: id})
	}
	m.mu.Unlock()
	unlock()

	m.logger.Info("document created", "id", id, "title", title)
	return id, m.Open(ctx, id)
}

// NotifyEdit marks the document as having unsaved edits. Nothing is fetched.
func (m *Manager) NotifyEdit(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrClosed
	}
	changed, ok := m.store.MarkDirty(id)
	if !ok {
		return fmt.Errorf("edit %s: %w", id, core.ErrNotOpen)
	}
	if changed {
		m.emitEditedLocked(id)
	}
	return nil
}

// UpdateDraft records the editor buffer of id as the text the next Save
// sends, and marks the document dirty.
func (m *Manager) UpdateDraft(id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrClosed
	}
	changed, ok := m.store.SetDraft(id, text)
	if !ok {
		return fmt.Errorf("draft %s: %w", id, core.ErrNotOpen)
	}
	if changed {
		m.emitEditedLocked(id)
	}
	return nil
}

func (m *Manager) emitEditedLocked(id string) {
	doc, _ := m.store.Get(id)
	m.emitLocked(Event{Type: EventEdited, ID: id, Revision: doc.Revision})
	m.syncGaugesLocked()
}

// Save sends the document text to the collaborator and then refetches both
// representations. The dirty flag is cleared only once the refetch has
// succeeded, and only if no edit arrived while the save was in flight.
func (m *Manager) Save(ctx context.Context, id string) error {
	unlock, err := m.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return core.ErrClosed
	}
	text, ok := m.store.Text(id)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("save %s: %w", id, core.ErrNotOpen)
	}
	gen, _ := m.store.Generation(id)
	edits := m.store.Edits(id)
	m.mu.Unlock()

	start := time.Now()
	err = m.source.SaveDocument(ctx, m.sc.UserID, id, text)
	m.observe("save", start, err)
	if err != nil {
		m.logger.Warn("save failed, edits kept", "id", id, "error", err)
		return core.NewOpError("save", id, core.ErrSaveFailure, err)
	}

	raw, parsed, err := m.fetch(ctx, "resync", id)
	if err != nil {
		m.logger.Warn("saved but resync failed, document stays dirty", "id", id, "error", err)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.store.Generation(id); m.closed || !ok || g != gen {
		return fmt.Errorf("save %s: %w", id, core.ErrStale)
	}
	clean := m.store.Edits(id) == edits
	m.store.Replace(id, raw, parsed, clean)
	doc, _ := m.store.Get(id)
	m.emitLocked(Event{Type: EventSaved, ID: id, Revision: doc.Revision})
	m.syncGaugesLocked()
	m.logger.Debug("document saved", "id", id, "revision", doc.Revision, "clean", clean)
	return nil
}

// Refresh refetches a clean open document after an external change.
// Documents with unsaved edits are left alone.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	unlock, err := m.locks.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return core.ErrClosed
	}
	doc, ok := m.store.Get(id)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("refresh %s: %w", id, core.ErrNotOpen)
	}
	if doc.Dirty {
		m.mu.Unlock()
		m.logger.Debug("skipping refresh of dirty document", "id", id)
		return nil
	}
	gen, _ := m.store.Generation(id)
	edits := m.store.Edits(id)
	m.mu.Unlock()

	raw, parsed, err := m.fetch(ctx, "refresh", id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.store.Generation(id); m.closed || !ok || g != gen || m.store.Edits(id) != edits {
		return fmt.Errorf("refresh %s: %w", id, core.ErrStale)
	}
	if doc.Raw != nil && *doc.Raw == raw {
		m.logger.Debug("refresh found no change", "id", id)
		return nil
	}
	m.store.Replace(id, raw, parsed, true)
	doc, _ = m.store.Get(id)
	m.emitLocked(Event{Type: EventRefreshed, ID: id, Revision: doc.Revision})
	return nil
}

// Close removes id from the session. A dirty document is only closed when
// confirm approves; closed reports whether the document left the session.
// If id was active, the document that followed it in open order becomes
// active, else the one before it, else none.
func (m *Manager) Close(id string, confirm ConfirmFunc) (bool, error) {
	unlock, err := m.locks.Lock(context.Background(), id)
	if err != nil {
		return false, err
	}
	defer unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, core.ErrClosed
	}
	doc, ok := m.store.Get(id)
	m.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("close %s: %w", id, core.ErrNotOpen)
	}

	if doc.Dirty && (confirm == nil || !confirm(doc)) {
		m.logger.Debug("close canceled, unsaved edits", "id", id)
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, core.ErrClosed
	}

	idx := slices.Index(m.order, id)
	if idx < 0 {
		return false, fmt.Errorf("close %s: %w", id, core.ErrNotOpen)
	}
	m.order = slices.Delete(m.order, idx, idx+1)
	m.store.Remove(id)
	m.emitLocked(Event{Type: EventClosed, ID: id})

	if m.active == id {
		next := ""
		switch {
		case idx < len(m.order):
			next = m.order[idx]
		case idx > 0:
			next = m.order[idx-1]
		}
		m.setActiveLocked(next)
	}
	m.syncGaugesLocked()
	m.logger.Debug("document closed", "id", id, "active", m.active)
	return true, nil
}

// Activate makes an open document the active one.
func (m *Manager) Activate(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrClosed
	}
	if !m.store.Has(id) {
		return fmt.Errorf("activate %s: %w", id, core.ErrNotOpen)
	}
	m.activateLocked(id)
	return nil
}

func (m *Manager) activateLocked(id string) {
	if m.active == id {
		return
	}
	m.selected++
	m.setActiveLocked(id)
}

func (m *Manager) setActiveLocked(id string) {
	m.active = id
	m.activation++
	var rev uint64
	if doc, ok := m.store.Get(id); ok {
		rev = doc.Revision
	}
	m.emitLocked(Event{Type: EventActivated, ID: id, Revision: rev})
}

// Active returns a copy of the active document.
func (m *Manager) Active() (core.Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == "" {
		return core.Document{}, false
	}
	return m.store.Get(m.active)
}

// ActiveID returns the active document id, or "" when none is active.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Document returns a copy of an open document.
func (m *Manager) Document(id string) (core.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.store.Get(id)
	if !ok {
		return core.Document{}, fmt.Errorf("%s: %w", id, core.ErrNotOpen)
	}
	return doc, nil
}

// Text returns the editor text of an open document: the draft if one was
// recorded, otherwise the fetched raw text.
func (m *Manager) Text(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.store.Text(id)
	if !ok {
		return "", fmt.Errorf("%s: %w", id, core.ErrNotOpen)
	}
	return text, nil
}

// OpenDocuments lists the open documents in open order.
func (m *Manager) OpenDocuments() []core.DocumentInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]core.DocumentInfo, 0, len(m.order))
	for _, id := range m.order {
		if doc, ok := m.store.Get(id); ok {
			out = append(out, doc.Info())
		}
	}
	return out
}

// Available returns the last listed documents plus those created since.
func (m *Manager) Available() []core.DocumentInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.available)
}

// Shutdown ends the session. In-flight operations finish with ErrStale and
// the Events channel is closed. It is safe to call more than once.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.events)
	m.logger.Debug("session shut down", "open", len(m.order))
}

func (m *Manager) checkOpen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return core.ErrClosed
	}
	return nil
}

// fetch retrieves both representations of id concurrently. A malformed
// parsed payload degrades to an empty structure.
func (m *Manager) fetch(ctx context.Context, op, id string) (string, *core.ParsedStructure, error) {
	var (
		raw    string
		parsed *core.ParsedStructure
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := m.source.FetchRaw(gctx, m.sc.UserID, id)
		if err != nil {
			return fmt.Errorf("raw: %w", err)
		}
		raw = r
		return nil
	})
	g.Go(func() error {
		p, err := m.source.FetchParsed(gctx, m.sc.UserID, id)
		if errors.Is(err, core.ErrMalformedStructure) {
			m.logger.Warn("parsed structure is malformed, showing an empty graph", "id", id, "error", err)
			p, err = &core.ParsedStructure{}, nil
		}
		if err != nil {
			return fmt.Errorf("parsed: %w", err)
		}
		parsed = p
		return nil
	})
	err := g.Wait()
	m.observe(op, start, err)
	if err != nil {
		return "", nil, core.NewOpError(op, id, core.ErrFetchFailure, err)
	}
	if parsed == nil {
		parsed = &core.ParsedStructure{}
	}
	return raw, parsed, nil
}

func (m *Manager) observe(op string, start time.Time, err error) {
	m.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.metrics.failures.WithLabelValues(op).Inc()
	}
}

func (m *Manager) syncGaugesLocked() {
	m.metrics.open.Set(float64(m.store.Len()))
	m.metrics.dirty.Set(float64(m.store.DirtyCount()))
}

func (m *Manager) titleLocked(id string) string {
	for _, info := range m.available {
		if info.ID == id && info.Title != "" {
			return info.Title
		}
	}
	return id
}

func (m *Manager) knownLocked(id string) bool {
	if m.store.Has(id) {
		return true
	}
	return slices.ContainsFunc(m.available, func(info core.DocumentInfo) bool {
		return info.ID == id
	})
}
