package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

type memDoc struct {
	title  string
	raw    string
	parsed *core.ParsedStructure
}

// memSource is an in-memory GraphSource. Keys of fail are "<op>:<id>"
// with op one of raw, parsed, save, create, or "list".
type memSource struct {
	mu      sync.Mutex
	docs    map[string]*memDoc
	order   []string
	calls   map[string]int
	fail    map[string]error
	gates   map[string]chan struct{}
	started chan string
	onSave  func(id string)
}

func newMemSource() *memSource {
	return &memSource{
		docs:    make(map[string]*memDoc),
		calls:   make(map[string]int),
		fail:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (s *memSource) put(id, title, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		s.order = append(s.order, id)
	}
	s.docs[id] = &memDoc{title: title, raw: raw, parsed: parseLines(raw)}
}

func (s *memSource) putParsed(id string, parsed *core.ParsedStructure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id].parsed = parsed
}

func (s *memSource) setFail(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.fail, key)
		return
	}
	s.fail[key] = err
}

// gate makes FetchRaw for id block until the returned function is called.
func (s *memSource) gate(id string) func() {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[id] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *memSource) count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *memSource) raw(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id].raw
}

func (s *memSource) enter(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
	return s.fail[key]
}

func (s *memSource) ListGraphs(ctx context.Context, userID string) ([]core.DocumentInfo, error) {
	if err := s.enter("list"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.DocumentInfo, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, core.DocumentInfo{ID: id, Title: s.docs[id].title})
	}
	return out, nil
}

func (s *memSource) FetchRaw(ctx context.Context, userID, id string) (string, error) {
	if err := s.enter("raw:" + id); err != nil {
		return "", err
	}
	s.mu.Lock()
	gate := s.gates[id]
	s.mu.Unlock()
	if gate != nil {
		s.started <- id
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return "", fmt.Errorf("%s: %w", id, core.ErrNotFound)
	}
	return doc.raw, nil
}

func (s *memSource) FetchParsed(ctx context.Context, userID, id string) (*core.ParsedStructure, error) {
	if err := s.enter("parsed:" + id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, core.ErrNotFound)
	}
	return doc.parsed.Clone(), nil
}

func (s *memSource) CreateDocument(ctx context.Context, userID, id, title, description string) error {
	if err := s.enter("create:" + id); err != nil {
		return err
	}
	s.mu.Lock()
	_, exists := s.docs[id]
	s.mu.Unlock()
	if exists {
		return fmt.Errorf("%s: %w", id, core.ErrDuplicateDocument)
	}
	s.put(id, title, "# "+title)
	return nil
}

func (s *memSource) SaveDocument(ctx context.Context, userID, id, raw string) error {
	if err := s.enter("save:" + id); err != nil {
		return err
	}
	s.mu.Lock()
	doc, ok := s.docs[id]
	if ok {
		doc.raw = raw
		doc.parsed = parseLines(raw)
	}
	hook := s.onSave
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, core.ErrNotFound)
	}
	if hook != nil {
		hook(id)
	}
	return nil
}

// parseLines turns every non-empty line into a node.
func parseLines(raw string) *core.ParsedStructure {
	p := &core.ParsedStructure{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(line, "#"))
		if line == "" {
			continue
		}
		p.Nodes = append(p.Nodes, core.Node{ID: core.Slugify(line), Name: line})
	}
	return p
}
