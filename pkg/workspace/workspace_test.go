package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/fs"
	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/textrender"
	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/diagram"
	"github.com/gnowledge/nodeBook-sub003/pkg/session"
	"github.com/gnowledge/nodeBook-sub003/pkg/workspace"
)

const graph1 = `{"nodes": [
	{"node_id": "a", "name": "**Alpha**", "description": "first letter",
	 "relations": [{"name": "links_to", "target": "b"}]},
	{"node_id": "b", "name": "Beta"}
]}`

// memSource serves fixed documents and a fixed difficulty.
type memSource struct {
	mu         sync.Mutex
	raw        map[string]string
	parsed     map[string]string
	difficulty core.Difficulty
}

func newMemSource() *memSource {
	return &memSource{
		raw:        map[string]string{"graph1": "graph one", "graph2": "graph two", "empty": ""},
		parsed:     map[string]string{"graph1": graph1, "graph2": `{"nodes": ["Solo"]}`, "empty": `{"nodes": []}`},
		difficulty: core.DifficultySuperuser,
	}
}

func (s *memSource) ListGraphs(ctx context.Context, userID string) ([]core.DocumentInfo, error) {
	return []core.DocumentInfo{{ID: "graph1", Title: "Graph 1"}}, nil
}

func (s *memSource) FetchRaw(ctx context.Context, userID, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.raw[id]
	if !ok {
		return "", core.ErrNotFound
	}
	return raw, nil
}

func (s *memSource) FetchParsed(ctx context.Context, userID, id string) (*core.ParsedStructure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.parsed[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return core.DecodeParsed([]byte(payload))
}

func (s *memSource) CreateDocument(ctx context.Context, userID, id, title, description string) error {
	return errors.New("read-only")
}

func (s *memSource) SaveDocument(ctx context.Context, userID, id, raw string) error {
	return errors.New("read-only")
}

func (s *memSource) GetDifficulty(ctx context.Context, userID string) (core.Difficulty, error) {
	return s.difficulty, nil
}

type fixture struct {
	manager    *session.Manager
	controller *diagram.Controller
	renderer   *textrender.Renderer
	workspace  *workspace.Workspace
	selected   chan core.Node
	done       chan error
}

func start(t *testing.T, src core.GraphSource, opts ...workspace.Option) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	f := &fixture{
		manager:  session.New(core.SessionContext{UserID: "alice"}, src),
		renderer: textrender.New(nil),
		selected: make(chan core.Node, 4),
		done:     make(chan error, 1),
	}
	f.controller = diagram.NewController(ctx, f.renderer, textrender.NewFixedSurface(80, 24),
		diagram.WithPollInterval(5*time.Millisecond),
		diagram.WithSelectHandler(func(n core.Node) { f.selected <- n }),
	)
	f.workspace = workspace.New(f.manager, f.controller, opts...)

	go func() { f.done <- f.workspace.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-f.done
		_ = f.controller.Close()
		f.manager.Shutdown()
	})
	return f
}

func (f *fixture) waitBound(t *testing.T, docID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := f.controller.State().(diagram.ControllerState)
		return st.State == diagram.StateBound && st.DocumentID == docID
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWorkspace_OpenRendersAndTapSelects(t *testing.T) {
	src := newMemSource()
	f := start(t, src, workspace.WithPreferences(src))
	ctx := context.Background()

	require.NoError(t, f.manager.Open(ctx, "graph1"))
	f.waitBound(t, "graph1")

	want := diagram.Model{
		Nodes: []diagram.Node{
			{ID: "a", Label: "Alpha", Description: "first letter", OriginalName: "**Alpha**"},
			{ID: "b", Label: "Beta", OriginalName: "Beta"},
		},
		Edges: []diagram.Edge{
			{ID: diagram.EdgeID("a", "links_to", "b", 0), Source: "a", Target: "b", Label: "links_to"},
		},
	}
	if diff := cmp.Diff(want, f.controller.Model()); diff != "" {
		t.Errorf("model mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "dagre", f.controller.State().(diagram.ControllerState).Layout)

	h, ok := f.controller.Handle()
	require.True(t, ok)
	require.True(t, f.renderer.Tap(h, "a"))
	select {
	case n := <-f.selected:
		assert.Equal(t, "a", n.ID)
		assert.Equal(t, "**Alpha**", n.Name)
	case <-time.After(time.Second):
		t.Fatal("no node selected")
	}
}

func TestWorkspace_FollowsActiveDocument(t *testing.T) {
	f := start(t, newMemSource(), workspace.WithLayout("grid"))
	ctx := context.Background()

	require.NoError(t, f.manager.Open(ctx, "graph1"))
	f.waitBound(t, "graph1")
	require.NoError(t, f.manager.Open(ctx, "graph2"))
	f.waitBound(t, "graph2")
	assert.Equal(t, 1, f.renderer.Live(), "the previous instance is destroyed")

	require.NoError(t, f.manager.Activate("graph1"))
	f.waitBound(t, "graph1")

	require.NoError(t, f.manager.Open(ctx, "empty"))
	require.Eventually(t, func() bool {
		return f.controller.Status() == diagram.StateEmpty
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "This graph has no nodes to display.", f.controller.Placeholder())
	assert.Equal(t, 0, f.renderer.Live())

	for _, id := range []string{"empty", "graph1", "graph2"} {
		closed, err := f.manager.Close(id, nil)
		require.NoError(t, err)
		require.True(t, closed)
	}
	require.Eventually(t, func() bool {
		return f.controller.Placeholder() == "No graph selected."
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.renderer.Live())
}

func TestWorkspace_SetLayoutRebinds(t *testing.T) {
	f := start(t, newMemSource())
	require.NoError(t, f.manager.Open(context.Background(), "graph1"))
	f.waitBound(t, "graph1")
	assert.Equal(t, diagram.DefaultLayout, f.workspace.Layout())

	require.NoError(t, f.workspace.SetLayout("circle"))
	require.Eventually(t, func() bool {
		st := f.controller.State().(diagram.ControllerState)
		return st.State == diagram.StateBound && st.Layout == "circle"
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, f.controller.State().(diagram.ControllerState).Binds)
}

func TestWorkspace_StopsWhenSessionShutsDown(t *testing.T) {
	m := session.New(core.SessionContext{UserID: "alice"}, newMemSource())
	c := diagram.NewController(context.Background(), textrender.New(nil), textrender.NewFixedSurface(1, 1))
	defer c.Close()

	done := make(chan error, 1)
	go func() { done <- workspace.New(m, c).Run(context.Background()) }()
	m.Shutdown()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("workspace did not stop")
	}
}

func TestWorkspace_RefreshesOnExternalChange(t *testing.T) {
	root := filepath.Join(t.TempDir(), "graphs")
	repo := fs.NewRepository(fs.Config{Path: root, AutoInit: true, Gitless: true})
	ctx := context.Background()
	require.NoError(t, repo.Initialize(ctx))
	require.NoError(t, repo.CreateDocument(ctx, "alice", "letters", "Letters", ""))
	require.NoError(t, repo.SaveDocument(ctx, "alice", "letters", "# Alpha\n<next> Beta;\n\n# Beta\n"))

	f := start(t, repo, workspace.WithPreferences(repo), workspace.WithWatcher(repo))
	require.Eventually(t, func() bool {
		return repo.State().(fs.RepositoryState).Watchers == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.manager.Open(ctx, "letters"))
	f.waitBound(t, "letters")
	assert.Equal(t, "grid", f.controller.State().(diagram.ControllerState).Layout)
	assert.Len(t, f.controller.Model().Nodes, 2)

	path := filepath.Join(root, "alice", "letters.cnl")
	require.NoError(t, os.WriteFile(path, []byte("# Alpha\n<next> Beta;\n\n# Beta\n<next> Gamma;\n\n# Gamma\n"), 0644))

	require.Eventually(t, func() bool {
		return len(f.controller.Model().Nodes) == 3 && f.controller.Status() == diagram.StateBound
	}, 5*time.Second, 10*time.Millisecond)
	doc, err := f.manager.Document("letters")
	require.NoError(t, err)
	assert.False(t, doc.Dirty)
}
