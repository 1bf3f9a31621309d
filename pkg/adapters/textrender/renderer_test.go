package textrender_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/textrender"
	"github.com/gnowledge/nodeBook-sub003/pkg/core"
	"github.com/gnowledge/nodeBook-sub003/pkg/diagram"
)

// syncBuffer is a bytes.Buffer safe for the controller's bind goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

var (
	nodes = []diagram.Node{
		{ID: "a", Label: "Alpha", Description: `say "hi"`, OriginalName: "**Alpha**"},
		{ID: "b", Label: "Beta"},
	}
	edges = []diagram.Edge{
		{ID: "a|links_to|b|0", Source: "a", Target: "b", Label: "links_to"},
		{ID: "a|part of|x.y|1", Source: "a", Target: "x.y", Label: "part of"},
	}
)

func TestRender(t *testing.T) {
	want := `direction: down
# layout: dagre

# Nodes
a: {
  label: "Alpha"
  tooltip: "say \"hi\""
}
b: {
  label: "Beta"
}

# Edges
a -> b: "links_to"
a -> "x.y": "part of"
`
	assert.Equal(t, want, textrender.Render(nodes, edges, "dagre"))
	assert.Equal(t, textrender.Render(nodes, edges, "grid"), textrender.Render(nodes, edges, "grid"))
	assert.Contains(t, textrender.Render(nil, nil, "grid"), "direction: right")
}

func TestRenderer_Lifecycle(t *testing.T) {
	var out bytes.Buffer
	r := textrender.New(&out)
	surface := textrender.NewFixedSurface(80, 24)

	h1, err := r.Create(surface, nodes, edges, "grid")
	require.NoError(t, err)
	h2, err := r.Create(surface, nodes, nil, "grid")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, r.Live())
	assert.Contains(t, out.String(), `label: "Alpha"`)

	var tapped, hovered []string
	r.OnTap(h1, func(id string) { tapped = append(tapped, id) })
	r.OnHover(h1, func(id string) { hovered = append(hovered, id) })

	assert.True(t, r.Tap(h1, "a"))
	assert.True(t, r.Hover(h1, "b"))
	assert.False(t, r.Tap(h2, "a"), "no callback registered")

	require.NoError(t, r.Destroy(h1))
	assert.False(t, r.Tap(h1, "b"), "destroyed instances never fire")
	assert.ErrorIs(t, r.Destroy(h1), textrender.ErrUnknownHandle)

	assert.Equal(t, []string{"a"}, tapped)
	assert.Equal(t, []string{"b"}, hovered)
	assert.Equal(t, 1, r.Live())
}

func TestRenderer_SurfaceNotReady(t *testing.T) {
	r := textrender.New(nil)
	_, err := r.Create(textrender.NewFixedSurface(0, 0), nodes, edges, "grid")
	assert.ErrorIs(t, err, textrender.ErrSurfaceNotReady)
	assert.Equal(t, 0, r.Live())
}

func TestRenderer_DrivesController(t *testing.T) {
	out := &syncBuffer{}
	r := textrender.New(out)
	surface := textrender.NewFixedSurface(0, 0)

	selected := make(chan core.Node, 1)
	c := diagram.NewController(context.Background(), r, surface,
		diagram.WithPollInterval(5*time.Millisecond),
		diagram.WithSelectHandler(func(n core.Node) { selected <- n }),
	)
	defer c.Close()

	parsed := &core.ParsedStructure{Nodes: []core.Node{
		{ID: "a", Name: "**Alpha**", Relations: []core.Relation{{Name: "links_to", Target: "b"}}},
		{ID: "b", Name: "Beta"},
	}}
	require.NoError(t, c.Bind(diagram.Input{DocumentID: "graph1", Revision: 1, Parsed: parsed, Layout: "grid"}))
	assert.Equal(t, diagram.StatePending, c.Status())

	surface.Resize(80, 24)
	require.Eventually(t, func() bool { return c.Status() == diagram.StateBound }, time.Second, 5*time.Millisecond)

	h, ok := c.Handle()
	require.True(t, ok)
	require.True(t, r.Tap(h, "a"))

	select {
	case n := <-selected:
		assert.Equal(t, "**Alpha**", n.Name)
	case <-time.After(time.Second):
		t.Fatal("tap did not select a node")
	}
	assert.Contains(t, out.String(), "a -> b")

	require.NoError(t, c.Close())
	assert.Equal(t, 0, r.Live())
}
