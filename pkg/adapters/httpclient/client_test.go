package httpclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/fs"
	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/httpapi"
	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/httpclient"
	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

var _ core.GraphSource = (*httpclient.Client)(nil)
var _ core.Preferences = (*httpclient.Client)(nil)

func newRemote(t *testing.T) (*httpclient.Client, *fs.Repository) {
	t.Helper()
	repo := fs.NewRepository(fs.Config{
		Path:     filepath.Join(t.TempDir(), "graphs"),
		AutoInit: true,
		Gitless:  true,
	})
	require.NoError(t, repo.Initialize(context.Background()))

	ts := httptest.NewServer(httpapi.NewServer(repo))
	t.Cleanup(ts.Close)
	return httpclient.New(ts.URL+"/", httpclient.WithTimeout(5*time.Second)), repo
}

func TestClient_RoundTrip(t *testing.T) {
	c, _ := newRemote(t)
	ctx := context.Background()

	require.NoError(t, c.CreateDocument(ctx, "alice", "graph1", "Graph One", "demo"))
	graphs, err := c.ListGraphs(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []core.DocumentInfo{{ID: "graph1", Title: "Graph One"}}, graphs)

	src := "# A\n<links_to> B;\n\n# B\n"
	require.NoError(t, c.SaveDocument(ctx, "alice", "graph1", src))

	raw, err := c.FetchRaw(ctx, "alice", "graph1")
	require.NoError(t, err)
	assert.Equal(t, src, raw)

	parsed, err := c.FetchParsed(ctx, "alice", "graph1")
	require.NoError(t, err)
	require.Equal(t, 2, parsed.Len())
	assert.Equal(t, "b", parsed.Nodes[0].Relations[0].Target)

	d, err := c.GetDifficulty(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, core.DifficultyEasy, d)
}

func TestClient_ErrorsMapToSentinels(t *testing.T) {
	c, _ := newRemote(t)
	ctx := context.Background()

	_, err := c.FetchRaw(ctx, "alice", "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	var apiErr *httpclient.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	require.NoError(t, c.CreateDocument(ctx, "alice", "dup", "Dup", ""))
	assert.ErrorIs(t, c.CreateDocument(ctx, "alice", "dup", "Dup", ""), core.ErrDuplicateDocument)

	require.NoError(t, c.SaveDocument(ctx, "alice", "dup", "has stray: 1;"))
	_, err = c.FetchParsed(ctx, "alice", "dup")
	assert.ErrorIs(t, err, core.ErrMalformedStructure)

	assert.Equal(t, "closed", c.BreakerState(), "client errors do not trip the breaker")
}

func TestClient_SendsHeaders(t *testing.T) {
	var auth, reqID atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		reqID.Store(r.Header.Get(httpclient.RequestIDHeader))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	c := httpclient.New(ts.URL, httpclient.WithToken("secret"))
	graphs, err := c.ListGraphs(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, graphs)
	assert.Equal(t, "Bearer secret", auth.Load())
	assert.Len(t, reqID.Load(), 36)
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := httpclient.New(ts.URL, httpclient.WithBreakerSettings(gobreaker.Settings{
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.FetchRaw(ctx, "alice", "g")
		var apiErr *httpclient.APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "boom", apiErr.Message)
	}

	_, err := c.FetchRaw(ctx, "alice", "g")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, "open", c.BreakerState())
}
