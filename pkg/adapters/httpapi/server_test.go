package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/fs"
	"github.com/gnowledge/nodeBook-sub003/pkg/adapters/httpapi"
	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

const letters = `# Alpha
The first letter.
<links_to> Beta;

# Beta
has position: 2;
`

func newServer(t *testing.T) (*httpapi.Server, *fs.Repository, *prometheus.Registry) {
	t.Helper()
	repo := fs.NewRepository(fs.Config{
		Path:     filepath.Join(t.TempDir(), "graphs"),
		AutoInit: true,
		Gitless:  true,
	})
	require.NoError(t, repo.Initialize(context.Background()))
	reg := prometheus.NewRegistry()
	return httpapi.NewServer(repo, httpapi.WithRegistry(reg)), repo, reg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpapi.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestServer_CreateSaveFetch(t *testing.T) {
	srv, _, _ := newServer(t)

	rec := do(t, srv, http.MethodPost, "/v1/users/alice/graphs", `{"id": "letters", "title": "Letters"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/v1/users/alice/graphs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id": "letters", "title": "Letters"}]`, rec.Body.String())

	payload, err := json.Marshal(httpapi.RawBody{Raw: letters})
	require.NoError(t, err)
	rec = do(t, srv, http.MethodPut, "/v1/users/alice/graphs/letters/raw", string(payload))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/v1/users/alice/graphs/letters/raw", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var raw httpapi.RawBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, letters, raw.Raw)

	rec = do(t, srv, http.MethodGet, "/v1/users/alice/graphs/letters/parsed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	parsed, err := core.DecodeParsed(rec.Body.Bytes())
	require.NoError(t, err)
	require.Equal(t, 2, parsed.Len())
	assert.Equal(t, "alpha", parsed.Nodes[0].ID)
	assert.Equal(t, []core.Relation{{Name: "links_to", Target: "beta"}}, parsed.Nodes[0].Relations)
}

func TestServer_ErrorMapping(t *testing.T) {
	srv, _, _ := newServer(t)

	rec := do(t, srv, http.MethodGet, "/v1/users/alice/graphs/missing/raw", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, errorMessage(t, rec), "not found")

	body := `{"id": "g", "title": "G"}`
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/v1/users/alice/graphs", body).Code)
	rec = do(t, srv, http.MethodPost, "/v1/users/alice/graphs", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	payload, _ := json.Marshal(httpapi.RawBody{Raw: "has orphan: 1;"})
	require.Equal(t, http.StatusNoContent, do(t, srv, http.MethodPut, "/v1/users/alice/graphs/g/raw", string(payload)).Code)
	rec = do(t, srv, http.MethodGet, "/v1/users/alice/graphs/g/parsed", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, srv, http.MethodPut, "/v1/users/alice/graphs/absent/raw", `{"raw": "# X"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_CreateValidation(t *testing.T) {
	srv, _, _ := newServer(t)

	rec := do(t, srv, http.MethodPost, "/v1/users/alice/graphs", `{"title": "No id"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id is required", errorMessage(t, rec))

	rec = do(t, srv, http.MethodPost, "/v1/users/alice/graphs", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/v1/users/alice/graphs", `{"id": "../x", "title": "Escape"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Preferences(t *testing.T) {
	srv, repo, _ := newServer(t)

	rec := do(t, srv, http.MethodGet, "/v1/users/alice/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"difficulty": "easy"}`, rec.Body.String())

	require.NoError(t, repo.SetDifficulty(context.Background(), "alice", core.DifficultyExpert))
	rec = do(t, srv, http.MethodGet, "/v1/users/alice/preferences", "")
	assert.JSONEq(t, `{"difficulty": "expert"}`, rec.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	srv, _, reg := newServer(t)

	do(t, srv, http.MethodGet, "/v1/users/alice/graphs", "")
	do(t, srv, http.MethodGet, "/v1/users/bob/graphs", "")
	do(t, srv, http.MethodGet, "/v1/users/alice/graphs/missing/raw", "")

	count, err := testutil.GatherAndCount(reg, "nodebook_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one series per route and status")

	rec := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `nodebook_http_requests_total{method="GET",route="/v1/users/{user}/graphs/{id}/raw",status="404"} 1`)
	assert.Contains(t, rec.Body.String(), "nodebook_http_request_duration_seconds")
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		core.ErrNotFound:           http.StatusNotFound,
		core.ErrDuplicateDocument:  http.StatusConflict,
		core.ErrMalformedStructure: http.StatusUnprocessableEntity,
		core.ErrInvalidID:          http.StatusBadRequest,
		errors.New("disk on fire"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, httpapi.StatusFor(err), err.Error())
	}
}

func TestServer_HealthAndCORS(t *testing.T) {
	repo := fs.NewRepository(fs.Config{
		Path:     filepath.Join(t.TempDir(), "graphs"),
		AutoInit: true,
		Gitless:  true,
	})
	require.NoError(t, repo.Initialize(context.Background()))
	srv := httpapi.NewServer(repo, httpapi.WithAllowedOrigins("http://localhost:3000"))

	rec := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/v1/users/alice/graphs/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/v1/users/alice/graphs/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
