package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complygraph/complygraph/pkg/agent"
	"github.com/complygraph/complygraph/pkg/analytics"
	"github.com/complygraph/complygraph/pkg/errors"
	"github.com/complygraph/complygraph/pkg/graph"
	"github.com/complygraph/complygraph/pkg/memory"
	"github.com/complygraph/complygraph/pkg/retrieval"
)

type fakeGraph struct {
	pingErr error
}

func (f *fakeGraph) Ping(context.Context) error { return f.pingErr }

func (f *fakeGraph) ExecuteQuery(_ context.Context, query string, _ map[string]any, _ bool) ([]graph.Row, error) {
	if strings.Contains(query, "count(DISTINCT req) AS requirements") {
		return []graph.Row{
			{"domain": "payments", "regulation": "PSD2", "requirements": 4, "controls": 4},
		}, nil
	}
	return nil, nil
}

type fakeBackend struct{}

func (fakeBackend) Complete(context.Context, string, string) (string, error) {
	return "summary", nil
}

func (fakeBackend) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.ErrGeneration.WithMessagef("no embeddings")
}

func newTestEngine(t *testing.T, store graph.Store) *Engine {
	t.Helper()

	library := analytics.NewLibrary(store)
	retrievalEngine := retrieval.NewEngine(store)
	memStore := memory.NewStore()
	orchestrator := agent.New(library, retrievalEngine, memStore, fakeBackend{})

	engine, err := NewEngine(context.Background(), store, memStore, retrievalEngine, library, orchestrator)
	require.NoError(t, err)

	return engine
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestNewEngineFailsWhenGraphUnreachable(t *testing.T) {
	store := &fakeGraph{pingErr: errors.ErrGraphQuery.WithMessagef("connection refused")}

	library := analytics.NewLibrary(store)
	retrievalEngine := retrieval.NewEngine(store)
	memStore := memory.NewStore()
	orchestrator := agent.New(library, retrievalEngine, memStore, fakeBackend{})

	_, err := NewEngine(context.Background(), store, memStore, retrievalEngine, library, orchestrator)
	assert.ErrorIs(t, err, errors.ErrInitialization)
	assert.True(t, errors.IsFatal(err))
}

func TestQueryEndpoint(t *testing.T) {
	srv := NewServer(newTestEngine(t, &fakeGraph{}))

	resp, err := srv.app.Test(jsonRequest(http.MethodPost, "/query",
		`{"query": "overview of the compliance portfolio"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var response agent.Response
	decodeBody(t, resp, &response)
	assert.Equal(t, "summary", response.Answer)
	assert.NotEmpty(t, response.QueryID)
}

func TestQueryEndpointRejectsEmptyQuery(t *testing.T) {
	srv := NewServer(newTestEngine(t, &fakeGraph{}))

	resp, err := srv.app.Test(jsonRequest(http.MethodPost, "/query", `{"query": ""}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMemoryEndpoints(t *testing.T) {
	srv := NewServer(newTestEngine(t, &fakeGraph{}))

	resp, err := srv.app.Test(jsonRequest(http.MethodPost, "/memory",
		`{"kind": "conversation", "query": "gdpr consent", "response": "needs freely given consent", "importance": 0.6}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]string
	decodeBody(t, resp, &created)
	assert.NotEmpty(t, created["id"])

	resp, err = srv.app.Test(jsonRequest(http.MethodPost, "/memory", `{"kind": "telepathy"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/memory/search?q=gdpr+consent&threshold=0", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result memory.RetrievalResult
	decodeBody(t, resp, &result)
	assert.Equal(t, 1, result.TotalSearched)
}

func TestAnalyticsEndpoint(t *testing.T) {
	srv := NewServer(newTestEngine(t, &fakeGraph{}))

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/analytics/coverage", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result analytics.QueryResult
	decodeBody(t, resp, &result)
	assert.Equal(t, analytics.CategoryCoverage, result.Category)
	require.Len(t, result.Rows, 1)

	resp, err = srv.app.Test(httptest.NewRequest(http.MethodGet, "/analytics/horoscope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPruneEndpointValidation(t *testing.T) {
	srv := NewServer(newTestEngine(t, &fakeGraph{}))

	resp, err := srv.app.Test(jsonRequest(http.MethodPost, "/prune",
		`{"max_age_days": 0, "min_importance": 0.5}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = srv.app.Test(jsonRequest(http.MethodPost, "/prune",
		`{"max_age_days": 30, "min_importance": 0.5}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(newTestEngine(t, &fakeGraph{}))

	resp, err := srv.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health Health
	decodeBody(t, resp, &health)
	assert.True(t, health.GraphConnected)
}
