package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fakes "github.com/leapstack-labs/graphask/internal/testutil"

	"github.com/leapstack-labs/graphask/internal/metrics"
	"github.com/leapstack-labs/graphask/pkg/core"
	"github.com/leapstack-labs/graphask/pkg/executor"
	"github.com/leapstack-labs/graphask/pkg/generator"
	"github.com/leapstack-labs/graphask/pkg/graphschema"
	"github.com/leapstack-labs/graphask/pkg/translate"
)

const topGunQuery = `MATCH (a:Actor)-[:ACTED_IN]->(m:Movie {name:"Top Gun"}) RETURN a.name AS actor`

type fixture struct {
	server  *Server
	cache   *graphschema.Cache
	metrics *metrics.Collector
}

func newFixture(t *testing.T, model *fakes.ScriptedModel, store *fakes.FakeStore) *fixture {
	t.Helper()
	logger := fakes.NewTestLogger(t)
	collector := metrics.New()
	cache := graphschema.NewCache(graphschema.Config{
		Introspector: store,
		OnRefresh:    collector.SchemaRefreshed,
		Logger:       logger,
	})
	orch := translate.New(translate.Config{
		Cache:     cache,
		Generator: generator.New(generator.Config{Model: model, Logger: logger}),
		Executor:  executor.New(executor.Config{Runner: store, Timeout: time.Second, Logger: logger}),
		Backoff:   time.Millisecond,
		Observer:  collector,
		Logger:    logger,
	})
	srv := New(Config{
		Translator: orch,
		Schema:     cache,
		Store:      store,
		Metrics:    collector,
		Logger:     logger,
	})
	return &fixture{server: srv, cache: cache, metrics: collector}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestQuery_Success(t *testing.T) {
	model := &fakes.ScriptedModel{Replies: []fakes.Reply{{Text: topGunQuery}}}
	store := &fakes.FakeStore{Replies: []fakes.StoreReply{{Result: fakes.TopGunActors()}}}
	f := newFixture(t, model, store)

	rec, body := f.do(t, http.MethodPost, "/api/query", `{"query":"List all actors in Top Gun"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", body["status"])

	resp, ok := body["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, topGunQuery, resp["query"])
	assert.Equal(t, []any{"actor"}, resp["columns"])
	assert.EqualValues(t, 4, resp["row_count"])
	assert.EqualValues(t, 1, resp["attempts"])
	assert.Equal(t, false, resp["truncated"])
	assert.NotEmpty(t, resp["trace_id"])

	rows, ok := resp["result"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 4)
	assert.Equal(t, map[string]any{"actor": "Tom Cruise"}, rows[0])
}

func TestQuery_EmptyResultIsArray(t *testing.T) {
	model := &fakes.ScriptedModel{Replies: []fakes.Reply{{Text: topGunQuery}}}
	f := newFixture(t, model, &fakes.FakeStore{})

	rec, _ := f.do(t, http.MethodPost, "/api/query", `{"query":"List all actors in Top Gun"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"result":[]`)
}

func TestQuery_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"invalid json", `{"query":`},
		{"missing field", `{}`},
		{"empty question", `{"query":""}`},
		{"blank question", `{"query":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakes.ScriptedModel{Replies: []fakes.Reply{{Text: topGunQuery}}}
			f := newFixture(t, model, &fakes.FakeStore{})

			rec, body := f.do(t, http.MethodPost, "/api/query", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]any{"status": "error", "error": "No query provided"}, body)
			assert.Zero(t, model.Calls(), "oracle must not be called")
		})
	}
}

func TestQuery_TranslationFailure(t *testing.T) {
	dangerous := `MATCH (n) DETACH DELETE n`
	model := &fakes.ScriptedModel{Replies: []fakes.Reply{{Text: dangerous}}}
	store := &fakes.FakeStore{}
	f := newFixture(t, model, store)

	rec, body := f.do(t, http.MethodPost, "/api/query", `{"query":"Delete everything"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, string(core.KindTranslation), body["kind"])
	assert.Equal(t, string(core.StageValidate), body["stage"])
	assert.Equal(t, string(core.ReasonDisallowed), body["reason"])
	assert.EqualValues(t, translate.DefaultMaxAttempts, body["attempts"])
	assert.Empty(t, store.Queries())
	assert.NotContains(t, rec.Body.String(), "previous attempt", "prompt text must not leak")
}

func TestQuery_StoreUnavailable(t *testing.T) {
	model := &fakes.ScriptedModel{Replies: []fakes.Reply{{Text: topGunQuery}}}
	store := &fakes.FakeStore{SchemaErr: core.ErrStoreUnavailable}
	f := newFixture(t, model, store)

	rec, body := f.do(t, http.MethodPost, "/api/query", `{"query":"List all actors in Top Gun"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(core.KindStoreUnavailable), body["kind"])
	assert.Equal(t, string(core.StageSchema), body["stage"])
}

func TestFailureBody(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"input", &core.Failure{Kind: core.KindInput, Stage: core.StageInput}, http.StatusBadRequest},
		{"translation", &core.Failure{Kind: core.KindTranslation, Stage: core.StageValidate, Reason: core.ReasonUnknownSchema, Fragment: "Film", Attempts: 3}, http.StatusInternalServerError},
		{"store", &core.Failure{Kind: core.KindStoreUnavailable, Stage: core.StageExecute, Attempts: 1}, http.StatusServiceUnavailable},
		{"oracle", &core.Failure{Kind: core.KindOracleUnavailable, Stage: core.StageGenerate, Attempts: 1}, http.StatusServiceUnavailable},
		{"canceled", &core.Failure{Kind: core.KindCanceled, Stage: core.StageGenerate}, http.StatusServiceUnavailable},
		{"untyped", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := failureBody(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, "error", body.Status)
			assert.NotEmpty(t, body.Error)
		})
	}

	_, body := failureBody(&core.Failure{Kind: core.KindTranslation, Stage: core.StageValidate, Reason: core.ReasonUnknownSchema, Fragment: "Film", Attempts: 3})
	assert.Equal(t, "Film", body.Fragment)
	assert.Equal(t, string(core.ReasonUnknownSchema), body.Reason)
	assert.Equal(t, 3, body.Attempts)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &fakes.ScriptedModel{}, &fakes.FakeStore{})
	rec, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	f = newFixture(t, &fakes.ScriptedModel{}, &fakes.FakeStore{SchemaErr: core.ErrStoreUnavailable})
	rec, body = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", body["status"])
}

func TestSchema(t *testing.T) {
	f := newFixture(t, &fakes.ScriptedModel{}, &fakes.FakeStore{})

	rec, _ := f.do(t, http.MethodGet, "/api/schema", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "nothing loaded yet")

	rec, body := f.do(t, http.MethodPost, "/api/schema/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := body["response"].(map[string]any)
	assert.EqualValues(t, 1, resp["version"])
	assert.Contains(t, resp["labels"], "Movie")

	rec, body = f.do(t, http.MethodGet, "/api/schema", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body["response"].(map[string]any)["labels"], "Actor")

	rec, _ = f.do(t, http.MethodGet, "/api/schema?format=text", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Movie")

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SchemaRefreshes.WithLabelValues("ok")))
}

func TestSchemaRefresh_Failure(t *testing.T) {
	f := newFixture(t, &fakes.ScriptedModel{}, &fakes.FakeStore{SchemaErr: core.ErrStoreUnavailable})
	rec, body := f.do(t, http.MethodPost, "/api/schema/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "error", body["status"])
}

func TestMetrics(t *testing.T) {
	model := &fakes.ScriptedModel{Replies: []fakes.Reply{{Text: topGunQuery}}}
	store := &fakes.FakeStore{Replies: []fakes.StoreReply{{Result: fakes.TopGunActors()}}}
	f := newFixture(t, model, store)

	rec, _ := f.do(t, http.MethodPost, "/api/query", `{"query":"List all actors in Top Gun"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HTTPRequests.WithLabelValues("POST", "/api/query", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Translations.WithLabelValues("success")))

	rec, _ = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `graphask_http_requests_total{method="POST",route="/api/query",status="200"} 1`)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, &fakes.ScriptedModel{}, &fakes.FakeStore{})
	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeListener_Shutdown(t *testing.T) {
	model := &fakes.ScriptedModel{Replies: []fakes.Reply{{Text: topGunQuery}}}
	store := &fakes.FakeStore{Replies: []fakes.StoreReply{{Result: fakes.TopGunActors()}}}
	f := newFixture(t, model, store)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.ServeListener(ctx, ln) }()

	resp, err := http.Post("http://"+ln.Addr().String()+"/api/query", "application/json",
		strings.NewReader(`{"query":"List all actors in Top Gun"}`))
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "Tom Cruise")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
