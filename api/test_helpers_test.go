package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stellarlinkco/ab-eval/internal/catalog"
	"github.com/stellarlinkco/ab-eval/internal/config"
	"github.com/stellarlinkco/ab-eval/internal/dispatch"
	"github.com/stellarlinkco/ab-eval/internal/llm"
	"github.com/stellarlinkco/ab-eval/internal/sampling"
	"github.com/stellarlinkco/ab-eval/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProvider struct {
	CompleteFunc func(ctx context.Context, req *llm.Request) (*llm.Result, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req *llm.Request) (*llm.Result, error) {
	if p.CompleteFunc != nil {
		return p.CompleteFunc(ctx, req)
	}
	return &llm.Result{Text: "generated answer", Model: "fake-model", FinishReason: "stop"}, nil
}

type testEnv struct {
	server     *Server
	store      store.Store
	catalog    *catalog.Catalog
	dispatcher *dispatch.Dispatcher
	provider   *fakeProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("AB_EVAL_DISABLE_AUTH", "true")

	queries := []catalog.Query{
		{ID: 1, Text: "best pizza near downtown", Category: "local", Quality: "well-formed", IntentClarity: "high"},
		{ID: 2, Text: "weather", Category: "informational", Quality: "ambiguous", IntentClarity: "low"},
		{ID: 3, Text: "buy wireless headphones", Category: "transactional", Quality: "well-formed", IntentClarity: "high"},
		{ID: 4, Text: "open netflix", Category: "navigational", Quality: "well-formed", IntentClarity: "high"},
	}
	cat, err := catalog.New(queries)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), cat)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	provider := &fakeProvider{}
	d, err := dispatch.New(st, cat, provider, config.BatchConfig{Size: 10, RateLimitDelay: time.Nanosecond})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}

	sampler, err := sampling.New(cat, st, config.SamplingConfig{TargetSize: 2, MinResponses: 1})
	if err != nil {
		t.Fatalf("sampling.New: %v", err)
	}

	cfg := config.Default()
	srv, err := NewServer(cfg, cat, st, d, sampler)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	return &testEnv{
		server:     srv,
		store:      st,
		catalog:    cat,
		dispatcher: d,
		provider:   provider,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// answerBoth stores both platform responses for a query.
func (e *testEnv) answerBoth(t *testing.T, id int) {
	t.Helper()

	ctx := context.Background()
	if err := e.store.PutResponse(ctx, id, store.PlatformA, &store.Response{Text: "a", SearchUsed: true}); err != nil {
		t.Fatalf("PutResponse A %d: %v", id, err)
	}
	if err := e.store.PutResponse(ctx, id, store.PlatformB, &store.Response{Text: "b"}); err != nil {
		t.Fatalf("PutResponse B %d: %v", id, err)
	}
}

func (e *testEnv) waitBatch(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.dispatcher.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
