package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/phillt/bernard-sub001/internal/memory"
	"github.com/phillt/bernard-sub001/internal/redact"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	g := newTestGateway(newFakeStore("a", "b"))
	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Facts != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMemoryAPI_RequiresAuth(t *testing.T) {
	t.Parallel()

	g := newTestGateway(newFakeStore("a"))
	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/memory/facts", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestMemoryAPI_NotMountedWithoutAuth(t *testing.T) {
	t.Parallel()

	g := New(Config{}, newFakeStore("a"), WithLogger(discardLogger()))
	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/memory/facts", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestMemoryAPI_ListFacts(t *testing.T) {
	t.Parallel()

	g := newTestGateway(newFakeStore("User likes Go", "User lives in Lyon"))
	rr := do(t, g.Handler(), http.MethodGet, "/api/memory/facts", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "embedding") {
		t.Error("embeddings leaked into listing")
	}

	var facts []factJSON
	if err := json.NewDecoder(rr.Body).Decode(&facts); err != nil {
		t.Fatal(err)
	}
	if len(facts) != 2 || facts[0].Fact != "User likes Go" || facts[0].ID != "id-a" {
		t.Errorf("facts = %+v", facts)
	}
}

func TestMemoryAPI_AddFacts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	g := newTestGateway(store)

	rr := do(t, g.Handler(), http.MethodPost, "/api/memory/facts", `{"facts":["x","y"],"domain":"work"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"added":2`) {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body)
	}
	if store.sources[0] != memory.SourceManual || store.entries[0].Domain != "work" {
		t.Errorf("stored %+v with sources %v", store.entries, store.sources)
	}

	for _, body := range []string{`{"facts":[]}`, `not json`, `{"facts":["a"],"extra":1}`} {
		if rr := do(t, g.Handler(), http.MethodPost, "/api/memory/facts", body); rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestMemoryAPI_DeleteFact(t *testing.T) {
	t.Parallel()

	store := newFakeStore("a", "b")
	g := newTestGateway(store)

	if rr := do(t, g.Handler(), http.MethodDelete, "/api/memory/facts/id-a", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if store.Count() != 1 {
		t.Errorf("count = %d, want 1", store.Count())
	}
	if rr := do(t, g.Handler(), http.MethodDelete, "/api/memory/facts/id-a", ""); rr.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rr.Code)
	}
}

func TestMemoryAPI_ClearAndCount(t *testing.T) {
	t.Parallel()

	store := newFakeStore("a", "b", "c")
	g := newTestGateway(store)

	if rr := do(t, g.Handler(), http.MethodGet, "/api/memory/count", ""); !strings.Contains(rr.Body.String(), `"count":3`) {
		t.Errorf("count body = %s", rr.Body)
	}
	rr := do(t, g.Handler(), http.MethodDelete, "/api/memory/facts", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"removed":3`) {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body)
	}
	if store.Count() != 0 {
		t.Errorf("count = %d after clear", store.Count())
	}
}

func TestMemoryAPI_Search(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.results = []memory.SearchResult{{Fact: "User likes Go", Similarity: 0.9}}
	g := newTestGateway(store)

	rr := do(t, g.Handler(), http.MethodPost, "/api/memory/search", `{"query":"language"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var results []memory.SearchResult
	if err := json.NewDecoder(rr.Body).Decode(&results); err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || store.queries[0] != "language" {
		t.Errorf("results = %+v queries = %v", results, store.queries)
	}

	store.results = nil
	if rr := do(t, g.Handler(), http.MethodPost, "/api/memory/search", `{"query":"none"}`); strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty search body = %q, want []", rr.Body)
	}
	if rr := do(t, g.Handler(), http.MethodPost, "/api/memory/search", `{"query":"  "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("blank query status = %d, want 400", rr.Code)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := memory.WritePending(dir, memory.PendingExtraction{Transcript: "User: hi"}); err != nil {
		t.Fatal(err)
	}
	g := newTestGateway(newFakeStore("a"), WithPendingDir(dir))

	rr := do(t, g.Handler(), http.MethodGet, "/status", "")
	var resp StatusResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Facts != 1 || resp.Pending != 1 {
		t.Errorf("resp = %+v", resp)
	}
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestTranscriptWebhook(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	g := New(Config{WebhookSecret: "hook-secret"}, newFakeStore(),
		WithLogger(discardLogger()), WithPendingDir(dir))
	h := g.Handler()

	body := `{"transcript":"User: I use vim","provider":"anthropic","model":"claude-haiku-4-5"}`
	post := func(body, sig string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/"+TranscriptSource, strings.NewReader(body))
		if sig != "" {
			req.Header.Set("X-Signature-256", sig)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := post(body, "sha256=bad"); code != http.StatusUnauthorized {
		t.Errorf("bad signature status = %d, want 401", code)
	}
	if code := post(`{"transcript":""}`, sign(`{"transcript":""}`, "hook-secret")); code != http.StatusBadRequest {
		t.Errorf("empty transcript status = %d, want 400", code)
	}
	if code := post(body, sign(body, "hook-secret")); code != http.StatusOK {
		t.Fatalf("valid webhook status = %d", code)
	}

	paths, err := memory.ListPending(dir)
	if err != nil || len(paths) != 1 {
		t.Fatalf("pending = %v, %v", paths, err)
	}
	p, err := memory.ReadPending(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	if p.Transcript != "User: I use vim" || p.Model != "claude-haiku-4-5" {
		t.Errorf("pending = %+v", p)
	}
}

func TestTranscriptWebhook_RedactsSecrets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	g := New(Config{WebhookSecret: "hook-secret"}, newFakeStore(),
		WithLogger(discardLogger()), WithPendingDir(dir), WithRedactor(redact.New("my-db-password")))

	body := `{"transcript":"User: the password is my-db-password and key sk-ant-REDACTED"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+TranscriptSource, strings.NewReader(body))
	req.Header.Set("X-Signature-256", sign(body, "hook-secret"))
	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	paths, _ := memory.ListPending(dir)
	if len(paths) != 1 {
		t.Fatalf("pending = %v", paths)
	}
	p, err := memory.ReadPending(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	want := "User: the password is " + redact.Placeholder + " and key " + redact.Placeholder
	if p.Transcript != want {
		t.Errorf("transcript = %q, want %q", p.Transcript, want)
	}
}

func TestWebhook_UnknownSource(t *testing.T) {
	t.Parallel()

	g := newTestGateway(newFakeStore())
	rr := httptest.NewRecorder()
	g.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/github", strings.NewReader("{}")))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "no handler registered") {
		t.Errorf("status = %d body = %s", rr.Code, rr.Body)
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	g := newTestGateway(newFakeStore("a"), WithPrometheus(reg, reg))
	h := g.Handler()

	do(t, h, http.MethodGet, "/health", "")
	do(t, h, http.MethodGet, "/health", "")
	do(t, h, http.MethodDelete, "/api/memory/facts/missing", "")

	if got := testutil.ToFloat64(g.metrics.requests.WithLabelValues("GET", "/health", "200")); got != 2 {
		t.Errorf("/health count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(g.metrics.requests.WithLabelValues("DELETE", "/api/memory/facts/{id}", "404")); got != 1 {
		t.Errorf("delete 404 count = %v, want 1", got)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "bernard_gateway_requests_total") {
		t.Error("/metrics does not expose gateway metrics")
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	g := New(Config{Bind: "127.0.0.1:0"}, newFakeStore(), WithLogger(discardLogger()))
	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := g.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestStart_InvalidBind(t *testing.T) {
	t.Parallel()

	g := New(Config{Bind: "not-an-address"}, newFakeStore(), WithLogger(discardLogger()))
	if err := g.Start(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
