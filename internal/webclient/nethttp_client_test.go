package webclient_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raysh454/hunter/internal/logging"
	"github.com/raysh454/hunter/internal/webclient"
)

func newClient(t *testing.T, cfg webclient.Config, hc *http.Client) *webclient.NetHTTPClient {
	t.Helper()
	client, err := webclient.NewNetHTTPClient(cfg, logging.NopLogger{}, hc)
	if err != nil {
		t.Fatalf("NewNetHTTPClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// ─── Do: real HTTP round-trip via httptest ──────────────────────────────

func TestNetHTTPClient_Do_ReturnsStatusHeadersBody(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "DENY")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "brewing")
	}))
	defer ts.Close()

	client := newClient(t, webclient.Config{}, ts.Client())
	resp, err := client.Get(context.Background(), ts.URL+"/pot")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusTeapot || resp.OK() {
		t.Errorf("unexpected status %d (OK=%v)", resp.StatusCode, resp.OK())
	}
	if string(resp.Body) != "brewing" {
		t.Errorf("unexpected body %q", resp.Body)
	}
	if resp.Headers.Get("X-Frame-Options") != "DENY" {
		t.Errorf("header not returned")
	}
}

func TestNetHTTPClient_Do_SetsUserAgentUnlessProvided(t *testing.T) {
	t.Parallel()
	var seen []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.UserAgent())
	}))
	defer ts.Close()

	client := newClient(t, webclient.Config{UserAgent: "hunter-test"}, ts.Client())
	if _, err := client.Get(context.Background(), ts.URL); err != nil {
		t.Fatalf("Get: %v", err)
	}
	h := http.Header{}
	h.Set("User-Agent", "custom")
	if _, err := client.Do(context.Background(), &webclient.Request{URL: ts.URL, Headers: h}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(seen) != 2 || seen[0] != "hunter-test" || seen[1] != "custom" {
		t.Fatalf("unexpected user agents %v", seen)
	}
}

func TestDoJSON_SendsJSONBody(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing content type")
		}
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["content"]})
	}))
	defer ts.Close()

	client := newClient(t, webclient.Config{}, ts.Client())
	resp, err := webclient.DoJSON(context.Background(), client, http.MethodPost, ts.URL, nil, map[string]string{"content": "hi"})
	if err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	var out map[string]string
	if err := resp.DecodeJSON(&out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out["echo"] != "hi" {
		t.Fatalf("unexpected echo %v", out)
	}
}

func TestNetHTTPClient_RateLimit(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))
	defer ts.Close()

	client := newClient(t, webclient.Config{RateLimit: 20, Burst: 1}, ts.Client())
	start := time.Now()
	for range 3 {
		if _, err := client.Get(context.Background(), ts.URL); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Fatalf("3 requests at 20 rps finished in %v", elapsed)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 hits, got %d", hits.Load())
	}
}

func TestNetHTTPClient_Do_NilRequest_ReturnsError(t *testing.T) {
	t.Parallel()
	client := newClient(t, webclient.Config{}, nil)
	if _, err := client.Do(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil request")
	}
}

func TestNetHTTPClient_Do_ContextCanceled_ReturnsError(t *testing.T) {
	t.Parallel()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	client := newClient(t, webclient.Config{}, ts.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := client.Get(ctx, ts.URL); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

// ─── factory ────────────────────────────────────────────────────────────

func TestNewWebClient_DefaultsToNetHTTP(t *testing.T) {
	t.Parallel()
	wc, err := webclient.NewWebClient(webclient.Config{}, logging.NopLogger{})
	if err != nil {
		t.Fatalf("NewWebClient: %v", err)
	}
	defer wc.Close()
	if _, ok := wc.(*webclient.NetHTTPClient); !ok {
		t.Fatalf("expected *NetHTTPClient, got %T", wc)
	}
}

func TestNewWebClient_UnknownBackend(t *testing.T) {
	t.Parallel()
	_, err := webclient.NewWebClient(webclient.Config{Client: "gopher"}, logging.NopLogger{})
	if err == nil || !strings.Contains(err.Error(), "unknown webclient backend") {
		t.Fatalf("expected unknown backend error, got %v", err)
	}
}

func TestNewAPIClient_IgnoresRenderingBackend(t *testing.T) {
	t.Parallel()
	cfg := webclient.DefaultConfig()
	cfg.Client = webclient.ClientChromedp
	wc, err := webclient.NewAPIClient(cfg, logging.NopLogger{})
	if err != nil {
		t.Fatalf("NewAPIClient: %v", err)
	}
	defer wc.Close()
	if got := len(webclient.Backends()); got != 2 {
		t.Fatalf("expected 2 backends, got %d", got)
	}
}

func TestChromedpClient_RejectsNonGET(t *testing.T) {
	t.Parallel()
	client, err := webclient.NewChromedpClient(webclient.DefaultConfig(), logging.NopLogger{})
	if err != nil {
		t.Skipf("chromedp unavailable: %v", err)
	}
	defer client.Close()

	_, err = client.Do(context.Background(), &webclient.Request{Method: http.MethodPost, URL: "http://example.com"})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected method not supported, got %v", err)
	}
}
