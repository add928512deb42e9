package admin_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/coreproxy/edgeproxy/internal/adminws"
	"github.com/coreproxy/edgeproxy/internal/admin"
	"github.com/coreproxy/edgeproxy/internal/proxy"
)

func discardLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestDeps(t *testing.T, backends []string, writeTokens []string) (*admin.Deps, func()) {
	t.Helper()

	upstreams := make([]*url.URL, 0, len(backends))
	for _, b := range backends {
		u, err := url.Parse(b)
		if err != nil {
			t.Fatalf("parsing backend %q: %v", b, err)
		}
		upstreams = append(upstreams, u)
	}

	cfg := &proxy.Config{
		Backends:        upstreams,
		BackendTimeout:  time.Second,
		CacheTTLSeconds: 60,
	}

	hub := adminws.NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	h := proxy.New(cfg, discardLogger(), hub.Events())

	deps := &admin.Deps{
		Log:         discardLogger(),
		Handler:     h,
		Hub:         hub,
		Backends:    backends,
		CORSOrigins: []string{"*"},
		WriteTokens: writeTokens,
		Version:     "test",
	}
	return deps, cancel
}

func TestStatus_ReportsBackendsAndCacheStats(t *testing.T) {
	deps, cancel := newTestDeps(t, []string{"http://backend-a.internal"}, nil)
	defer cancel()

	router := admin.NewRouter(context.Background(), deps)
	req := httptest.NewRequest(http.MethodGet, "/admin/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Version      string   `json:"version"`
		Backends     []string `json:"backends"`
		CacheEntries int      `json:"cache_entries"`
		CacheBytes   int64    `json:"cache_bytes"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body.Version != "test" {
		t.Errorf("expected version %q, got %q", "test", body.Version)
	}
	if len(body.Backends) != 1 || body.Backends[0] != "http://backend-a.internal" {
		t.Errorf("unexpected backends: %+v", body.Backends)
	}
	if body.CacheEntries != 0 {
		t.Errorf("expected empty cache, got %d entries", body.CacheEntries)
	}
}

func TestPurgeCache_RequiresAdminToken(t *testing.T) {
	deps, cancel := newTestDeps(t, []string{"http://backend-a.internal"}, []string{"secret-token"})
	defer cancel()

	router := admin.NewRouter(context.Background(), deps)
	req := httptest.NewRequest(http.MethodPost, "/admin/cache/purge", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}
}

func TestPurgeCache_SucceedsWithValidToken(t *testing.T) {
	deps, cancel := newTestDeps(t, []string{"http://backend-a.internal"}, []string{"secret-token"})
	defer cancel()

	router := admin.NewRouter(context.Background(), deps)
	req := httptest.NewRequest(http.MethodPost, "/admin/cache/purge", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"purged":true`) {
		t.Fatalf("expected purged:true in body, got %s", w.Body.String())
	}
}

func TestPurgeCache_ReportsDisabledWhenNoCache(t *testing.T) {
	deps, cancel := newTestDeps(t, []string{"http://backend-a.internal"}, []string{"secret-token"})
	defer cancel()

	backend, err := url.Parse("http://backend-a.internal")
	if err != nil {
		t.Fatalf("parsing backend: %v", err)
	}
	deps.Handler = proxy.New(&proxy.Config{
		Backends:        []*url.URL{backend},
		BackendTimeout:  time.Second,
		CacheTTLSeconds: 0, // caching disabled
	}, discardLogger(), nil)

	router := admin.NewRouter(context.Background(), deps)
	req := httptest.NewRequest(http.MethodPost, "/admin/cache/purge", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"purged":false`) {
		t.Fatalf("expected purged:false in body, got %s", w.Body.String())
	}
}

func TestEvents_StreamsBroadcastEvent(t *testing.T) {
	deps, cancel := newTestDeps(t, []string{"http://backend-a.internal"}, nil)
	defer cancel()

	router := admin.NewRouter(context.Background(), deps)
	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/admin/events"

	ctx, cancelConn := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelConn()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dialing admin events socket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Give the server goroutine time to register the client before we
	// publish, since registration happens asynchronously in Hub.Run.
	time.Sleep(100 * time.Millisecond)

	deps.Hub.Events() <- proxy.Event{Kind: "denied", Detail: "1.2.3.4", Time: time.Now()}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading broadcast event: %v", err)
	}

	var got struct {
		Kind   string `json:"kind"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decoding event: %v", err)
	}
	if got.Kind != "denied" || got.Detail != "1.2.3.4" {
		t.Fatalf("unexpected event payload: %+v", got)
	}
}
