package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeUpstream is a scriptable stand-in for the archive API.
type fakeUpstream struct {
	mu       sync.Mutex
	payloads map[string]string // request path -> JSON body
	status   map[string]int    // request path -> forced status
	calls    map[string]int
	srv      *httptest.Server
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		payloads: make(map[string]string),
		status:   make(map[string]int),
		calls:    make(map[string]int),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls[r.URL.Path]++
		if code, ok := f.status[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			w.Write([]byte(`{"status":"error","message":"upstream says no"}`))
			return
		}
		body, ok := f.payloads[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":"error","message":"not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeUpstream) set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[path] = body
}

func (f *fakeUpstream) fail(path string, code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[path] = code
}

func (f *fakeUpstream) callCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func newTestRouter(t *testing.T, upstream *fakeUpstream) (*gin.Engine, *Service) {
	t.Helper()
	cfg := DefaultServiceConfig()
	cfg.UpstreamURL = upstream.srv.URL
	cfg.WarmInMemory = true

	service, err := NewService(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { service.Close() })

	router := gin.New()
	router.Use(RequestID())
	handlers := NewHandlers(service, nil)
	router.GET("/health", handlers.Health)
	RegisterRoutes(router.Group("/v1"), handlers)
	return router, service
}

func performRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetEntity(t *testing.T) {
	t.Run("read-through returns payload", func(t *testing.T) {
		up := newFakeUpstream(t)
		up.set("/api/2/documents/doc-1", `{"id":"doc-1","title":"Annual Report"}`)
		router, _ := newTestRouter(t, up)

		w := performRequest(router, http.MethodGet, "/v1/documents/doc-1")
		assert.Equal(t, http.StatusOK, w.Code)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		assert.Equal(t, "doc-1", doc["id"])
		assert.Equal(t, "Annual Report", doc["title"])
	})

	t.Run("second read served from cache", func(t *testing.T) {
		up := newFakeUpstream(t)
		up.set("/api/2/entities/ent-1", `{"id":"ent-1","schema":"Person","name":"Jane"}`)
		router, _ := newTestRouter(t, up)

		w := performRequest(router, http.MethodGet, "/v1/entities/ent-1")
		require.Equal(t, http.StatusOK, w.Code)
		w = performRequest(router, http.MethodGet, "/v1/entities/ent-1")
		require.Equal(t, http.StatusOK, w.Code)

		assert.Equal(t, 1, up.callCount("/api/2/entities/ent-1"))
	})

	t.Run("invalid id rejected", func(t *testing.T) {
		up := newFakeUpstream(t)
		router, _ := newTestRouter(t, up)

		w := performRequest(router, http.MethodGet, "/v1/documents/doc%20one")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, 0, up.callCount("/api/2/documents/doc one"))
	})

	t.Run("unknown id maps to 404", func(t *testing.T) {
		up := newFakeUpstream(t)
		router, _ := newTestRouter(t, up)

		w := performRequest(router, http.MethodGet, "/v1/collections/nope")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not found")
	})

	t.Run("upstream failure maps to 502 with message", func(t *testing.T) {
		up := newFakeUpstream(t)
		up.fail("/api/2/documents/doc-err", http.StatusInternalServerError)
		router, _ := newTestRouter(t, up)

		w := performRequest(router, http.MethodGet, "/v1/documents/doc-err")
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "upstream says no")
	})

	t.Run("failed record is refetchable", func(t *testing.T) {
		up := newFakeUpstream(t)
		up.fail("/api/2/documents/doc-flaky", http.StatusInternalServerError)
		router, _ := newTestRouter(t, up)

		w := performRequest(router, http.MethodGet, "/v1/documents/doc-flaky")
		require.Equal(t, http.StatusBadGateway, w.Code)

		// The upstream recovers; the next read must retry rather than
		// serve the stale failure.
		up.mu.Lock()
		delete(up.status, "/api/2/documents/doc-flaky")
		up.mu.Unlock()
		up.set("/api/2/documents/doc-flaky", `{"id":"doc-flaky"}`)

		w = performRequest(router, http.MethodGet, "/v1/documents/doc-flaky")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 2, up.callCount("/api/2/documents/doc-flaky"))
	})
}

func TestGetState(t *testing.T) {
	up := newFakeUpstream(t)
	up.set("/api/2/documents/doc-1", `{"id":"doc-1"}`)
	router, _ := newTestRouter(t, up)

	t.Run("unseen id is not_requested and no fetch fires", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/v1/documents/doc-1/state")
		require.Equal(t, http.StatusOK, w.Code)

		var resp StateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not_requested", resp.State)
		assert.Equal(t, 0, up.callCount("/api/2/documents/doc-1"))
	})

	t.Run("loaded after a read", func(t *testing.T) {
		performRequest(router, http.MethodGet, "/v1/documents/doc-1")

		w := performRequest(router, http.MethodGet, "/v1/documents/doc-1/state")
		require.Equal(t, http.StatusOK, w.Code)

		var resp StateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "loaded", resp.State)
		assert.NotZero(t, resp.FetchedAtMilli)
		assert.Empty(t, resp.Error)
	})

	t.Run("failed carries the error", func(t *testing.T) {
		up.fail("/api/2/documents/doc-bad", http.StatusInternalServerError)
		performRequest(router, http.MethodGet, "/v1/documents/doc-bad")

		w := performRequest(router, http.MethodGet, "/v1/documents/doc-bad/state")
		var resp StateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "failed", resp.State)
		assert.Contains(t, resp.Error, "upstream says no")
	})
}

func TestRefresh(t *testing.T) {
	up := newFakeUpstream(t)
	up.set("/api/2/collections/col-1", `{"id":"col-1","label":"v1"}`)
	router, _ := newTestRouter(t, up)

	w := performRequest(router, http.MethodGet, "/v1/collections/col-1")
	require.Equal(t, http.StatusOK, w.Code)

	up.set("/api/2/collections/col-1", `{"id":"col-1","label":"v2"}`)

	// A plain read keeps serving the loaded record.
	w = performRequest(router, http.MethodGet, "/v1/collections/col-1")
	assert.Contains(t, w.Body.String(), "v1")

	// Refresh forces the round trip and replaces the payload.
	w = performRequest(router, http.MethodPost, "/v1/collections/col-1/refresh")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "v2")
	assert.Equal(t, 2, up.callCount("/api/2/collections/col-1"))

	w = performRequest(router, http.MethodGet, "/v1/collections/col-1")
	assert.Contains(t, w.Body.String(), "v2")
}

func TestStats(t *testing.T) {
	up := newFakeUpstream(t)
	up.set("/api/2/documents/doc-1", `{"id":"doc-1"}`)
	router, _ := newTestRouter(t, up)

	performRequest(router, http.MethodGet, "/v1/documents/doc-1")
	performRequest(router, http.MethodGet, "/v1/documents/doc-1")

	w := performRequest(router, http.MethodGet, "/v1/catalog/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Contains(t, resp.Stores, KindDocuments)
	require.Contains(t, resp.Stores, KindCollections)
	require.Contains(t, resp.Stores, KindEntities)

	docs := resp.Stores[KindDocuments]
	assert.Equal(t, 1, docs.Entries)
	assert.Equal(t, int64(1), docs.Fetches)
	assert.GreaterOrEqual(t, docs.Hits, int64(1))
}

func TestHealth(t *testing.T) {
	up := newFakeUpstream(t)
	router, _ := newTestRouter(t, up)

	w := performRequest(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRequestID(t *testing.T) {
	up := newFakeUpstream(t)
	router, _ := newTestRouter(t, up)

	t.Run("assigned when absent", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/health")
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("caller id kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "caller-7")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, "caller-7", w.Header().Get(RequestIDHeader))
	})
}

func TestWatch(t *testing.T) {
	up := newFakeUpstream(t)
	up.set("/api/2/documents/doc-w", `{"id":"doc-w"}`)
	router, _ := newTestRouter(t, up)

	srv := httptest.NewServer(router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/documents/doc-w/watch"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	readEvent := func() WatchEvent {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev WatchEvent
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}

	// First frame is the current state.
	ev := readEvent()
	assert.Equal(t, "doc-w", ev.ID)
	assert.Equal(t, "not_requested", ev.State)

	// A read elsewhere drives the transition stream.
	w := performRequest(router, http.MethodGet, "/v1/documents/doc-w")
	require.Equal(t, http.StatusOK, w.Code)

	ev = readEvent()
	assert.Equal(t, "fetching", ev.State)
	ev = readEvent()
	assert.Equal(t, "loaded", ev.State)
	assert.NotZero(t, ev.FetchedAtMilli)
}
