package routing_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/km-arc/go-ioc/framework/routing"
)

// ── helpers ──────────────────────────────────────────────────────────────────

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func do(t *testing.T, router http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// ── Routes ───────────────────────────────────────────────────────────────────

func TestRouter_Get(t *testing.T) {
	r := routing.New(nil)
	r.Get("/hello", okHandler)

	rr := do(t, r, http.MethodGet, "/hello")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	rr = do(t, r, http.MethodPost, "/hello")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_Method(t *testing.T) {
	r := routing.New(nil)
	r.Method(http.MethodHead, "/health", okHandler)

	rr := do(t, r, http.MethodHead, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouter_NotFound(t *testing.T) {
	r := routing.New(nil)
	rr := do(t, r, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	rr = do(t, r, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRouter_Param(t *testing.T) {
	r := routing.New(nil)
	var got string
	r.Get("/services/{name}", func(w http.ResponseWriter, req *http.Request) {
		got = routing.Param(req, "name")
		w.WriteHeader(http.StatusOK)
	})

	do(t, r, http.MethodGet, "/services/db")
	assert.Equal(t, "db", got)
}

func TestRouter_Prefix(t *testing.T) {
	r := routing.New(nil)
	r.Prefix("/api/v1", func(api *routing.Router) {
		api.Get("/services", okHandler)
	})

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/api/v1/services").Code)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodGet, "/services").Code)
}

func TestRouter_Group_Middleware(t *testing.T) {
	r := routing.New(nil)
	var hits int
	r.Group(func(g *routing.Router) {
		g.Middleware(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				hits++
				next.ServeHTTP(w, req)
			})
		})
		g.Get("/guarded", okHandler)
	})
	r.Get("/open", okHandler)

	do(t, r, http.MethodGet, "/guarded")
	do(t, r, http.MethodGet, "/open")
	assert.Equal(t, 1, hits)
}

func TestRouter_RecoversPanics(t *testing.T) {
	r := routing.New(nil)
	r.Get("/panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rr := do(t, r, http.MethodGet, "/panic")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRouter_RequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := routing.New(zap.New(core))
	r.Get("/hello", okHandler)

	do(t, r.Handler(), http.MethodGet, "/hello")

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "GET", fields["method"])
	assert.Equal(t, "/hello", fields["path"])
	assert.EqualValues(t, http.StatusOK, fields["status"])
	assert.NotEmpty(t, fields["request_id"])
}
