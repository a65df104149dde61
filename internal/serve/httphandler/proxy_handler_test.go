package httphandler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certiform/credential-gateway/internal/gateway"
)

func newProxyFixture(t *testing.T, gatewayHandler http.HandlerFunc) *chi.Mux {
	t.Helper()

	server := httptest.NewServer(gatewayHandler)
	t.Cleanup(server.Close)

	gatewayClient, err := gateway.NewClient(gateway.ClientOptions{
		BaseURL: server.URL,
		APIKey:  "test-api-key",
	})
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Handle("/api/*", &GatewayProxyHandler{GatewayClient: gatewayClient})
	return router
}

func TestProxyForwardsRequestAndBody(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	router := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Write([]byte(`{"ok":true}`))
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/courses", strings.NewReader(`{"title":"Intro"}`)))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/api/courses", gotPath)
	assert.JSONEq(t, `{"title":"Intro"}`, gotBody)
	assert.JSONEq(t, `{"ok":true}`, rr.Body.String())
}

func TestProxyPreservesQueryString(t *testing.T) {
	var gotQuery string
	router := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/courses?page=2&limit=10", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "page=2&limit=10", gotQuery)
}

func TestProxyMapsUpstreamNotFound(t *testing.T) {
	router := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/courses/missing", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestProxyMapsUpstreamFailureToBadGateway(t *testing.T) {
	router := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/courses", nil))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "upstream gateway request failed")
}

func TestProxyCachesRepeatedReads(t *testing.T) {
	var hits int
	router := newProxyFixture(t, func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"id":"course-1"}`))
	})

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/courses/course-1", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	assert.Equal(t, 1, hits, "repeated reads must be served from the request cache")
}
