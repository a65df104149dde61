package serve

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certiform/credential-gateway/internal/apptracker"
)

func testConfigs() Configs {
	return Configs{
		Port:            8001,
		GatewayBaseURL:  "http://localhost:8000",
		GatewayAPIKey:   "test-api-key",
		WalletSignerURL: "http://localhost:7100",
		AppTracker:      &apptracker.MockAppTracker{},
	}
}

func TestInitHandlerDeps(t *testing.T) {
	deps, err := initHandlerDeps(testConfigs())
	require.NoError(t, err)
	t.Cleanup(deps.Registry.Stop)

	assert.NotNil(t, deps.GatewayClient)
	assert.NotNil(t, deps.Executor)
	assert.NotNil(t, deps.Registry)
	assert.NotNil(t, deps.MetricsService)
}

func TestInitHandlerDepsMissingGatewayConfig(t *testing.T) {
	cfg := testConfigs()
	cfg.GatewayBaseURL = ""

	_, err := initHandlerDeps(cfg)
	require.ErrorContains(t, err, "instantiating gateway client")
}

func TestHandlerRoutes(t *testing.T) {
	deps, err := initHandlerDeps(testConfigs())
	require.NoError(t, err)
	t.Cleanup(deps.Registry.Stop)
	mux := handler(deps)

	t.Run("health", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("unknown route renders json 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error": "The resource at the url requested was not found."}`, rr.Body.String())
	})

	t.Run("method not allowed renders json 405", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/health", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}
