package metrics

import (
	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
)

type MockMetricsService struct {
	mock.Mock
}

var _ MetricsService = (*MockMetricsService)(nil)

func (m *MockMetricsService) GetRegistry() *prometheus.Registry {
	args := m.Called()
	return args.Get(0).(*prometheus.Registry)
}

func (m *MockMetricsService) RegisterPoolMetrics(name string, pool pond.Pool) {
	m.Called(name, pool)
}

func (m *MockMetricsService) IncGatewayRequest(method string, statusCode int) {
	m.Called(method, statusCode)
}

func (m *MockMetricsService) ObserveGatewayRequestDuration(method string, duration float64) {
	m.Called(method, duration)
}

func (m *MockMetricsService) IncGatewayRequestError(method, errorType string) {
	m.Called(method, errorType)
}

func (m *MockMetricsService) IncCacheHit() {
	m.Called()
}

func (m *MockMetricsService) IncCacheMiss() {
	m.Called()
}

func (m *MockMetricsService) IncCacheEviction(reason string) {
	m.Called(reason)
}

func (m *MockMetricsService) IncTrackerTransport(transport string) {
	m.Called(transport)
}

func (m *MockMetricsService) IncTrackerFallback() {
	m.Called()
}

func (m *MockMetricsService) IncTerminalStatus(state string) {
	m.Called(state)
}

func (m *MockMetricsService) SetActiveWatchers(count int) {
	m.Called(count)
}

func (m *MockMetricsService) IncNumRequests(endpoint, method string, statusCode int) {
	m.Called(endpoint, method, statusCode)
}

func (m *MockMetricsService) ObserveRequestDuration(endpoint, method string, duration float64) {
	m.Called(endpoint, method, duration)
}
