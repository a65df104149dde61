package metrics

import (
	"strconv"

	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"
)

type MetricsService interface {
	GetRegistry() *prometheus.Registry
	RegisterPoolMetrics(name string, pool pond.Pool)
	// Gateway client metrics
	IncGatewayRequest(method string, statusCode int)
	ObserveGatewayRequestDuration(method string, duration float64)
	IncGatewayRequestError(method, errorType string)
	// Request cache metrics
	IncCacheHit()
	IncCacheMiss()
	IncCacheEviction(reason string)
	// Confirmation tracking metrics
	IncTrackerTransport(transport string)
	IncTrackerFallback()
	IncTerminalStatus(state string)
	SetActiveWatchers(count int)
	// HTTP server metrics
	IncNumRequests(endpoint, method string, statusCode int)
	ObserveRequestDuration(endpoint, method string, duration float64)
}

type metricsService struct {
	registry *prometheus.Registry

	// Gateway client metrics
	gatewayRequestsTotal    *prometheus.CounterVec
	gatewayRequestsDuration *prometheus.SummaryVec
	gatewayRequestErrors    *prometheus.CounterVec

	// Request cache metrics
	cacheHitsTotal      prometheus.Counter
	cacheMissesTotal    prometheus.Counter
	cacheEvictionsTotal *prometheus.CounterVec

	// Confirmation tracking metrics
	trackerTransportsTotal *prometheus.CounterVec
	trackerFallbacksTotal  prometheus.Counter
	terminalStatusesTotal  *prometheus.CounterVec
	activeWatchers         prometheus.Gauge

	// HTTP server metrics
	numRequestsTotal *prometheus.CounterVec
	requestsDuration *prometheus.SummaryVec
}

var _ MetricsService = (*metricsService)(nil)

func NewMetricsService() MetricsService {
	m := &metricsService{
		registry: prometheus.NewRegistry(),
	}

	m.gatewayRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Total number of requests sent to the remote gateway",
		},
		[]string{"method", "status_code"},
	)
	m.gatewayRequestsDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "gateway_requests_duration_seconds",
			Help:       "Duration of gateway requests in seconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"method"},
	)
	m.gatewayRequestErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_request_errors_total",
			Help: "Total number of gateway request failures by error type",
		},
		[]string{"method", "error_type"},
	)

	m.cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "request_cache_hits_total",
			Help: "Total number of request cache hits",
		},
	)
	m.cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "request_cache_misses_total",
			Help: "Total number of request cache misses",
		},
	)
	m.cacheEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_cache_evictions_total",
			Help: "Total number of request cache evictions by reason",
		},
		[]string{"reason"},
	)

	m.trackerTransportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_transports_total",
			Help: "Confirmation tracking sessions by transport used",
		},
		[]string{"transport"},
	)
	m.trackerFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_fallbacks_total",
			Help: "Number of times streaming failed and tracking fell back to polling",
		},
	)
	m.terminalStatusesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_terminal_statuses_total",
			Help: "Terminal confirmation statuses observed, by state",
		},
		[]string{"state"},
	)
	m.activeWatchers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_registry_active_entries",
			Help: "Number of transactions currently tracked by the watcher registry",
		},
	)

	m.numRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "num_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"endpoint", "method", "status_code"},
	)
	m.requestsDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "requests_duration_seconds",
			Help:       "Duration of HTTP requests in seconds",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"endpoint", "method"},
	)

	m.registry.MustRegister(
		m.gatewayRequestsTotal,
		m.gatewayRequestsDuration,
		m.gatewayRequestErrors,
		m.cacheHitsTotal,
		m.cacheMissesTotal,
		m.cacheEvictionsTotal,
		m.trackerTransportsTotal,
		m.trackerFallbacksTotal,
		m.terminalStatusesTotal,
		m.activeWatchers,
		m.numRequestsTotal,
		m.requestsDuration,
	)

	return m
}

func (m *metricsService) GetRegistry() *prometheus.Registry {
	return m.registry
}

func (m *metricsService) RegisterPoolMetrics(name string, pool pond.Pool) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "pool_workers_running",
			Help:        "Number of running worker goroutines",
			ConstLabels: prometheus.Labels{"pool": name},
		},
		func() float64 {
			return float64(pool.RunningWorkers())
		},
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "pool_tasks_submitted_total",
			Help:        "Number of tasks submitted",
			ConstLabels: prometheus.Labels{"pool": name},
		},
		func() float64 {
			return float64(pool.SubmittedTasks())
		},
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "pool_tasks_waiting",
			Help:        "Number of tasks currently waiting in the queue",
			ConstLabels: prometheus.Labels{"pool": name},
		},
		func() float64 {
			return float64(pool.WaitingTasks())
		},
	))

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name:        "pool_tasks_failed_total",
			Help:        "Number of tasks that completed with panic",
			ConstLabels: prometheus.Labels{"pool": name},
		},
		func() float64 {
			return float64(pool.FailedTasks())
		},
	))
}

func (m *metricsService) IncGatewayRequest(method string, statusCode int) {
	m.gatewayRequestsTotal.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
}

func (m *metricsService) ObserveGatewayRequestDuration(method string, duration float64) {
	m.gatewayRequestsDuration.WithLabelValues(method).Observe(duration)
}

func (m *metricsService) IncGatewayRequestError(method, errorType string) {
	m.gatewayRequestErrors.WithLabelValues(method, errorType).Inc()
}

func (m *metricsService) IncCacheHit() {
	m.cacheHitsTotal.Inc()
}

func (m *metricsService) IncCacheMiss() {
	m.cacheMissesTotal.Inc()
}

func (m *metricsService) IncCacheEviction(reason string) {
	m.cacheEvictionsTotal.WithLabelValues(reason).Inc()
}

func (m *metricsService) IncTrackerTransport(transport string) {
	m.trackerTransportsTotal.WithLabelValues(transport).Inc()
}

func (m *metricsService) IncTrackerFallback() {
	m.trackerFallbacksTotal.Inc()
}

func (m *metricsService) IncTerminalStatus(state string) {
	m.terminalStatusesTotal.WithLabelValues(state).Inc()
}

func (m *metricsService) SetActiveWatchers(count int) {
	m.activeWatchers.Set(float64(count))
}

func (m *metricsService) IncNumRequests(endpoint, method string, statusCode int) {
	m.numRequestsTotal.WithLabelValues(endpoint, method, strconv.Itoa(statusCode)).Inc()
}

func (m *metricsService) ObserveRequestDuration(endpoint, method string, duration float64) {
	m.requestsDuration.WithLabelValues(endpoint, method).Observe(duration)
}
