package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor collects checkout metrics. It exports prometheus series and keeps
// a plain snapshot of the latest values for the CLI. A nil *Monitor is valid
// and records nothing.
type Monitor struct {
	registry *prometheus.Registry

	ordersSubmitted   *prometheus.CounterVec
	payments          *prometheus.CounterVec
	csrfFetches       *prometheus.CounterVec
	sessionRefreshes  *prometheus.CounterVec
	checkoutDuration  *prometheus.HistogramVec
	statusTransitions *prometheus.CounterVec

	metrics      map[string]interface{}
	metricsMutex sync.RWMutex
	startTime    time.Time
}

// NewMonitor creates a new monitoring instance with its own registry
func NewMonitor() *Monitor {
	m := &Monitor{
		registry: prometheus.NewRegistry(),
		ordersSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistro_orders_submitted_total",
				Help: "Order creation attempts by how the order id was resolved",
			},
			[]string{"outcome"},
		),
		payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistro_payments_total",
				Help: "Payment attempts by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		csrfFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistro_csrf_fetches_total",
				Help: "Anti-forgery token acquisitions by source",
			},
			[]string{"source"},
		),
		sessionRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistro_session_refreshes_total",
				Help: "Session refresh attempts by result",
			},
			[]string{"result"},
		),
		checkoutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bistro_checkout_duration_seconds",
				Help:    "Time from order submission to payment result",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		statusTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bistro_status_transitions_total",
				Help: "Administrative order status changes by target status and result",
			},
			[]string{"status", "result"},
		),
		metrics:   make(map[string]interface{}),
		startTime: time.Now(),
	}

	m.registry.MustRegister(
		m.ordersSubmitted,
		m.payments,
		m.csrfFetches,
		m.sessionRefreshes,
		m.checkoutDuration,
		m.statusTransitions,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Monitor) OrderSubmitted(outcome string) {
	if m == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(outcome).Inc()
	m.increment("orders_" + outcome)
}

func (m *Monitor) PaymentProcessed(method, outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(method, outcome).Inc()
	m.increment("payments_" + method + "_" + outcome)
}

func (m *Monitor) TokenFetched(source string) {
	if m == nil {
		return
	}
	m.csrfFetches.WithLabelValues(source).Inc()
	m.increment("csrf_" + source)
}

func (m *Monitor) SessionRefreshed(result string) {
	if m == nil {
		return
	}
	m.sessionRefreshes.WithLabelValues(result).Inc()
	m.increment("session_refresh_" + result)
}

func (m *Monitor) CheckoutFinished(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.checkoutDuration.WithLabelValues(result).Observe(d.Seconds())
	m.RecordMetric("last_checkout_result", result)
	m.RecordMetric("last_checkout_seconds", d.Seconds())
}

func (m *Monitor) StatusTransition(status, result string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status, result).Inc()
	m.increment("transition_" + status + "_" + result)
}

// RecordMetric records a metric value
func (m *Monitor) RecordMetric(name string, value interface{}) {
	if m == nil {
		return
	}
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics[name] = value
}

func (m *Monitor) increment(name string) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	count, _ := m.metrics[name].(int)
	m.metrics[name] = count + 1
}

// GetMetric returns a specific metric value
func (m *Monitor) GetMetric(name string) (interface{}, bool) {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()
	value, exists := m.metrics[name]
	return value, exists
}

// GetMetrics returns all current metrics
func (m *Monitor) GetMetrics() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	// Create a copy to avoid concurrent map access
	metrics := make(map[string]interface{}, len(m.metrics))
	for k, v := range m.metrics {
		metrics[k] = v
	}

	metrics["uptime_seconds"] = time.Since(m.startTime).Seconds()

	return metrics
}

// Reset clears the snapshot; prometheus counters are cumulative and stay
func (m *Monitor) Reset() {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.metrics = make(map[string]interface{})
}
