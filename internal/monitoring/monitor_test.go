package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMonitor_GetMetrics(t *testing.T) {
	m := NewMonitor()
	m.RecordMetric("test_metric", 42)

	metrics := m.GetMetrics()

	value, exists := metrics["test_metric"]
	if !exists {
		t.Fatalf("Expected 'test_metric' to be present in metrics, but it was not")
	}
	if value != 42 {
		t.Errorf("Expected 'test_metric' to be 42, but got %v", value)
	}

	if _, exists := metrics["uptime_seconds"]; !exists {
		t.Errorf("Expected 'uptime_seconds' to be present in metrics, but it was not")
	}
}

func TestMonitor_CountersFeedSnapshotAndPrometheus(t *testing.T) {
	m := NewMonitor()

	m.OrderSubmitted("authoritative")
	m.OrderSubmitted("authoritative")
	m.OrderSubmitted("fallback")
	m.PaymentProcessed("cash", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ordersSubmitted.WithLabelValues("authoritative")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ordersSubmitted.WithLabelValues("fallback")))

	value, ok := m.GetMetric("orders_authoritative")
	assert.True(t, ok)
	assert.Equal(t, 2, value)

	value, ok = m.GetMetric("payments_cash_success")
	assert.True(t, ok)
	assert.Equal(t, 1, value)
}

func TestMonitor_CheckoutFinished(t *testing.T) {
	m := NewMonitor()
	m.CheckoutFinished("paid", 1500*time.Millisecond)

	value, ok := m.GetMetric("last_checkout_result")
	assert.True(t, ok)
	assert.Equal(t, "paid", value)
}

func TestMonitor_Reset(t *testing.T) {
	m := NewMonitor()
	m.RecordMetric("test_metric", 42)

	m.Reset()

	metrics := m.GetMetrics()
	_, exists := metrics["test_metric"]
	assert.False(t, exists)
	_, exists = metrics["uptime_seconds"]
	assert.True(t, exists)
}

func TestMonitor_NilIsSafe(t *testing.T) {
	var m *Monitor
	m.OrderSubmitted("fallback")
	m.TokenFetched("endpoint")
	m.RecordMetric("x", 1)
}

func TestMonitor_Handler(t *testing.T) {
	m := NewMonitor()
	m.TokenFetched("endpoint")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bistro_csrf_fetches_total")
}
