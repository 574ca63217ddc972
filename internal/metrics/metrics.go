package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordWebhookEvent(outcome string)
	RecordEmail(status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordWebhookEvent(outcome string) {}
func (m *NoOpMetrics) RecordEmail(status string)         {}
func (m *NoOpMetrics) Handler() http.Handler             { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init initializes metrics (no-op for now, can be extended with Prometheus)
func Init() {
	// Keep the no-op backend until a metrics sink is chosen
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordWebhookEvent records the disposition of a webhook delivery
func RecordWebhookEvent(outcome string) {
	globalMetrics.RecordWebhookEvent(outcome)
}

// RecordEmail records a confirmation email attempt
func RecordEmail(status string) {
	globalMetrics.RecordEmail(status)
}
