package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// Every Record/Observe method is safe to call on a nil *Metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec

	// Receiver metrics
	DeliveriesTotal            *prometheus.CounterVec
	DeliveriesInFlight         prometheus.Gauge
	DeliveryProcessingDuration prometheus.Histogram
	EventsTotal                *prometheus.CounterVec
	ErrorsTotal                *prometheus.CounterVec

	// Registration metrics
	RegistrationsTotal *prometheus.CounterVec
	Registered         prometheus.Gauge

	// REST client metrics
	ClientRequestsTotal   *prometheus.CounterVec
	ClientRequestDuration *prometheus.HistogramVec
	ClientRetriesTotal    prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeal_http_requests_total",
				Help: "Total number of inbound HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zeal_http_request_duration_seconds",
				Help:    "Inbound HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zeal_http_request_size_bytes",
				Help:    "Inbound HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Receiver metrics
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeal_webhook_deliveries_total",
				Help: "Inbound webhook deliveries by outcome",
			},
			[]string{"status"},
		),
		DeliveriesInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "zeal_webhook_deliveries_in_flight",
				Help: "Accepted deliveries whose events are still being dispatched",
			},
		),
		DeliveryProcessingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zeal_webhook_delivery_processing_seconds",
				Help:    "Time spent dispatching one delivery to callbacks",
				Buckets: prometheus.DefBuckets,
			},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeal_webhook_events_total",
				Help: "Decoded webhook events by type",
			},
			[]string{"type"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeal_webhook_errors_total",
				Help: "Failures routed through the subscription error channel by kind",
			},
			[]string{"kind"},
		),

		// Registration metrics
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeal_webhook_registrations_total",
				Help: "Remote webhook registration calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		Registered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "zeal_webhook_registered",
				Help: "1 while a remote webhook registration is held",
			},
		),

		// REST client metrics
		ClientRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeal_client_requests_total",
				Help: "Outbound REST requests by method and status",
			},
			[]string{"method", "status"},
		),
		ClientRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zeal_client_request_duration_seconds",
				Help:    "Outbound REST request duration in seconds, including retries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ClientRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "zeal_client_retries_total",
				Help: "Outbound REST request retries",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.DeliveriesTotal,
		m.DeliveriesInFlight,
		m.DeliveryProcessingDuration,
		m.EventsTotal,
		m.ErrorsTotal,
		m.RegistrationsTotal,
		m.Registered,
		m.ClientRequestsTotal,
		m.ClientRequestDuration,
		m.ClientRetriesTotal,
	)

	return m
}

// RecordDelivery counts an inbound delivery by outcome
// (accepted, duplicate, invalid_signature, malformed)
func (m *Metrics) RecordDelivery(status string) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(status).Inc()
}

// DeliveryStarted marks a delivery as in flight
func (m *Metrics) DeliveryStarted() {
	if m == nil {
		return
	}
	m.DeliveriesInFlight.Inc()
}

// DeliveryFinished clears the in-flight mark and records processing time
func (m *Metrics) DeliveryFinished(duration time.Duration) {
	if m == nil {
		return
	}
	m.DeliveriesInFlight.Dec()
	m.DeliveryProcessingDuration.Observe(duration.Seconds())
}

// RecordEvent counts a decoded event
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// RecordError counts an error-channel report
func (m *Metrics) RecordError(kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordRegistration counts a create or delete call against the registrar
func (m *Metrics) RecordRegistration(operation string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.RegistrationsTotal.WithLabelValues(operation, result).Inc()
}

// SetRegistered reports whether a registration is currently held
func (m *Metrics) SetRegistered(registered bool) {
	if m == nil {
		return
	}
	if registered {
		m.Registered.Set(1)
	} else {
		m.Registered.Set(0)
	}
}

// RecordClientRequest counts a completed outbound request.
// status is 0 when no response was received.
func (m *Metrics) RecordClientRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.ClientRequestsTotal.WithLabelValues(method, label).Inc()
	m.ClientRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordClientRetry counts one retry of an outbound request
func (m *Metrics) RecordClientRetry() {
	if m == nil {
		return
	}
	m.ClientRetriesTotal.Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// A nil metrics value returns next unchanged.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
