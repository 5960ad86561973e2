package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Token metrics
	TokensIssuedTotal     *prometheus.CounterVec
	TokenValidationsTotal *prometheus.CounterVec

	// Remote validation cache metrics
	AuthCacheHitsTotal   *prometheus.CounterVec
	AuthCacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge

	// Notification metrics
	NotificationsCreatedTotal *prometheus.CounterVec
	NotificationFanoutSize    prometheus.Histogram
	EmailsSentTotal           *prometheus.CounterVec

	// Content metrics
	DownloadsExpiredTotal prometheus.Counter
	LessonViewsTotal      prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gurulk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gurulk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gurulk_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Token metrics
		TokensIssuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gurulk_tokens_issued_total",
				Help: "Total number of tokens issued",
			},
			[]string{"role"},
		),
		TokenValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gurulk_token_validations_total",
				Help: "Total number of token validations by outcome",
			},
			[]string{"outcome"},
		),

		// Remote validation cache metrics
		AuthCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gurulk_auth_cache_hits_total",
				Help: "Total number of validation cache hits",
			},
			[]string{"tier"},
		),
		AuthCacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gurulk_auth_cache_misses_total",
				Help: "Total number of validation cache misses",
			},
			[]string{"tier"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gurulk_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gurulk_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		// Notification metrics
		NotificationsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gurulk_notifications_created_total",
				Help: "Total number of notifications created",
			},
			[]string{"type"},
		),
		NotificationFanoutSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gurulk_notification_fanout_size",
				Help:    "Number of recipients per fanout request",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gurulk_emails_sent_total",
				Help: "Total number of email deliveries by status",
			},
			[]string{"status"},
		),

		// Content metrics
		DownloadsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gurulk_downloads_expired_total",
				Help: "Total number of download records expired by the sweeper",
			},
		),
		LessonViewsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gurulk_lesson_views_total",
				Help: "Total number of lesson views recorded",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.TokensIssuedTotal,
		m.TokenValidationsTotal,
		m.AuthCacheHitsTotal,
		m.AuthCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.NotificationsCreatedTotal,
		m.NotificationFanoutSize,
		m.EmailsSentTotal,
		m.DownloadsExpiredTotal,
		m.LessonViewsTotal,
	)

	return m
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

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler returns the handler serving the metrics endpoint
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
