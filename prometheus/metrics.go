package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	// Login counters
	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saas_login_total",
			Help: "Total number of tenant-user login attempts",
		},
	)

	SuperAdminLoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saas_super_admin_login_total",
			Help: "Total number of super-admin login attempts",
		},
	)

	// Registration counter
	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "saas_register_total",
			Help: "Total number of tenant registrations",
		},
	)

	// Resource operation counter
	ResourceOperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saas_resource_operations_total",
			Help: "Total number of resource operations",
		},
		[]string{"resource", "operation"}, // resource: tenant|user|project|task
	)

	// Cross-tenant denials surfaced as not-found responses
	ScopeDenialCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saas_scope_denials_total",
			Help: "Total number of requests denied by tenant scoping",
		},
		[]string{"resource"},
	)

	// Entitlement rejections
	LimitExceededCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saas_limit_exceeded_total",
			Help: "Total number of creations rejected by plan limits",
		},
		[]string{"resource"},
	)

	// HTTP request counter by endpoint and status
	HTTPRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saas_http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Error counters
	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saas_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"}, // type can be "invalid_token", "missing_token", "db_error" etc.
	)
)

// Histogram metrics
var (
	// Request duration
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saas_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	// Database operation duration
	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "saas_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // operation can be "query", "insert", "update", "delete"
	)
)

// Gauge metrics
var (
	// Logins minus logouts. Tokens that expire without a logout are not
	// observable here, so this is a session-activity signal, not an exact
	// count of valid tokens.
	ActiveTokensGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "saas_active_tokens",
			Help: "Logins minus logouts; tokens expiring without logout are not tracked",
		},
	)

	// System info
	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "saas_info",
			Help: "Information about the platform service",
		},
		[]string{"version"},
	)
)

func init() {
	// Register counters
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(SuperAdminLoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(ResourceOperationCounter)
	prometheus.MustRegister(ScopeDenialCounter)
	prometheus.MustRegister(LimitExceededCounter)
	prometheus.MustRegister(HTTPRequestCounter)
	prometheus.MustRegister(AuthErrorCounter)

	// Register histograms
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(DBOperationDuration)

	// Register gauges
	prometheus.MustRegister(ActiveTokensGauge)
	prometheus.MustRegister(InfoGauge)

	// Set initial service info
	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// RecordAuthError increments the auth error counter for the given type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordResourceOperation increments the operation counter for a resource
func RecordResourceOperation(resource, operation string) {
	ResourceOperationCounter.With(prometheus.Labels{"resource": resource, "operation": operation}).Inc()
}

// RecordScopeDenial increments the scoping denial counter for a resource
func RecordScopeDenial(resource string) {
	ScopeDenialCounter.With(prometheus.Labels{"resource": resource}).Inc()
}

// RecordLimitExceeded increments the entitlement rejection counter
func RecordLimitExceeded(resource string) {
	LimitExceededCounter.With(prometheus.Labels{"resource": resource}).Inc()
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures database operation durations
func TrackDBOperation(operation string) func(time.Time) {
	startTime := time.Now()
	return func(endTime time.Time) {
		duration := time.Since(startTime).Seconds()
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(duration)
	}
}

// MetricsMiddleware creates a middleware function that captures metrics for each request
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			// Execute the request handler
			err := next(c)

			// Record request duration and count
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(c.Response().Status)
			endpoint := c.Path()
			method := c.Request().Method

			RequestDuration.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Observe(duration)

			HTTPRequestCounter.With(prometheus.Labels{
				"endpoint": endpoint,
				"method":   method,
				"status":   status,
			}).Inc()

			return err
		}
	}
}
