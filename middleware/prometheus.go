package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "code"},
	)

	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "code"},
	)

	requestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "path"},
	)

	requestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_size_bytes",
			Help:    "Size of HTTP requests in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path", "code"},
	)

	responseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path", "code"},
	)

	errorRate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "error_rate_total",
			Help: "Total number of HTTP errors",
		},
		[]string{"method", "path", "code"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_login_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_token_refreshes_total",
			Help: "Refresh token exchanges by outcome",
		},
		[]string{"outcome"},
	)

	profileUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_updates_total",
			Help: "Profile updates by outcome",
		},
		[]string{"outcome"},
	)

	photoUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_photo_uploads_total",
			Help: "Profile photo uploads by outcome",
		},
		[]string{"outcome"},
	)

	profilesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "profile_profiles_created_total",
			Help: "Profiles created, at identity creation or lazily on first read",
		},
	)
)

// Outcome labels for the business counters.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeUnauthorized = "unauthorized"
	OutcomeDisabled     = "disabled"
	OutcomeNotFound     = "not_found"
	OutcomeRateLimited  = "rate_limited"
	OutcomeError        = "error"
)

// RecordLogin counts a login attempt.
func RecordLogin(outcome string) { loginAttempts.WithLabelValues(outcome).Inc() }

// RecordTokenRefresh counts a refresh token exchange.
func RecordTokenRefresh(outcome string) { tokenRefreshes.WithLabelValues(outcome).Inc() }

// RecordProfileUpdate counts a profile update.
func RecordProfileUpdate(outcome string) { profileUpdates.WithLabelValues(outcome).Inc() }

// RecordPhotoUpload counts a photo upload.
func RecordPhotoUpload(outcome string) { photoUploads.WithLabelValues(outcome).Inc() }

// RecordProfileCreated counts a newly created profile row.
func RecordProfileCreated() { profilesCreated.Inc() }

// PrometheusMiddleware records RED metrics per route. Probe and metrics
// endpoints are not counted.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isInfraPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		method := c.Request.Method

		// route template, not the raw path: media files and 404 probes stay one series
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		inFlight := requestsInFlight.WithLabelValues(method, path)
		inFlight.Inc()
		defer inFlight.Dec()

		requestSize.WithLabelValues(method, path, "").Observe(float64(c.Request.ContentLength))

		c.Next()

		status := c.Writer.Status()
		code := strconv.Itoa(status)
		requestDuration.WithLabelValues(method, path, code).Observe(time.Since(start).Seconds())
		requestTotal.WithLabelValues(method, path, code).Inc()
		responseSize.WithLabelValues(method, path, code).Observe(float64(c.Writer.Size()))
		if status >= 500 {
			errorRate.WithLabelValues(method, path, code).Inc()
		}
	}
}
