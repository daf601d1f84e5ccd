package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Capture results used as the "result" label.
const (
	ResultLogged    = "logged"
	ResultPreview   = "preview"
	ResultOCRFailed = "ocr_failed"
	ResultInvalid   = "invalid"
	ResultDuplicate = "duplicate"
	ResultStoreFail = "store_failed"
	ResultBusy      = "busy"
	ResultBadInput  = "bad_input"
)

type Metrics struct {
	registry *prometheus.Registry

	captures      *prometheus.CounterVec
	ocrDuration   prometheus.Histogram
	entries       *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpInFlight  prometheus.Gauge
	httpDurations *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		captures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartpark_captures_total",
				Help: "Capture pipeline runs by result.",
			},
			[]string{"result"},
		),
		ocrDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartpark_ocr_duration_seconds",
			Help:    "Time spent in the OCR engine per capture.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		entries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartpark_entries_total",
				Help: "Parking entries appended to the log.",
			},
			[]string{"entry_type"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "smartpark_http_requests_total",
				Help: "A counter for requests to the API.",
			},
			[]string{"code", "method", "path"},
		),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "smartpark_http_in_flight_requests",
			Help: "Number of currently processed requests.",
		}),
		// partitioned by path; buckets follow the expected capture latency.
		httpDurations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "smartpark_http_request_duration_seconds",
				Help:    "A histogram of latencies for requests.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"path", "method"},
		),
	}
	m.registry.MustRegister(
		m.captures, m.ocrDuration, m.entries,
		m.httpRequests, m.httpInFlight, m.httpDurations,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// The observe helpers accept a nil receiver so callers can run without metrics.

func (m *Metrics) CaptureResult(result string) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(result).Inc()
}

func (m *Metrics) OCRDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ocrDuration.Observe(d.Seconds())
}

func (m *Metrics) EntryLogged(entryType string) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(entryType).Inc()
}

// GinMiddleware records request count, latency and in-flight requests.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.httpRequests.WithLabelValues(strconv.Itoa(c.Writer.Status()), c.Request.Method, path).Inc()
		m.httpDurations.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
