package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the video client.
type Metrics struct {
	registry               *prometheus.Registry
	requestsTotal          prometheus.Counter
	errorsTotal            prometheus.Counter
	outboundRequestsTotal  *prometheus.CounterVec
	uploadsTotal           *prometheus.CounterVec
	uploadedBytesTotal     prometheus.Counter
	playbackSessionsTotal  *prometheus.CounterVec
	segmentsAppendedTotal  prometheus.Counter
	activeUploads          prometheus.Gauge
	activePlaybackSessions prometheus.Gauge
}

// New creates and registers Prometheus metrics for the client.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidclient_diag_requests_total",
		Help: "Total number of requests served by the diagnostics endpoint",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidclient_diag_errors_total",
		Help: "Total number of diagnostics responses with error status (4xx or 5xx)",
	})
	outboundRequestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidclient_http_requests_total",
		Help: "Outbound HTTP requests by method and status code (0 for transport errors)",
	}, []string{"method", "code"})
	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidclient_uploads_total",
		Help: "Finished uploads by result",
	}, []string{"result"})
	uploadedBytesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidclient_uploaded_bytes_total",
		Help: "File bytes written to upload requests",
	})
	playbackSessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vidclient_playback_sessions_total",
		Help: "Playback sessions by delivery mode and outcome",
	}, []string{"mode", "result"})
	segmentsAppendedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vidclient_segments_appended_total",
		Help: "Media segments appended by the segmented engine",
	})
	activeUploads := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vidclient_active_uploads",
		Help: "Uploads currently in flight",
	})
	activePlaybackSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vidclient_active_playback_sessions",
		Help: "Playback sessions currently attached to an element",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		outboundRequestsTotal,
		uploadsTotal,
		uploadedBytesTotal,
		playbackSessionsTotal,
		segmentsAppendedTotal,
		activeUploads,
		activePlaybackSessions,
	)

	return &Metrics{
		registry:               registry,
		requestsTotal:          requestsTotal,
		errorsTotal:            errorsTotal,
		outboundRequestsTotal:  outboundRequestsTotal,
		uploadsTotal:           uploadsTotal,
		uploadedBytesTotal:     uploadedBytesTotal,
		playbackSessionsTotal:  playbackSessionsTotal,
		segmentsAppendedTotal:  segmentsAppendedTotal,
		activeUploads:          activeUploads,
		activePlaybackSessions: activePlaybackSessions,
	}
}

// IncRequests increments the diagnostics request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the diagnostics error counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// ObserveOutbound records one outbound request. code is 0 when the transport failed.
func (m *Metrics) ObserveOutbound(method string, code int) {
	m.outboundRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ObserveUpload records a finished upload and the file bytes it wrote.
func (m *Metrics) ObserveUpload(result string, bytes int64) {
	m.uploadsTotal.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.uploadedBytesTotal.Add(float64(bytes))
	}
}

// ObservePlayback records the outcome of a playback session.
func (m *Metrics) ObservePlayback(mode, result string) {
	m.playbackSessionsTotal.WithLabelValues(mode, result).Inc()
}

// IncSegmentsAppended increments the appended segments counter.
func (m *Metrics) IncSegmentsAppended() {
	m.segmentsAppendedTotal.Inc()
}

// SetActiveUploads sets the in-flight uploads gauge.
func (m *Metrics) SetActiveUploads(n int) {
	m.activeUploads.Set(float64(n))
}

// SetActivePlaybackSessions sets the active playback sessions gauge.
func (m *Metrics) SetActivePlaybackSessions(n int) {
	m.activePlaybackSessions.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
