package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	attemptsStarted    prometheus.Counter
	attemptsFinished   prometheus.Counter
	cooldownRejections prometheus.Counter
	storeFaults        *prometheus.CounterVec
	notifierChunks     *prometheus.CounterVec
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "survey_attempts_started_total",
			Help: "Attempts that passed validation and the cooldown gate",
		}),
		attemptsFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "survey_attempts_finished_total",
			Help: "Attempts finalized for the first time",
		}),
		cooldownRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "survey_cooldown_rejections_total",
			Help: "Starts rejected because the nickname is cooling down",
		}),
		storeFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_record_store_faults_total",
			Help: "User record store failures by operation",
		}, []string{"op"}),
		notifierChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "survey_notifier_chunks_total",
			Help: "Notification chunks by delivery status",
		}, []string{"status"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.attemptsStarted,
		m.attemptsFinished,
		m.cooldownRejections,
		m.storeFaults,
		m.notifierChunks,
		m.requests,
		m.requestDuration,
	)
	return m
}

func (m *Metrics) AttemptStarted() {
	if m != nil {
		m.attemptsStarted.Inc()
	}
}

func (m *Metrics) AttemptFinished() {
	if m != nil {
		m.attemptsFinished.Inc()
	}
}

func (m *Metrics) CooldownRejected() {
	if m != nil {
		m.cooldownRejections.Inc()
	}
}

func (m *Metrics) StoreFault(op string) {
	if m != nil {
		m.storeFaults.WithLabelValues(op).Inc()
	}
}

// ChunkDelivered counts one notification chunk as "delivered" or "failed".
func (m *Metrics) ChunkDelivered(ok bool) {
	if m == nil {
		return
	}
	status := "delivered"
	if !ok {
		status = "failed"
	}
	m.notifierChunks.WithLabelValues(status).Inc()
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
