// Package metrics exposes Prometheus collectors for the CAT engine. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	sessionsCreated  prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	answers          *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	estimatorIters   prometheus.Histogram
	estimatorMisses  prometheus.Counter
	selectionInfo    prometheus.Histogram
	selectionRandom  prometheus.Counter
	llmRequests      *prometheus.CounterVec
	llmTokens        *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New creates collectors on a private registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cat_sessions_created_total",
			Help: "CAT sessions created.",
		}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_sessions_finished_total",
			Help: "CAT sessions reaching a terminal status.",
		}, []string{"status"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_answers_total",
			Help: "Accepted answers by correctness.",
		}, []string{"correct"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_answers_rejected_total",
			Help: "Rejected answer submissions by reason.",
		}, []string{"reason"}),
		estimatorIters: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cat_estimator_iterations",
			Help:    "Newton-Raphson iterations per ability estimate.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 50},
		}),
		estimatorMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cat_estimator_nonconverged_total",
			Help: "Ability estimates that hit the iteration cap.",
		}),
		selectionInfo: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cat_selection_information",
			Help:    "Fisher information of selected items at the current ability.",
			Buckets: []float64{0.05, 0.1, 0.2, 0.4, 0.8, 1.6, 3.2},
		}),
		selectionRandom: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cat_selection_random_total",
			Help: "Selections made by the uniform fallback.",
		}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_llm_requests_total",
			Help: "LLM provider calls by purpose and outcome.",
		}, []string{"purpose", "success"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cat_llm_tokens_total",
			Help: "LLM tokens consumed by direction.",
		}, []string{"direction"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsCreated,
		m.sessionsFinished,
		m.answers,
		m.rejected,
		m.estimatorIters,
		m.estimatorMisses,
		m.selectionInfo,
		m.selectionRandom,
		m.llmRequests,
		m.llmTokens,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

func (m *Metrics) SessionFinished(status string) {
	if m == nil {
		return
	}
	m.sessionsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) AnswerAccepted(correct bool) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func (m *Metrics) AnswerRejected(reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveEstimate(iterations int, converged bool) {
	if m == nil {
		return
	}
	m.estimatorIters.Observe(float64(iterations))
	if !converged {
		m.estimatorMisses.Inc()
	}
}

func (m *Metrics) ObserveSelection(information float64, random bool) {
	if m == nil {
		return
	}
	m.selectionInfo.Observe(information)
	if random {
		m.selectionRandom.Inc()
	}
}

func (m *Metrics) ObserveHTTP(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ObserveLLM(purpose string, success bool, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(purpose, strconv.FormatBool(success)).Inc()
	m.llmTokens.WithLabelValues("input").Add(float64(inputTokens))
	m.llmTokens.WithLabelValues("output").Add(float64(outputTokens))
}
