package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ErlanBelekov/points-rebuild/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFailed  = "failed"
)

// Run holds the collectors for one orchestrator run.
type Run struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	RetriesTotal *prometheus.CounterVec
	StageRounds  *prometheus.CounterVec
	LastSuccess  prometheus.Gauge
}

// NewRun creates the run collectors and registers them on reg.
func NewRun(reg prometheus.Registerer) *Run {
	m := &Run{
		CallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "points_rebuild",
			Name:      "calls_total",
			Help:      "Points API call attempts, by stage and outcome.",
		}, []string{"stage", "outcome"}),

		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "points_rebuild",
			Name:      "call_duration_seconds",
			Help:      "Duration of points API call attempts.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),

		RetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "points_rebuild",
			Name:      "retries_total",
			Help:      "Retries scheduled after a retriable failure.",
		}, []string{"stage"}),

		StageRounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "points_rebuild",
			Name:      "stage_rounds_total",
			Help:      "Successful rounds completed per stage.",
		}, []string{"stage"}),

		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "points_rebuild",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last fully successful run.",
		}),
	}

	reg.MustRegister(m.CallsTotal, m.CallDuration, m.RetriesTotal, m.StageRounds, m.LastSuccess)
	return m
}

// ObserveAttempt records one call attempt.
func (m *Run) ObserveAttempt(a domain.CallAttempt, outcome string) {
	stage := string(a.Stage)
	m.CallsTotal.WithLabelValues(stage, outcome).Inc()
	m.CallDuration.WithLabelValues(stage).Observe(a.Duration.Seconds())
	if outcome == OutcomeRetry {
		m.RetriesTotal.WithLabelValues(stage).Inc()
	}
}

func (m *Run) ObserveRound(stage domain.Stage) {
	m.StageRounds.WithLabelValues(string(stage)).Inc()
}

// Push sends everything gathered from g to a Prometheus Pushgateway.
func Push(ctx context.Context, url string, g prometheus.Gatherer, seasonID string) error {
	if seasonID == "" {
		seasonID = "default"
	}
	err := push.New(url, "points_rebuild").
		Gatherer(g).
		Grouping("season", seasonID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// HTTP holds the dev server request collectors.
type HTTP struct {
	RequestDuration *prometheus.HistogramVec
	RequestsTotal   *prometheus.CounterVec
}

func NewHTTP(reg prometheus.Registerer) *HTTP {
	m := &HTTP{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "points_devserver",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path", "status"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "points_devserver",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "path", "status"}),
	}
	reg.MustRegister(m.RequestDuration, m.RequestsTotal)
	return m
}

// Handler exposes g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
