// Package metrics exports backtest, API and scheduler telemetry to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wonny/eln-backtest/internal/backtest"
)

// Recorder implements backtest.Observer using Prometheus
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	safety        *prometheus.GaugeVec
	losses        *prometheus.GaugeVec
	stuck         *prometheus.GaugeVec
	httpDuration  *prometheus.HistogramVec
	jobRuns       *prometheus.CounterVec
}

var _ backtest.Observer = (*Recorder)(nil)

// New creates a recorder registered on the default registry
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder registered on reg
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eln_backtest_runs_total",
				Help: "Total number of completed ticker backtests",
			},
			[]string{"cached"},
		),
		failuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eln_backtest_failures_total",
				Help: "Total number of failed ticker backtests",
			},
			[]string{"kind"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eln_backtest_duration_seconds",
				Help:    "Duration of ticker backtests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"cached"},
		),
		safety: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eln_backtest_safety_probability",
				Help: "Safety probability in percent of the latest run of a ticker",
			},
			[]string{"ticker"},
		),
		losses: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eln_backtest_loss_periods",
				Help: "Loss periods of the latest run of a ticker",
			},
			[]string{"ticker"},
		),
		stuck: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "eln_backtest_stuck_periods",
				Help: "Unrecovered loss periods of the latest run of a ticker",
			},
			[]string{"ticker"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eln_http_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		jobRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eln_scheduler_job_runs_total",
				Help: "Total number of scheduler job executions",
			},
			[]string{"job", "status"},
		),
	}
}

// ObserveRun records a completed backtest
func (r *Recorder) ObserveRun(ticker string, cached bool, elapsed time.Duration, stats backtest.Stats) {
	label := strconv.FormatBool(cached)
	r.runsTotal.WithLabelValues(label).Inc()
	r.runDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	r.safety.WithLabelValues(ticker).Set(stats.SafetyProbability)
	r.losses.WithLabelValues(ticker).Set(float64(stats.LossCount))
	r.stuck.WithLabelValues(ticker).Set(float64(stats.StuckCount))
}

// ObserveFailure records a failed backtest
func (r *Recorder) ObserveFailure(_ string, kind string) {
	r.failuresTotal.WithLabelValues(kind).Inc()
}

// ObserveRequest records an API request
func (r *Recorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// ObserveJob records a scheduler job execution
func (r *Recorder) ObserveJob(job string, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	r.jobRuns.WithLabelValues(job, status).Inc()
}
