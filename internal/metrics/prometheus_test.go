package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/wonny/eln-backtest/internal/backtest"
)

func TestRecorder_ObserveRun(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	stats := backtest.Stats{SafetyProbability: 92.5, LossCount: 3, StuckCount: 1}
	r.ObserveRun("AAPL", false, 20*time.Millisecond, stats)
	r.ObserveRun("AAPL", true, time.Millisecond, stats)
	r.ObserveRun("MSFT", false, time.Millisecond, backtest.Stats{SafetyProbability: 100})

	assert.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("true")))
	assert.Equal(t, 92.5, testutil.ToFloat64(r.safety.WithLabelValues("AAPL")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.losses.WithLabelValues("AAPL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stuck.WithLabelValues("AAPL")))
	assert.Equal(t, 100.0, testutil.ToFloat64(r.safety.WithLabelValues("MSFT")))
}

func TestRecorder_Failures(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.ObserveFailure("AAPL", "insufficient_history")
	r.ObserveFailure("MSFT", "insufficient_history")
	r.ObserveFailure("X", "unknown_ticker")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.failuresTotal.WithLabelValues("insufficient_history")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.failuresTotal.WithLabelValues("unknown_ticker")))
}

func TestRecorder_Jobs(t *testing.T) {
	r := NewWithRegistry(prometheus.NewRegistry())

	r.ObserveJob("plan_refresh", nil)
	r.ObserveJob("plan_refresh", errors.New("boom"))
	r.ObserveJob("plan_refresh", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.jobRuns.WithLabelValues("plan_refresh", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobRuns.WithLabelValues("plan_refresh", "failed")))
}

func TestRecorder_Requests(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.ObserveRequest("POST", "/api/backtest", 200, 5*time.Millisecond)
	r.ObserveRequest("POST", "/api/backtest", 422, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(r.httpDuration))
}
