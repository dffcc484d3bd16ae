package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordOnInjectedRegistry(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncConsentRecorded("marketing", true)
	m.IncConsentRecorded("marketing", false)
	m.IncConsentRecorded("marketing", false)
	m.ObserveCategoryRun("erase", "ok", 10*time.Millisecond)
	m.AddRetentionAffected("location", "erase", 3)
	m.AddRetentionAffected("location", "erase", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConsentRecorded.WithLabelValues("marketing", "true")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConsentRecorded.WithLabelValues("marketing", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CategoryRuns.WithLabelValues("erase", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RetentionAffected.WithLabelValues("location", "erase")))
}

func TestNewTwiceOnSeparateRegistriesDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncRequestCreated("ACCESS")
		m.ObserveRequestFinished("ACCESS", "COMPLETED", time.Second)
		m.SetQueueDepth(3)
		m.IncAuditDropped()
		m.IncRateLimited("api")
	})
}
