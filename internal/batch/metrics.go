package batch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custos_batch_runs_total",
		Help: "Batch runs by operation and outcome",
	}, []string{"operation", "outcome"})

	tenantFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custos_batch_tenant_failures_total",
		Help: "Tenant passes that rolled back, by operation",
	}, []string{"operation"})

	runDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "custos_batch_run_duration_seconds",
		Help:    "Wall-clock duration of batch runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	artifactsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custos_batch_artifacts_created_total",
		Help: "Work items created by batch runs, by operation",
	}, []string{"operation"})

	notificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "custos_batch_notifications_sent_total",
		Help: "Notifications emitted by batch runs, by operation",
	}, []string{"operation"})
)
