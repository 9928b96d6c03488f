// Package stats exposes Prometheus instrumentation for the dashboard.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cfud_build_info",
		Help: "Build information of the usage dashboard",
	}, []string{"version", "commit", "date"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfud_cache_lookups_total", Help: "Cache lookups by family and result (hit, miss, stale, version, error).",
	}, []string{"family", "result"})
	CacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfud_cache_writes_total", Help: "Cache writes by family and result.",
	}, []string{"family", "result"})

	SourceQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfud_source_queries_total", Help: "Analytics API queries by kind and result.",
	}, []string{"kind", "result"})
	SourceQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cfud_source_query_duration_seconds",
		Help:    "Analytics API query latency.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"kind"})

	AccountFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cfud_account_fetch_failures_total", Help: "Per-account fetches dropped from an aggregate.",
	})
	ZoneDNSFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cfud_zone_dns_failures_total", Help: "Per-zone DNS queries that failed and were counted as zero.",
	})

	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cfud_phase_duration_seconds",
		Help:    "Time to build a progressive response phase.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"phase"})
	PreWarmRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfud_prewarm_runs_total", Help: "Pre-warm runs by result.",
	}, []string{"result"})
	PreWarmLastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cfud_prewarm_last_success_timestamp_seconds", Help: "Unix time of the last successful pre-warm.",
	})

	AlertsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfud_alerts_triggered_total", Help: "Breached metrics found by threshold checks.",
	}, []string{"metric"})
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cfud_notifications_total", Help: "Outgoing notifications by sink and result.",
	}, []string{"sink", "result"})
)
