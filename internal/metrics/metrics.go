package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_pricelist_generate_total",
			Help: "Total number of pricelist generations per registrar",
		},
		[]string{"registrar"},
	)

	GenerateErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_pricelist_generate_errors_total",
			Help: "Total number of failed pricelist generations per registrar",
		},
		[]string{"registrar"},
	)

	GenerateDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registrar_pricelist_generate_duration_seconds",
			Help:    "Pricelist generation duration in seconds per registrar",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"registrar"},
	)

	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_pricelist_cache_hits_total",
			Help: "Snapshot cache hits per registrar",
		},
		[]string{"registrar"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_pricelist_cache_misses_total",
			Help: "Snapshot cache misses per registrar",
		},
		[]string{"registrar"},
	)

	PricelistTlds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registrar_pricelist_tlds",
			Help: "Number of TLDs in the latest generated pricelist per registrar",
		},
		[]string{"registrar"},
	)

	UnifiedEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registrar_pricelist_unified_entries",
			Help: "Number of TLD entries in the latest unified table",
		},
	)
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_pricelist_requests_total",
			Help: "Total number of API requests per endpoint",
		},
		[]string{"path"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_pricelist_request_errors_total",
			Help: "Total number of failed API requests per endpoint and status",
		},
		[]string{"path", "status"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registrar_pricelist_request_duration_seconds",
			Help:    "API request duration in seconds per endpoint",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

var (
	DBPoolTotalConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registrar_pricelist_db_pool_total_conns",
			Help: "Total number of connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registrar_pricelist_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolAcquiredConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registrar_pricelist_db_pool_acquired_conns",
			Help: "Currently acquired (in-use) connections per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, total, idle, acquired float64) {
	DBPoolTotalConns.WithLabelValues(driver).Set(total)
	DBPoolIdleConns.WithLabelValues(driver).Set(idle)
	DBPoolAcquiredConns.WithLabelValues(driver).Set(acquired)
}

var (
	JobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registrar_pricelist_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	JobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registrar_pricelist_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	JobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrar_pricelist_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	JobLastDurationSeconds.WithLabelValues(job).Set(time.Since(startedAt).Seconds())
	JobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		JobFailuresTotal.WithLabelValues(job).Inc()
	}
}
