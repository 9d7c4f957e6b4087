package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records scheduled job outcomes and lock contention.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	success     *prometheus.CounterVec
	failure     *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	lockSkipped prometheus.Counter
}

// NewCronJobMetrics registers the cron metrics on reg. A nil registerer yields
// a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cron_job_duration_seconds",
			Help:    "Duration of cron jobs in seconds.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"job"}),
		success: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_success_total",
			Help: "Successful cron job executions.",
		}, []string{"job"}),
		failure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cron_job_failure_total",
			Help: "Failed cron job executions.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		lockSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cron_cycle_lock_skipped_total",
			Help: "Cycles skipped because another replica held the cron lock.",
		}),
	}
	reg.MustRegister(m.duration, m.success, m.failure, m.lastSuccess, m.lockSkipped)
	return m
}

// Record stores one finished run; a nil err counts as success.
func (c *CronJobMetrics) Record(job string, duration time.Duration, err error) {
	if c == nil || c.duration == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		c.failure.WithLabelValues(job).Inc()
		return
	}
	c.success.WithLabelValues(job).Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// IncLockSkipped counts a cycle that found the lock taken.
func (c *CronJobMetrics) IncLockSkipped() {
	if c == nil || c.lockSkipped == nil {
		return
	}
	c.lockSkipped.Inc()
}

func normalizeLabel(job string) string {
	if job == "" {
		return "unknown"
	}
	return job
}
