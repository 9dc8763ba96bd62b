package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Jobs records maintenance job runs.
type Jobs struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewJobs registers the maintenance job metrics on the provided registerer.
func NewJobs(reg prometheus.Registerer) *Jobs {
	if reg == nil {
		return &Jobs{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maintenance_job_duration_seconds",
		Help:    "Duration of maintenance jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_job_runs_total",
		Help: "Maintenance job runs by result.",
	}, []string{"job", "result"})
	reg.MustRegister(duration, runs)
	return &Jobs{duration: duration, runs: runs}
}

// ObserveJob records one run of job.
func (j *Jobs) ObserveJob(job string, duration time.Duration, err error) {
	if j == nil || j.duration == nil {
		return
	}
	name := normalizeLabel(job)
	j.duration.WithLabelValues(name).Observe(duration.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	j.runs.WithLabelValues(name, result).Inc()
}
