package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"leadharvest/internal/domain/scrapejob"
)

// Recorder owns the scraping-side Prometheus instruments.
type Recorder struct {
	jobsTotal    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	activeJobs   *prometheus.GaugeVec
	resultsTotal *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraping_jobs_total",
			Help: "Finished scraping jobs by source and final status.",
		}, []string{"source", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraping_job_duration_seconds",
			Help:    "Wall-clock duration of scraping jobs.",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"source"}),
		activeJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scraping_jobs_active",
			Help: "Scraping jobs currently running.",
		}, []string{"source"}),
		resultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraping_results_total",
			Help: "Scraped results processed, by source.",
		}, []string{"source"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraping_errors_total",
			Help: "Per-result processing errors, by source.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(r.jobsTotal, r.jobDuration, r.activeJobs, r.resultsTotal, r.errorsTotal)
	}
	return r
}

func (r *Recorder) JobStarted(source string) {
	if r == nil {
		return
	}
	r.activeJobs.WithLabelValues(source).Inc()
}

func (r *Recorder) JobFinished(source string) {
	if r == nil {
		return
	}
	r.activeJobs.WithLabelValues(source).Dec()
}

// RecordJobMetrics captures the final counters for a terminal job.
func (r *Recorder) RecordJobMetrics(job *scrapejob.Job) {
	if r == nil || job == nil {
		return
	}
	r.jobsTotal.WithLabelValues(job.Source, job.Status).Inc()
	if job.DurationSeconds > 0 {
		r.jobDuration.WithLabelValues(job.Source).Observe(job.DurationSeconds)
	}
	if job.ResultsCount > 0 {
		r.resultsTotal.WithLabelValues(job.Source).Add(float64(job.ResultsCount))
	}
	if job.ErrorsCount > 0 {
		r.errorsTotal.WithLabelValues(job.Source).Add(float64(job.ErrorsCount))
	}
}
