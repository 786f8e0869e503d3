package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videofetch_jobs_created_total",
		Help: "Total number of download jobs created",
	})

	JobsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videofetch_jobs_deduplicated_total",
		Help: "Total number of create calls answered with an existing live job",
	})

	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videofetch_jobs_completed_total",
		Help: "Total number of jobs that completed successfully",
	})

	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videofetch_jobs_failed_total",
		Help: "Total number of jobs that failed terminally",
	})

	JobsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videofetch_jobs_cancelled_total",
		Help: "Total number of jobs cancelled by users",
	})

	RetriesScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videofetch_retries_scheduled_total",
		Help: "Total number of automatic retry attempts scheduled",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "videofetch_download_duration_seconds",
		Help:    "Duration of successful downloads in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	BytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videofetch_download_bytes_total",
		Help: "Total bytes of finalized artifacts",
	})

	FilesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videofetch_files_evicted_total",
		Help: "Total number of files removed by the cleanup engine",
	})

	BytesReclaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "videofetch_bytes_reclaimed_total",
		Help: "Total bytes reclaimed by the cleanup engine",
	})
)
