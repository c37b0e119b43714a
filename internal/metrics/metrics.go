package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpulse_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskpulse_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// JobsEnqueued counts jobs accepted by the notify enqueuer
	JobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpulse_jobs_enqueued_total",
			Help: "Number of notification jobs enqueued",
		},
		[]string{"type"},
	)

	// JobsProcessed counts handler executions by outcome: ok, retry, exhausted
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpulse_jobs_processed_total",
			Help: "Number of queue job executions by outcome",
		},
		[]string{"outcome"},
	)

	Deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpulse_deliveries_total",
			Help: "Number of delivery attempts by notification type and resulting status",
		},
		[]string{"type", "status"},
	)

	QuietHoursDeferrals = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskpulse_quiet_hours_deferrals_total",
			Help: "Number of jobs re-delayed because of quiet hours",
		},
	)

	RemindersScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskpulse_reminders_scheduled_total",
			Help: "Number of reminders planned by the scheduler",
		},
		[]string{"type"},
	)
)

func Init() {
	prometheus.MustRegister(
		HTTPRequests,
		RequestDuration,
		JobsEnqueued,
		JobsProcessed,
		Deliveries,
		QuietHoursDeferrals,
		RemindersScheduled,
	)
}
