package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EmailsSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_sent_total",
			Help: "Total emails sent",
		},
	)

	EmailFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_failures_total",
			Help: "Total failed send attempts",
		},
	)

	EmailsRescheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_rescheduled_total",
			Help: "Total failed attempts rescheduled with backoff",
		},
	)

	EmailsPermanentlyFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emails_permanently_failed_total",
			Help: "Total emails that exhausted their retry budget",
		},
	)

	ClaimsLost = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "email_claims_lost_total",
			Help: "Outcome writes rejected because the lease had moved on",
		},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "email_batch_duration_seconds",
			Help:    "Wall time of one queue batch",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	RateLimitBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_blocked_total",
			Help: "Attempts rejected by the auth rate limiter",
		},
		[]string{"action"},
	)
)

func Init() {
	prometheus.MustRegister(EmailsSent)
	prometheus.MustRegister(EmailFailures)
	prometheus.MustRegister(EmailsRescheduled)
	prometheus.MustRegister(EmailsPermanentlyFailed)
	prometheus.MustRegister(ClaimsLost)
	prometheus.MustRegister(BatchDuration)
	prometheus.MustRegister(RateLimitBlocked)
}
