// Package metrics provides Prometheus metrics for the briefing bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Briefing outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Webhook results.
const (
	WebhookAccepted = "accepted"
	WebhookRejected = "rejected"
	WebhookError    = "error"
)

var (
	// BriefingsTotal counts per-user briefing outcomes.
	BriefingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dailybrief",
			Name:      "briefings_total",
			Help:      "Total number of briefings processed by outcome",
		},
		[]string{"outcome"},
	)

	// RunDuration measures how long a daily run takes.
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dailybrief",
			Name:      "run_duration_seconds",
			Help:      "Duration of daily briefing runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	// DirectoryUsers tracks the size of the current directory snapshot.
	DirectoryUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dailybrief",
			Name:      "directory_users",
			Help:      "Number of users in the current directory snapshot",
		},
	)

	// DirectoryRefreshErrors counts failed directory refreshes.
	DirectoryRefreshErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dailybrief",
			Name:      "directory_refresh_errors_total",
			Help:      "Total number of failed directory refreshes",
		},
	)

	// WebhookRequestsTotal counts inbound messages by result.
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dailybrief",
			Name:      "webhook_requests_total",
			Help:      "Total number of inbound webhook messages by result",
		},
		[]string{"result"},
	)
)

// RecordBriefing records one user's outcome.
func RecordBriefing(outcome string) {
	BriefingsTotal.WithLabelValues(outcome).Inc()
}

// RecordRun records a finished run.
func RecordRun(seconds float64) {
	RunDuration.Observe(seconds)
}

// RecordDirectory records the size of a freshly loaded directory snapshot.
func RecordDirectory(users int) {
	DirectoryUsers.Set(float64(users))
}

// RecordWebhook records an inbound message result.
func RecordWebhook(result string) {
	WebhookRequestsTotal.WithLabelValues(result).Inc()
}
