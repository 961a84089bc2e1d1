package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(jobsRoutedTotal, jobsClaimedTotal, jobsFinishedTotal, jobsPromotedTotal, webhookTotal)
}

var jobsRoutedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_routed_total",
		Help: "Total number of routed generation jobs, labeled by placement.",
	},
	[]string{"route"}, // 'local', 'remote'
)

var jobsClaimedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "generation_jobs_claimed_total",
		Help: "Total number of local jobs claimed by workers.",
	},
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_finished_total",
		Help: "Total number of generation jobs reaching a terminal status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var jobsPromotedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "generation_jobs_promoted_total",
		Help: "Total number of waiting local jobs promoted to the remote backend.",
	},
)

var webhookTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_webhook_requests_total",
		Help: "Total number of worker/backend webhook posts, labeled by result.",
	},
	[]string{"result"}, // 'applied', 'rejected'
)

func IncRouted(route string)    { jobsRoutedTotal.WithLabelValues(norm(route)).Inc() }
func IncClaimed()               { jobsClaimedTotal.Inc() }
func IncFinished(status string) { jobsFinishedTotal.WithLabelValues(norm(status)).Inc() }
func IncPromoted()              { jobsPromotedTotal.Inc() }
func IncWebhook(result string)  { webhookTotal.WithLabelValues(norm(result)).Inc() }
