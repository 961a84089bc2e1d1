package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(localQueueDepth) }

var localQueueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "local_queue_jobs",
		Help: "Local worker pool queue size by status.",
	},
	[]string{"status"},
)

func SetLocalQueue(inQueue, processing int) {
	localQueueDepth.WithLabelValues("in_queue").Set(float64(inQueue))
	localQueueDepth.WithLabelValues("processing").Set(float64(processing))
}
