package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(retrievalSearchesTotal, broadcastPublishesTotal)
}

var retrievalSearchesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "retrieval_searches_total",
		Help: "Knowledge base searches, labeled by path taken.",
	},
	[]string{"path"}, // 'vector', 'lexical'
)

var broadcastPublishesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "progress_broadcast_publishes_total",
		Help: "Progress event publish attempts by outcome.",
	},
	[]string{"outcome"}, // 'ok', 'dropped'
)

func IncRetrievalSearch(path string) {
	retrievalSearchesTotal.WithLabelValues(norm(path)).Inc()
}

func IncBroadcastPublish(outcome string) {
	broadcastPublishesTotal.WithLabelValues(norm(outcome)).Inc()
}
