// Package observability exposes the Prometheus metrics of the consequence
// ledger.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	togglesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "consequence_ledger",
		Subsystem: "engine",
		Name:      "toggles_total",
		Help:      "Toggle requests by outcome (applied, undone, switched, skipped).",
	}, []string{"outcome"})

	appendFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "consequence_ledger",
		Subsystem: "engine",
		Name:      "append_failures_total",
		Help:      "Transactions the engine failed to append, by transaction type.",
	}, []string{"type"})

	feedDeliveries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "consequence_ledger",
		Subsystem: "feed",
		Name:      "deliveries_total",
		Help:      "Snapshots delivered to engines by the live feed.",
	})

	activeSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "consequence_ledger",
		Subsystem: "feed",
		Name:      "active_subscriptions",
		Help:      "Open profile feed subscriptions.",
	})

	mirrorFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "consequence_ledger",
		Subsystem: "mirror",
		Name:      "publish_failures_total",
		Help:      "Appended transactions that could not be mirrored to Kafka.",
	})

	watcherPolls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "consequence_ledger",
		Subsystem: "watcher",
		Name:      "polls_total",
		Help:      "Watcher polls of the transaction table, by result (idle, changed, error).",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(togglesCounter, appendFailures, feedDeliveries, activeSubscriptions, mirrorFailures, watcherPolls)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordToggle(outcome string) {
	togglesCounter.WithLabelValues(outcome).Inc()
}

func RecordAppendFailure(txType string) {
	appendFailures.WithLabelValues(txType).Inc()
}

func RecordFeedDelivery() {
	feedDeliveries.Inc()
}

func SubscriptionOpened() {
	activeSubscriptions.Inc()
}

func SubscriptionClosed() {
	activeSubscriptions.Dec()
}

func RecordMirrorFailure() {
	mirrorFailures.Inc()
}

func RecordWatcherPoll(result string) {
	watcherPolls.WithLabelValues(result).Inc()
}
