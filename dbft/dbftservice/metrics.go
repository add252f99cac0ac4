package dbftservice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics the service maintains.
type Metrics struct {
	MessagesAccepted *prometheus.CounterVec
	MessagesRejected prometheus.Counter

	ViewChanges     prometheus.Counter
	CommitQuorums   prometheus.Counter
	HeightsAdvanced prometheus.Counter

	CurrentHeight prometheus.Gauge
	CurrentView   prometheus.Gauge
}

// NewMetrics creates metrics registered with the given registerer
// under the given namespace.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesAccepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_messages_accepted_total",
			Help:      "Accepted consensus messages by kind",
		}, []string{"kind"}),
		MessagesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_messages_rejected_total",
			Help:      "Consensus messages rejected by validation",
		}),

		ViewChanges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_view_changes_total",
			Help:      "View changes applied after quorum agreement",
		}),
		CommitQuorums: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_commit_quorums_total",
			Help:      "Rounds that reached commit quorum",
		}),
		HeightsAdvanced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_heights_advanced_total",
			Help:      "Height advances applied after block persistence",
		}),

		CurrentHeight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consensus_current_height",
			Help:      "Height of the round in progress",
		}),
		CurrentView: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consensus_current_view",
			Help:      "View of the round in progress",
		}),
	}
}
