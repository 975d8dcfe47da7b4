package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(settlementsTotal, settlementSweepPicked, reputationPosts) }

var settlementsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_settlements_total",
		Help: "Settlement pipeline outcomes, labeled by final record status.",
	},
	[]string{"status"},
)

var settlementSweepPicked = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coordinator_settlement_sweep_picked_total",
		Help: "Records the periodic sweep re-submitted for settlement.",
	},
)

var reputationPosts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinator_reputation_posts_total",
		Help: "Fire-and-forget reputation feedback posts, labeled by outcome.",
	},
	[]string{"outcome"}, // 'ok', 'error'
)

func IncSettlement(status string)      { settlementsTotal.WithLabelValues(norm(status)).Inc() }
func IncSweepPicked()                  { settlementSweepPicked.Inc() }
func IncReputationPost(outcome string) { reputationPosts.WithLabelValues(norm(outcome)).Inc() }
