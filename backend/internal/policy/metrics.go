package policy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultAllowed         = "allowed"
	resultUnauthenticated = "unauthenticated"
	resultForbidden       = "forbidden"
)

// Metrics counts policy decisions by entity, operation and result.
type Metrics struct {
	decisions *prometheus.CounterVec
}

// NewMetrics registers the decision counter with reg. A nil reg yields
// unregistered counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "nomnom",
			Subsystem: "policy",
			Name:      "decisions_total",
			Help:      "Mutation policy decisions by entity, operation and result.",
		}, []string{"entity", "operation", "result"}),
	}
}
