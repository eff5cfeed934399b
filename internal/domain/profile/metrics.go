package profile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relationshipOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "family_tree_relationship_operations_total",
		Help: "Relationship index operations by operation and result",
	}, []string{"operation", "result"})

	profileCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "family_tree_profile_cache_lookups_total",
		Help: "Profile cache lookups by result",
	}, []string{"result"})
)

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(Kind(err))
}
