package tree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	treeBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "family_tree_builds_total",
		Help: "Tree builds by result",
	}, []string{"result"})

	treeBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "family_tree_build_duration_seconds",
		Help:    "Tree build duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	treeNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "family_tree_nodes",
		Help:    "Nodes materialized per tree build, spouses included",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
	})

	danglingReferences = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "family_tree_dangling_references_total",
		Help: "Relationship references skipped because the target profile does not exist",
	}, []string{"kind"})
)
