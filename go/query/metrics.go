package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var overlapConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stroll_query_overlap_conflicts_total",
	Help: "counter of duplicate rows observed across overlapping partitions",
})
