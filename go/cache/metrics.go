package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var hits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stroll_cache_hits_total",
	Help: "counter of response cache hits",
})

var misses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stroll_cache_misses_total",
	Help: "counter of response cache misses",
})

var evictions = promauto.NewCounter(prometheus.CounterOpts{
	Name: "stroll_cache_evictions_total",
	Help: "counter of response cache evictions",
})
