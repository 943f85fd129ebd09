package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marinedash_upstream_calls_total",
			Help: "Total upstream data source calls",
		},
		[]string{"source", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marinedash_upstream_latency_seconds",
			Help:    "Upstream call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	AggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marinedash_aggregations_total",
			Help: "Total marine record aggregations by outcome",
		},
		[]string{"region", "outcome"},
	)

	NarrativesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marinedash_narratives_total",
			Help: "Total AI narrative generations by outcome",
		},
		[]string{"region", "outcome"},
	)

	DatasetCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marinedash_dataset_cache_total",
			Help: "Tabular dataset cache lookups",
		},
		[]string{"result"},
	)
)
