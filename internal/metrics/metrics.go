// Package metrics exposes search and generation metrics through Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"astar-navgraph/internal/constructor"
)

// Search outcome label values
const (
	OutcomeFound  = "found"
	OutcomeNoPath = "no_path"
)

// Collector holds all Prometheus metrics for the service
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// Search metrics
	Searches       *prometheus.CounterVec
	SearchDuration prometheus.Histogram
	SearchExpanded prometheus.Histogram

	// Generation metrics
	Generations        prometheus.Counter
	GenerationDuration prometheus.Histogram
	GraphNodes         prometheus.Gauge
	GraphLinks         prometheus.Gauge
	LinkRejections     *prometheus.CounterVec
}

// NewCollector creates a collector on a fresh registry
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Total number of path searches by outcome",
			},
			[]string{"outcome"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Path search duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
		),
		SearchExpanded: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_nodes_expanded",
				Help:      "Number of nodes closed per search",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		Generations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Total number of generated graphs",
			},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Graph generation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
		GraphNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Number of nodes in the current graph",
			},
		),
		GraphLinks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "graph_links",
				Help:      "Number of links in the current graph",
			},
		),
		LinkRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "link_rejections_total",
				Help:      "Total number of rejected link samples by reason",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		c.Searches,
		c.SearchDuration,
		c.SearchExpanded,
		c.Generations,
		c.GenerationDuration,
		c.GraphNodes,
		c.GraphLinks,
		c.LinkRejections,
	)
	return c
}

// ObserveSearch records one search
func (c *Collector) ObserveSearch(found bool, duration time.Duration, expanded int) {
	outcome := OutcomeNoPath
	if found {
		outcome = OutcomeFound
	}
	c.Searches.WithLabelValues(outcome).Inc()
	c.SearchDuration.Observe(duration.Seconds())
	c.SearchExpanded.Observe(float64(expanded))
}

// ObserveGeneration records one generated graph with its pass statistics
func (c *Collector) ObserveGeneration(stats constructor.Stats, duration time.Duration, nodes, links int) {
	c.Generations.Inc()
	c.GenerationDuration.Observe(duration.Seconds())
	c.GraphNodes.Set(float64(nodes))
	c.GraphLinks.Set(float64(links))

	r := stats.Rejections
	c.LinkRejections.WithLabelValues("no_partner").Add(float64(r.NoPartner))
	c.LinkRejections.WithLabelValues("duplicate").Add(float64(r.Duplicate))
	c.LinkRejections.WithLabelValues("crossing").Add(float64(r.Crossing))
	c.LinkRejections.WithLabelValues("clearance").Add(float64(r.Clearance))
}

// Registry returns the Prometheus registry for this collector
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
