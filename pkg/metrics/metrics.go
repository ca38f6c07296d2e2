// Package metrics exposes Prometheus counters for the memory subsystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// InteractionsTotal counts successfully ingested interactions per bank.
	InteractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurocanvas_interactions_total",
		Help: "Interactions ingested into a memory bank.",
	}, []string{"bank"})

	// RecommendationsTotal counts recommendation queries per bank.
	RecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurocanvas_recommendations_total",
		Help: "Recommendation queries served per memory bank.",
	}, []string{"bank"})

	// EvictionsTotal counts observations trimmed from user windows.
	EvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurocanvas_evictions_total",
		Help: "Observations evicted from over-capacity windows.",
	}, []string{"bank"})

	// ArtworksTotal counts generated artworks.
	ArtworksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "neurocanvas_artworks_total",
		Help: "Artworks generated and stored.",
	})
)

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
