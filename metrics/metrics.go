// Package metrics holds the Prometheus collectors shared by the engine,
// live-play and review components.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EngineRequests counts analysis requests by how they resolved.
	EngineRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chesslab_engine_requests_total",
		Help: "Engine analysis requests by outcome status (complete, partial, busy, error)",
	}, []string{"status"})

	EngineRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chesslab_engine_request_duration_seconds",
		Help:    "Time from issuing a search to its resolution",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	EngineReady = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chesslab_engine_ready",
		Help: "1 when the engine has acknowledged the last isready ping",
	})

	StaleResults = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chesslab_stale_results_total",
		Help: "Engine results discarded because the live position changed",
	})

	SelectorDraws = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chesslab_selector_draws_total",
		Help: "Humanized move selections by kind (best, blunder)",
	}, []string{"kind"})

	ReviewPlies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chesslab_review_plies_analyzed_total",
		Help: "Positions evaluated by the review pipeline",
	})

	ReviewMistakes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chesslab_review_mistakes_total",
		Help: "Classified mistakes found by completed or cancelled reviews",
	}, []string{"severity"})
)
