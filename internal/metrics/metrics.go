// Package metrics declares the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and route
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretfriend_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "route"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "secretfriend_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "route"},
	)

	// RequestInProgress counts HTTP requests currently being processed
	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "secretfriend_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "route"},
	)

	// DrawCounter counts draw attempts by outcome
	DrawCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretfriend_draws_total",
			Help: "Total number of draw requests by outcome",
		},
		[]string{"outcome"},
	)

	// DrawShuffles observes how many shuffles a successful draw needed
	DrawShuffles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "secretfriend_draw_shuffles",
			Help:    "Shuffles needed to find a derangement",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 50},
		},
	)

	// RevealCounter counts reveal requests by outcome
	RevealCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secretfriend_reveals_total",
			Help: "Total number of reveal requests by outcome",
		},
		[]string{"outcome"},
	)

	// GamesCreated counts created games
	GamesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "secretfriend_games_created_total",
			Help: "Total number of games created",
		},
	)
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)
