package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks inbound API requests by route and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodmap_api_requests_total",
			Help: "Total number of API requests served (by route and status).",
		},
		[]string{"route", "status"},
	)

	// Measures catalog query duration.
	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foodmap_catalog_query_duration_seconds",
			Help:    "Duration of catalog queries in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms → ~4s
		},
		[]string{"query"},
	)

	// Counts carousel advances, split by whether the step crossed the clone boundary.
	CarouselAdvancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodmap_carousel_advances_total",
			Help: "Carousel autoplay advances (by boundary crossing).",
		},
		[]string{"boundary"},
	)

	// Counts favorites-add interceptions and their notify outcome.
	FavoritesInterceptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodmap_favorites_intercepted_total",
			Help: "Favorites/cart add requests seen by the interceptor (by outcome).",
		},
		[]string{"outcome"},
	)

	// Counts daily reminder firings.
	RemindersShownTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "foodmap_reminders_shown_total",
			Help: "Daily friendly-hour reminders shown.",
		},
	)

	// Counts NATS publish failures.
	NATSPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodmap_nats_publish_errors_total",
			Help: "Number of NATS publish failures.",
		},
		[]string{"subject"},
	)
)

// ObserveQuery records the time taken for a catalog query.
func ObserveQuery(query string, start time.Time) {
	CatalogQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}
