package places

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Google API 호출 수
	googleRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_finder_google_requests_total",
			Help: "Total number of Google Maps Platform requests",
		},
		[]string{"endpoint", "outcome"},
	)

	// Google API 호출 지연시간
	googleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "address_finder_google_request_duration_seconds",
			Help:    "Google Maps Platform request latency in seconds",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	// 캐시 조회 결과 (hit / store / miss)
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_finder_cache_lookups_total",
			Help: "Details and search cache lookups by result",
		},
		[]string{"cache", "result"},
	)
)
