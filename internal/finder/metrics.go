package finder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 후보 확정 시도 결과 (selected / rural / validation_failed / stale / error)
	reconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_finder_reconcile_total",
			Help: "Selection reconciliation attempts by resolved intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	enrichmentFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "address_finder_enrichment_failures_total",
			Help: "Place details lookups that failed and were passed through",
		},
	)

	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_finder_searches_total",
			Help: "Searches by predicted intent and mode",
		},
		[]string{"intent", "mode", "outcome"},
	)

	autoSelectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "address_finder_auto_select_total",
			Help: "Single-result voice searches by auto-select decision",
		},
		[]string{"decision"},
	)
)
