package importer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packimport_imports_total",
			Help: "Pack imports by outcome code (ok on success).",
		},
		[]string{"code"},
	)

	importDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "packimport_import_duration_seconds",
		Help:    "Wall time of a pack import.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	warningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "packimport_import_warnings_total",
			Help: "Item-scoped import warnings by code.",
		},
		[]string{"code"},
	)

	resolverHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packimport_resolver_cache_hits_total",
		Help: "Media references served from the import session cache.",
	})

	resolverMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packimport_resolver_cache_misses_total",
		Help: "Media references that required an archive read.",
	})

	mediaStoredBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packimport_media_stored_bytes_total",
		Help: "Bytes written to the file store by imports.",
	})
)
