// Package metrics provides Prometheus instrumentation for the export pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/memohai/sticker-export-bot/internal/sticker"
)

var (
	// AssetExportsTotal counts single-asset exports by detected kind and result.
	AssetExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_asset_exports_total",
			Help: "Total single sticker exports",
		},
		[]string{"kind", "result"},
	)

	// AssetExportDuration tracks fetch+convert latency of one sticker.
	AssetExportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sticker_asset_export_duration_seconds",
			Help:    "Single sticker export duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	// PackExportsTotal counts pack exports by result.
	PackExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_pack_exports_total",
			Help: "Total sticker pack exports",
		},
		[]string{"result"},
	)

	// PackExportsActive tracks pack exports in progress.
	PackExportsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sticker_pack_exports_active",
			Help: "Number of sticker pack exports in progress",
		},
	)

	// AdmissionsTotal counts inbound events by admission decision.
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sticker_admissions_total",
			Help: "Inbound events by rate limiter decision",
		},
		[]string{"decision"},
	)
)

// ObserveAssetExport records one single-asset export.
func ObserveAssetExport(kind sticker.Kind, err error, elapsed time.Duration) {
	AssetExportsTotal.WithLabelValues(kind.String(), Result(err)).Inc()
	AssetExportDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

// ObserveAdmission records one admission decision.
func ObserveAdmission(admitted bool) {
	if admitted {
		AdmissionsTotal.WithLabelValues("admitted").Inc()
		return
	}
	AdmissionsTotal.WithLabelValues("denied").Inc()
}

// Result maps err to a result label.
func Result(err error) string {
	if err == nil {
		return "success"
	}
	return "failure"
}
