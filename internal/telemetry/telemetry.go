// Package telemetry exposes Prometheus metrics for the recognition pipeline.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecognitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_recognitions_total",
			Help: "Recognition results by serving engine and dispatch strategy",
		},
		[]string{"engine", "strategy"},
	)

	RecognitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardscan_recognition_duration_seconds",
			Help:    "Wall time of one recognition, per dispatch strategy",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_cache_lookups_total",
			Help: "Detection cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	StitchCompression = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardscan_stitch_compression_ratio",
			Help:    "Summed input bytes divided by composite bytes per stitched batch",
			Buckets: []float64{1, 2, 4, 8, 16, 32},
		},
	)

	BatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardscan_batch_size",
			Help:    "Number of images per processed batch",
			Buckets: []float64{1, 2, 3, 5, 10, 20, 50},
		},
	)
)

func init() {
	prometheus.MustRegister(
		RecognitionsTotal,
		RecognitionDuration,
		CacheLookupsTotal,
		StitchCompression,
		BatchSize,
	)
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRecognition records one finished recognition.
func RecordRecognition(engine, strategy string, elapsed time.Duration) {
	RecognitionsTotal.WithLabelValues(engine, strategy).Inc()
	RecognitionDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// RecordCacheLookup records a detection cache hit or miss.
func RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	CacheLookupsTotal.WithLabelValues(outcome).Inc()
}

// RecordStitch records the compression achieved by one stitched batch.
func RecordStitch(ratio float64) {
	StitchCompression.Observe(ratio)
}

// RecordBatch records the size of one processed batch.
func RecordBatch(n int) {
	BatchSize.Observe(float64(n))
}
