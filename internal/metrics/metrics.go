package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	DocumentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanser_documents_processed_total",
			Help: "Documents that finished the pipeline, by outcome",
		},
		[]string{"format", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cleanser_stage_duration_seconds",
			Help:    "Per-document stage latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"stage"},
	)

	BatchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cleanser_batch_in_flight",
		Help: "Documents currently inside a worker",
	})

	// OCR metrics
	OCRLowConfidenceTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cleanser_ocr_low_confidence_tokens_total",
		Help: "OCR tokens retained but flagged low-confidence",
	})

	// Redaction metrics
	RedactionSpans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanser_redaction_spans_total",
			Help: "Spans masked after reconciliation, by category",
		},
		[]string{"category"},
	)

	RedactionIncompleteBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cleanser_redaction_incomplete_blocks_total",
		Help: "Blocks emitted unredacted because a detector failed",
	})

	// LLM metrics
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanser_llm_calls_total",
			Help: "Provider calls, by provider and result",
		},
		[]string{"provider", "result"},
	)

	LLMRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanser_llm_retries_total",
			Help: "Retries, by reason",
		},
		[]string{"reason"},
	)

	// System metrics
	SystemGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cleanser_goroutines",
		Help: "Number of goroutines",
	})
)

// UpdateSystemMetrics refreshes process-level gauges.
func UpdateSystemMetrics() {
	SystemGoroutines.Set(float64(runtime.NumGoroutine()))
}
