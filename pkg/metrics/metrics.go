package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Global metrics. promauto registers them on the default registry at init.

var (
	// 1. HTTP Requests Total (Counter)
	// Counts how many requests arrive, labeled by method, path, and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorflow_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// 2. HTTP Request Duration (Histogram)
	// A task run can wait on several embedding calls, hence the long tail.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// 3. Node executions (Counter)
	NodeExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorflow_node_executions_total",
			Help: "Total number of node executions, labeled by outcome",
		},
		[]string{"task", "node", "exit_code"},
	)

	// 4. Node duration (Histogram)
	NodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorflow_node_duration_seconds",
			Help:    "Duration of a single node execution in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"task", "node"},
	)

	// 5. Embeddings generated (Counter)
	EmbeddingsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorflow_embeddings_generated_total",
			Help: "Total number of embedding chunks generated, labeled by content language",
		},
		[]string{"language"},
	)

	// 6. Threshold relaxations (Counter)
	RetrievalRelaxationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kektorflow_retrieval_relaxations_total",
			Help: "Number of times the similarity threshold was lowered during retrieval",
		},
	)

	// 7. Candidate pool size (Histogram)
	RetrievalCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kektorflow_retrieval_candidates",
			Help:    "Number of candidate chunks scored per retrieval",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// 8. Speech clips (Counter)
	SpeechGeneratedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kektorflow_speech_generated_total",
			Help: "Total number of synthesized audio clips",
		},
	)
)
