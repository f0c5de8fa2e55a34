package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	AnalysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "licenseguard_analyses_total", Help: "Completed orchestrations by terminal status"},
		[]string{"status"},
	)
	ValidationRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "licenseguard_validation_rejections_total", Help: "Manifest validation rejections by reason"},
		[]string{"reason"},
	)
	InferenceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "licenseguard_inference_failures_total", Help: "Inference call failures by reason"},
		[]string{"reason"},
	)
	InferenceLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "licenseguard_inference_duration_seconds",
			Help:    "Wall time of inference calls",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
)

func init() {
	prometheus.MustRegister(AnalysesTotal, ValidationRejections, InferenceFailures, InferenceLatency)
}
