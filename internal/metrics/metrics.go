package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyowl_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studyowl_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyowl_llm_requests_total",
			Help: "Total number of LLM service calls.",
		},
		[]string{"request_type", "status"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyowl_llm_tokens_total",
			Help: "Total tokens consumed by LLM calls.",
		},
		[]string{"request_type", "kind"}, // kind is "prompt" or "completion"
	)

	UsageWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studyowl_usage_ledger_writes_total",
			Help: "Total usage ledger write attempts.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LLMRequestsTotal,
		LLMTokensTotal,
		UsageWritesTotal,
	)
}
