package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderCallsTotal tracks provider calls by outcome
	ProviderCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptgate_provider_calls_total",
			Help: "Total number of provider calls",
		},
		[]string{"provider", "status"},
	)

	// ProviderCallLatency tracks provider call latency
	ProviderCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptgate_provider_call_latency_seconds",
			Help:    "Provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// ProviderErrorsTotal tracks classified provider errors
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptgate_provider_errors_total",
			Help: "Total number of classified provider errors",
		},
		[]string{"provider", "code"},
	)

	// HealthChecksTotal tracks provider health probes by result
	HealthChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptgate_health_checks_total",
			Help: "Total number of provider health checks",
		},
		[]string{"provider", "result"},
	)

	// ProvidersAvailable tracks how many providers are currently available
	ProvidersAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promptgate_providers_available",
			Help: "Number of providers currently marked available",
		},
	)

	// RetryAttemptsTotal tracks retry attempts beyond the first call
	RetryAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptgate_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
	)

	// TemplateCacheHits tracks template resolution cache hits
	TemplateCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptgate_template_cache_hits_total",
			Help: "Total number of template cache hits",
		},
	)

	// TemplateCacheMisses tracks template resolution cache misses
	TemplateCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptgate_template_cache_misses_total",
			Help: "Total number of template cache misses",
		},
	)

	// TemplateVersionsCreated tracks version writes per scenario
	TemplateVersionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptgate_template_versions_created_total",
			Help: "Total number of template versions created",
		},
		[]string{"scenario"},
	)

	// RenderMissingVariables tracks renders that left unresolved placeholders
	RenderMissingVariables = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptgate_render_missing_variables_total",
			Help: "Total number of renders with unresolved placeholders",
		},
	)
)
