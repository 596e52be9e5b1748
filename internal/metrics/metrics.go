// Package metrics holds the Prometheus instruments used across the service.
// All collectors are registered with the global registry, so mounting
// promhttp.Handler() on /metrics is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siteforge_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_llm_requests_total",
			Help: "Model calls by client and outcome.",
		}, []string{"client", "outcome"})

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siteforge_llm_request_duration_seconds",
			Help:    "Model call latency by client.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"client"})

	GenerationAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_generation_attempts_total",
			Help: "Website generation attempts by outcome.",
		}, []string{"outcome"})

	GenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_generations_total",
			Help: "Website generations by final outcome.",
		}, []string{"outcome"})

	ImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_images_total",
			Help: "Image syntheses by outcome.",
		}, []string{"outcome"})

	EditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_section_edits_total",
			Help: "Section edits by outcome.",
		}, []string{"outcome"})

	BackendSynthesisTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_backend_synthesis_total",
			Help: "Backend code syntheses by source (ai or template).",
		}, []string{"source"})

	QuotaDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_quota_denials_total",
			Help: "Operations refused by the usage gate, by kind.",
		}, []string{"kind"})

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "siteforge_active_sessions",
			Help: "Generation sessions currently held in memory.",
		})

	SiteCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteforge_site_cache_total",
			Help: "Public site lookups by result (hit or miss).",
		}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LLMRequestsTotal,
		LLMRequestDuration,
		GenerationAttemptsTotal,
		GenerationsTotal,
		ImagesTotal,
		EditsTotal,
		BackendSynthesisTotal,
		QuotaDenialsTotal,
		ActiveSessions,
		SiteCacheTotal,
	)
}
