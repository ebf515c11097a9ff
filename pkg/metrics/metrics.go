package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TeamContextLookups counts current-team resolutions by outcome
	// (hit|miss|absent).
	TeamContextLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_team_context_lookups_total",
			Help: "Total number of current-team cache lookups",
		},
		[]string{"result"},
	)

	// TenantScopeQueries counts tenant-scoped query executions by outcome
	// (scoped|denied|unscoped).
	TenantScopeQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_tenant_scope_queries_total",
			Help: "Total number of tenant-scoped query executions",
		},
		[]string{"result"},
	)

	// TeamPermissionChecks counts team permission evaluations and their
	// outcome (allowed|denied|error).
	TeamPermissionChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdeck_team_permission_checks_total",
			Help: "Total number of team permission checks",
		},
		[]string{"permission", "result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsdeck_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
