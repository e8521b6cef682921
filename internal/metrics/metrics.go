package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alba_workflows_started_total",
			Help: "Total number of workflow executions started",
		},
		[]string{"workflow"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alba_workflows_completed_total",
			Help: "Total number of workflow executions finished",
		},
		[]string{"workflow", "status"},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alba_fleet_sweep_duration_seconds",
			Help:    "Duration of a full multi-client sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepClients = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alba_sweep_clients_total",
			Help: "Per-client sweep outcomes",
		},
		[]string{"status"},
	)

	// Lead pipeline metrics
	LeadsFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alba_leads_found_total",
			Help: "Candidate leads returned by providers",
		},
	)

	LeadsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alba_leads_saved_total",
			Help: "New leads persisted after dedup",
		},
	)

	LeadsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alba_leads_skipped_total",
			Help: "Candidates skipped as duplicates",
		},
	)

	// Gateway metrics
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alba_gateway_calls_total",
			Help: "Capability gateway calls by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	GatewayCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alba_gateway_call_duration_seconds",
			Help:    "Capability gateway call duration",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"action"},
	)

	// Rate limiter metrics
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alba_rate_limit_rejections_total",
			Help: "Admissions rejected by the rate limiter",
		},
		[]string{"key"},
	)

	// Outreach metrics
	OutreachSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alba_outreach_sent_total",
			Help: "Outbound actions delivered by channel and action",
		},
		[]string{"channel", "action"},
	)
)
