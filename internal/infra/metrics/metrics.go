// Package metrics provides Prometheus metrics for the core, namespaced
// "sse_", grouped by comment banner per subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Activity ────────────────────────────────────────────────────────────

// ActivitiesStarted counts activities entering STARTING, labeled by kind.
var ActivitiesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "activities_started_total",
	Help:      "Activities that began the STARTING stage, by kind.",
}, []string{"kind"})

// ActivityStageDuration tracks how long an activity spends in each stage.
var ActivityStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "sse",
	Name:      "activity_stage_duration_seconds",
	Help:      "Time spent in each activity stage.",
	Buckets:   prometheus.DefBuckets,
}, []string{"stage"})

// ActivitiesFailed counts activities reaching FAILED, labeled by stage
// that triggered the failure.
var ActivitiesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "activities_failed_total",
	Help:      "Activities that transitioned to FAILED, by failing stage.",
}, []string{"stage"})

// ActivitiesCompleted counts activities reaching DONE.
var ActivitiesCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "activities_completed_total",
	Help:      "Activities that reached DONE.",
})

// ActivityUnitsSurviving is a gauge of surviving (non-tainted) units in the
// currently running activity.
var ActivityUnitsSurviving = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "sse",
	Name:      "activity_units_surviving",
	Help:      "Surviving (non-tainted) units in the currently running activity.",
})

// ─── Scheduler ───────────────────────────────────────────────────────────

// SchedulerTargetsChosen counts successful ChooseTargets calls.
var SchedulerTargetsChosen = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "scheduler_targets_chosen_total",
	Help:      "Successful ChooseTargets calls.",
})

// SchedulerTargetsRejected counts targets rejected during ranking.
var SchedulerTargetsRejected = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "scheduler_targets_rejected_total",
	Help:      "Candidate targets rejected by visibility, merit, or frequency selection.",
})

// SchedulerNoTarget counts ChooseTargets calls that found no target.
var SchedulerNoTarget = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "scheduler_no_target_total",
	Help:      "ChooseTargets calls that found no qualifying target.",
})

// ─── Tuner ───────────────────────────────────────────────────────────────

// TunerAssignmentSpread tracks the max-min center-frequency spread of each
// tuning pass.
var TunerAssignmentSpread = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "sse",
	Name:      "tuner_assignment_spread_mhz",
	Help:      "Max-min center frequency spread per tuning pass, in MHz.",
	Buckets:   []float64{1, 5, 10, 25, 50, 100, 200},
})

// TunerDetectorsUnused counts detectors left Used=false by a tuning pass.
var TunerDetectorsUnused = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "tuner_detectors_unused_total",
	Help:      "Detectors that could not be placed by a tuning pass.",
})

// ─── Fabric ──────────────────────────────────────────────────────────────

// FabricRegisteredProxies is a gauge of currently registered proxies, by
// component type.
var FabricRegisteredProxies = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "sse",
	Name:      "fabric_registered_proxies",
	Help:      "Currently registered component proxies, by component type.",
}, []string{"component_type"})

// FabricVersionMismatches counts proxies rejected at intrinsics for
// reporting the wrong interface version.
var FabricVersionMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "fabric_version_mismatches_total",
	Help:      "Proxies rejected at registration for interface version mismatch.",
}, []string{"component_type"})

// FabricDuplicateNameResolutions counts duplicate-name registrations,
// labeled by the policy outcome.
var FabricDuplicateNameResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "fabric_duplicate_name_resolutions_total",
	Help:      "Duplicate-name registrations resolved, by outcome.",
}, []string{"outcome"})

// ─── Resilience ──────────────────────────────────────────────────────────

// CircuitBreakerTrips counts breaker trips, by component name.
var CircuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sse",
	Name:      "circuit_breaker_trips_total",
	Help:      "Circuit breaker trips, by component name.",
}, []string{"component"})

// DetectorsQuarantined is a gauge of currently quarantined detectors.
var DetectorsQuarantined = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "sse",
	Name:      "detectors_quarantined",
	Help:      "Detectors currently excluded from tuning passes by quarantine.",
})
