// Package telemetry exposes pipeline counters over a dedicated prometheus
// registry so the preview server can serve /metrics without picking up
// unrelated process collectors.
package telemetry

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wanderplan/wanderplan/config"
)

// Telemetry carries the pipeline's metric instruments. A disabled
// instance keeps counting into its own registry but is never exposed.
type Telemetry struct {
	cfg      config.TelemetryConfig
	registry *prometheus.Registry
	log      *log.Logger

	PipelineRuns         *prometheus.CounterVec
	NormalizationChanges *prometheus.CounterVec
	TimelineInjections   prometheus.Counter
	UnmatchedItems       prometheus.Counter
	ValidationIssues     *prometheus.CounterVec
	RenderedPlans        prometheus.Counter
}

// New builds the instruments and registers them on a fresh registry.
func New(cfg config.TelemetryConfig) *Telemetry {
	registry := prometheus.NewRegistry()
	t := &Telemetry{
		cfg:      cfg,
		registry: registry,
		log:      log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wanderplan_pipeline_runs_total",
			Help: "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		NormalizationChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wanderplan_normalization_changes_total",
			Help: "Field changes applied by the normalizer, by agent.",
		}, []string{"agent"}),
		TimelineInjections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderplan_timeline_injections_total",
			Help: "POI time windows injected from the timeline.",
		}),
		UnmatchedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderplan_unmatched_items_total",
			Help: "POIs the timeline synchronizer could not match.",
		}),
		ValidationIssues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wanderplan_validation_issues_total",
			Help: "Validation findings by severity.",
		}, []string{"severity"}),
		RenderedPlans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wanderplan_rendered_plans_total",
			Help: "HTML plans written.",
		}),
	}
	registry.MustRegister(
		t.PipelineRuns, t.NormalizationChanges, t.TimelineInjections,
		t.UnmatchedItems, t.ValidationIssues, t.RenderedPlans,
	)
	return t
}

// Enabled reports whether metrics should be exposed.
func (t *Telemetry) Enabled() bool { return t.cfg.Enabled }

// Handler returns the /metrics HTTP handler for this registry.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (t *Telemetry) Registry() *prometheus.Registry { return t.registry }
