// Package pipeline chains the plan compiler stages (normalize, sync,
// validate, merge, render) over one plan directory, skipping work when
// the emitted HTML is already newer than every input file.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/merge"
	"github.com/wanderplan/wanderplan/internal/normalize"
	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/rates"
	"github.com/wanderplan/wanderplan/internal/render"
	"github.com/wanderplan/wanderplan/internal/telemetry"
	"github.com/wanderplan/wanderplan/internal/timesync"
	"github.com/wanderplan/wanderplan/internal/trip"
	"github.com/wanderplan/wanderplan/internal/validate"
)

// Result summarizes one pipeline run.
type Result struct {
	RunID                string           `json:"run_id"`
	Slug                 string           `json:"slug"`
	Skipped              bool             `json:"skipped"`
	NormalizationChanges int              `json:"normalization_changes"`
	SyncReport           *timesync.Report `json:"sync_report,omitempty"`
	Validation           *validate.Result `json:"validation,omitempty"`
	OutputPath           string           `json:"output_path,omitempty"`
}

// Pipeline runs the compiler stages in order. Rates may be overridden for
// tests; when nil it is built from config (and may legitimately stay nil,
// in which case the fallback rate applies).
type Pipeline struct {
	cfg   *config.Config
	tele  *telemetry.Telemetry
	Rates rates.Source
	log   *log.Logger
}

// New builds a pipeline; nil config or telemetry use defaults.
func New(cfg *config.Config, tele *telemetry.Telemetry) *Pipeline {
	if cfg == nil {
		cfg = config.Default()
	}
	if tele == nil {
		tele = telemetry.New(cfg.Telemetry)
	}
	p := &Pipeline{
		cfg:  cfg,
		tele: tele,
		log:  log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
	}
	if src := rates.NewSubprocessSource(cfg.Currency); src != nil {
		p.Rates = src
	}
	return p
}

// OutputPath returns where the emitted HTML for a slug lives.
func (p *Pipeline) OutputPath(slug string) string {
	return filepath.Join(p.cfg.General.OutputDir, slug+".html")
}

// PlanDir returns the plan directory path for a slug.
func (p *Pipeline) PlanDir(slug string) string {
	return filepath.Join(p.cfg.General.DataDir, slug)
}

// Run executes the stages for one slug. With force unset, a fresh output
// file short-circuits the whole run.
func (p *Pipeline) Run(ctx context.Context, slug string, force bool) (*Result, error) {
	d, err := plandir.Open(p.PlanDir(slug))
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID:      uuid.NewString(),
		Slug:       slug,
		OutputPath: p.OutputPath(slug),
	}
	if !force && !p.stale(d, res.OutputPath) {
		res.Skipped = true
		p.log.Printf("%s: output up to date, skipping (run %s)", slug, res.RunID)
		return res, nil
	}
	p.log.Printf("%s: run %s started", slug, res.RunID)

	ps, err := d.LoadPlan()
	if err != nil {
		if !trip.IsKind(err, trip.KindNotFound) {
			return p.fail(res, err)
		}
		ps = nil
	}

	normalizer := normalize.New(normalize.Options{
		SourceCurrency: p.cfg.Currency.Source,
		EURRate:        p.cfg.Currency.FallbackRate,
		Durations:      p.cfg.Sync.DefaultDurationMinutes,
	})
	changes, err := normalizer.Directory(d, ps)
	if err != nil {
		return p.fail(res, err)
	}
	for agent, agentChanges := range changes {
		res.NormalizationChanges += len(agentChanges)
		p.tele.NormalizationChanges.WithLabelValues(agent).Add(float64(len(agentChanges)))
	}

	report, err := timesync.New(p.cfg, false).Run(d)
	if err != nil {
		return p.fail(res, err)
	}
	res.SyncReport = report
	p.tele.TimelineInjections.Add(float64(len(report.TimelineInjections)))
	p.tele.UnmatchedItems.Add(float64(len(report.UnmatchedItems)))

	res.Validation = &validate.Result{Issues: report.Validation}
	for _, issue := range res.Validation.Issues {
		p.tele.ValidationIssues.WithLabelValues(string(issue.Severity)).Inc()
	}
	if n := res.Validation.Criticals(); n > 0 {
		return p.fail(res, trip.E(trip.KindSemanticViolation,
			"%s: %d critical validation issues; not emitting", slug, n))
	}

	rate, err := rates.Resolve(ctx, p.cfg.Currency, p.Rates)
	if err != nil {
		return p.fail(res, err)
	}
	plan, err := merge.New(p.cfg).Build(d, rate)
	if err != nil {
		return p.fail(res, err)
	}
	if err := render.New(p.cfg.Render).Render(ctx, plan, res.OutputPath); err != nil {
		return p.fail(res, err)
	}
	p.tele.RenderedPlans.Inc()
	p.tele.PipelineRuns.WithLabelValues("success").Inc()
	p.log.Printf("%s: run %s emitted %s", slug, res.RunID, res.OutputPath)
	return res, nil
}

// Build assembles the merged plan for a slug without emitting HTML; the
// preview server uses this for its JSON endpoints.
func (p *Pipeline) Build(ctx context.Context, slug string) (*merge.Plan, error) {
	d, err := plandir.Open(p.PlanDir(slug))
	if err != nil {
		return nil, err
	}
	rate, err := rates.Resolve(ctx, p.cfg.Currency, p.Rates)
	if err != nil {
		return nil, err
	}
	return merge.New(p.cfg).Build(d, rate)
}

func (p *Pipeline) fail(res *Result, err error) (*Result, error) {
	p.tele.PipelineRuns.WithLabelValues("failure").Inc()
	return res, fmt.Errorf("pipeline %s (run %s): %w", res.Slug, res.RunID, err)
}

func fileMTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// stale reports whether any input file is newer than the emitted HTML.
// Mutations after a previous emit land here via file mtimes.
func (p *Pipeline) stale(d *plandir.Dir, outputPath string) bool {
	out := fileMTime(outputPath)
	if out.IsZero() {
		return true
	}
	inputs := []string{plandir.FileRequirements, plandir.FilePlan, plandir.FileImages}
	for _, agent := range trip.Agents {
		inputs = append(inputs, plandir.AgentFile(agent))
	}
	for _, name := range inputs {
		if mt := d.MTime(name); !mt.IsZero() && mt.After(out) {
			return true
		}
	}
	return false
}
