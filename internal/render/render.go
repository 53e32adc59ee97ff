// Package render turns a merged plan into a single-file HTML page. The
// shell template is embedded; a configured template path overrides it.
package render

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"

	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/merge"
	"github.com/wanderplan/wanderplan/internal/trip"
)

//go:embed template.html
var templateFS embed.FS

// Renderer produces the HTML artifact for one merged plan.
type Renderer interface {
	Render(ctx context.Context, plan *merge.Plan, outputPath string) error
}

// TemplateRenderer renders through html/template with the plan injected
// as JSON for the client-side views.
type TemplateRenderer struct {
	cfg config.RenderConfig
	log *log.Logger
}

// New builds a renderer from render config.
func New(cfg config.RenderConfig) *TemplateRenderer {
	return &TemplateRenderer{
		cfg: cfg,
		log: log.New(log.Writer(), "[RENDER] ", log.LstdFlags),
	}
}

// page is the data handed to the template.
type page struct {
	Title    string
	Plan     *merge.Plan
	PlanJSON template.JS
}

// Render writes the HTML page. The configured timeout bounds the whole
// operation; on expiry the partial output is discarded.
func (r *TemplateRenderer) Render(ctx context.Context, plan *merge.Plan, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	tmpl, err := r.template()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	data := page{
		Title:    pageTitle(plan),
		Plan:     plan,
		PlanJSON: template.JS(raw),
	}

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- tmpl.Execute(&buf, data) }()
	select {
	case err := <-done:
		if err != nil {
			return trip.Wrap(trip.KindExternalFailure, err, "render html")
		}
	case <-ctx.Done():
		return trip.Wrap(trip.KindExternalFailure, ctx.Err(), "render html")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	r.log.Printf("wrote %s (%d bytes)", outputPath, buf.Len())
	return nil
}

// RenderBytes renders to memory; the preview server serves this directly.
func (r *TemplateRenderer) RenderBytes(plan *merge.Plan) ([]byte, error) {
	tmpl, err := r.template()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, page{
		Title:    pageTitle(plan),
		Plan:     plan,
		PlanJSON: template.JS(raw),
	})
	if err != nil {
		return nil, trip.Wrap(trip.KindExternalFailure, err, "render html")
	}
	return buf.Bytes(), nil
}

func (r *TemplateRenderer) template() (*template.Template, error) {
	if r.cfg.TemplatePath != "" {
		tmpl, err := template.ParseFiles(r.cfg.TemplatePath)
		if err != nil {
			return nil, trip.Wrap(trip.KindExternalFailure, err, "parse template %s", r.cfg.TemplatePath)
		}
		return tmpl, nil
	}
	tmpl, err := template.ParseFS(templateFS, "template.html")
	if err != nil {
		return nil, fmt.Errorf("parse embedded template: %w", err)
	}
	return tmpl, nil
}

func pageTitle(plan *merge.Plan) string {
	if len(plan.Trips) == 0 {
		return "Travel Plan"
	}
	title := plan.Trips[0].Name
	for _, t := range plan.Trips[1:] {
		if t.Name != title {
			return title + " and beyond"
		}
	}
	return title
}
