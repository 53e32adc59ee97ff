package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/merge"
	"github.com/wanderplan/wanderplan/internal/trip"
)

func samplePlan() *merge.Plan {
	days := []merge.Day{
		{
			Day: 1, Date: "2026-03-01", Location: "Beijing",
			Lunch: &trip.Item{NameBase: "Din Tai Fung", NameLocal: "鼎泰豐", Cost: 150, Currency: "CNY"},
			Attractions: []trip.Item{
				{NameBase: "Great Wall", Cost: 40, Currency: "CNY", Type: "Attraction"},
			},
			Budget: trip.BudgetBreakdown{Meals: 150, Activities: 40, Total: 190},
		},
		{Day: 2, Date: "2026-03-02", Location: "Xi'an",
			LocationChange: &trip.LocationChange{From: "Beijing", To: "Xi'an", Method: "Train", Cost: 560}},
	}
	return &merge.Plan{
		TripSummary: trip.TripSummary{
			Dates: "2026-03-01 to 2026-03-02", DurationDays: 2, Travelers: "2 adults",
			Preferences: map[string]any{},
		},
		CurrencyConfig: merge.CurrencyConfig{
			SourceCurrency: "CNY", DisplayCurrency: "EUR", ExchangeRate: 0.128, CurrencySymbol: "€",
		},
		Days:  days,
		Trips: []merge.Trip{{Name: "Beijing", Days: days[:1]}, {Name: "Xi'an", Days: days[1:]}},
	}
}

func TestRenderWritesPage(t *testing.T) {
	out := filepath.Join(t.TempDir(), "beijing-trip.html")
	r := New(config.Default().Render)

	if err := r.Render(context.Background(), samplePlan(), out); err != nil {
		t.Fatalf("render: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	html := string(raw)
	for _, want := range []string{
		"Din Tai Fung", "鼎泰豐", "Great Wall",
		"Beijing → Xi&#39;an", "window.PLAN",
		`"source_currency":"CNY"`,
	} {
		if !strings.Contains(html, want) {
			t.Fatalf("output missing %q", want)
		}
	}
}

func TestRenderBytesMatchesFileOutput(t *testing.T) {
	r := New(config.Default().Render)
	body, err := r.RenderBytes(samplePlan())
	if err != nil {
		t.Fatalf("render bytes: %v", err)
	}
	out := filepath.Join(t.TempDir(), "plan.html")
	if err := r.Render(context.Background(), samplePlan(), out); err != nil {
		t.Fatalf("render: %v", err)
	}
	file, _ := os.ReadFile(out)
	if string(file) != string(body) {
		t.Fatalf("in-memory and file renders differ")
	}
}

func TestCustomTemplatePath(t *testing.T) {
	dir := t.TempDir()
	custom := filepath.Join(dir, "shell.html")
	if err := os.WriteFile(custom, []byte("<h1>{{.Title}}</h1>"), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	cfg := config.Default().Render
	cfg.TemplatePath = custom
	out := filepath.Join(dir, "plan.html")
	if err := New(cfg).Render(context.Background(), samplePlan(), out); err != nil {
		t.Fatalf("render: %v", err)
	}
	raw, _ := os.ReadFile(out)
	if !strings.Contains(string(raw), "<h1>Beijing and beyond</h1>") {
		t.Fatalf("custom template not used: %s", raw)
	}
}

func TestMissingCustomTemplateIsExternalFailure(t *testing.T) {
	cfg := config.Default().Render
	cfg.TemplatePath = filepath.Join(t.TempDir(), "missing.html")
	err := New(cfg).Render(context.Background(), samplePlan(), filepath.Join(t.TempDir(), "out.html"))
	if !trip.IsKind(err, trip.KindExternalFailure) {
		t.Fatalf("expected external failure, got %v", err)
	}
}
