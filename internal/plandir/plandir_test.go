package plandir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wanderplan/wanderplan/internal/trip"
)

func writeFixture(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
}

func TestLoadAgentUnwrapsEnvelope(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "meals.json", `{
  "agent": "meals",
  "status": "complete",
  "data": {
    "days": [
      {"day": 1, "lunch": {"name_base": "Din Tai Fung", "name_local": "", "cost": 30}}
    ]
  },
  "notes": ""
}`)

	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	doc, err := d.LoadAgent(trip.AgentMeals)
	if err != nil {
		t.Fatalf("LoadAgent: %v", err)
	}
	if !doc.Enveloped {
		t.Fatalf("envelope not detected")
	}
	if doc.Agent != "meals" || doc.Status != "complete" {
		t.Fatalf("envelope fields lost: %+v", doc)
	}
	if len(doc.Days) != 1 || doc.Days[0].Lunch == nil || doc.Days[0].Lunch.NameBase != "Din Tai Fung" {
		t.Fatalf("days not decoded: %+v", doc.Days)
	}
}

func TestSaveAgentRestoresEnvelope(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "attractions.json", `{"agent":"attractions","status":"complete","data":{"days":[{"day":1,"attractions":[{"name_base":"Great Wall","name_local":"长城","cost":40}]}]},"notes":""}`)

	d, _ := Open(dir)
	doc, err := d.LoadAgent(trip.AgentAttractions)
	if err != nil {
		t.Fatalf("LoadAgent: %v", err)
	}
	if err := d.SaveAgent(trip.AgentAttractions, doc); err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}

	out, err := os.ReadFile(filepath.Join(dir, "attractions.json"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `"agent": "attractions"`) || !strings.Contains(s, `"data"`) {
		t.Fatalf("envelope not restored:\n%s", s)
	}
	if !strings.Contains(s, "长城") {
		t.Fatalf("local name mangled:\n%s", s)
	}
}

func TestSaveAgentKeepsSparseEnvelope(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "meals.json", `{"agent":"meals","data":{"days":[{"day":1}]}}`)

	d, _ := Open(dir)
	doc, err := d.LoadAgent(trip.AgentMeals)
	if err != nil {
		t.Fatalf("LoadAgent: %v", err)
	}
	if err := d.SaveAgent(trip.AgentMeals, doc); err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}

	out, err := os.ReadFile(filepath.Join(dir, "meals.json"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	s := string(out)
	if strings.Contains(s, `"status"`) || strings.Contains(s, `"notes"`) {
		t.Fatalf("absent envelope keys fabricated on save:\n%s", s)
	}
	if !strings.Contains(s, `"agent": "meals"`) || !strings.Contains(s, `"data"`) {
		t.Fatalf("envelope not restored:\n%s", s)
	}
}

func TestLoadAgentBareForm(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "timeline.json", `{"days":[{"day":1,"timeline":{"Great Wall":{"start_time":"09:00","end_time":"12:00"}}}]}`)

	d, _ := Open(dir)
	doc, err := d.LoadAgent(trip.AgentTimeline)
	if err != nil {
		t.Fatalf("LoadAgent: %v", err)
	}
	if doc.Enveloped {
		t.Fatalf("bare file reported as enveloped")
	}
	tl := doc.Days[0].Timeline
	if tl.Len() != 1 {
		t.Fatalf("timeline not decoded")
	}
	e, ok := tl.Get("Great Wall")
	if !ok || e.StartTime != "09:00" {
		t.Fatalf("timeline entry wrong: %+v ok=%v", e, ok)
	}
}

func TestRoundTripIsFixedPoint(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "shopping.json", `{"agent":"shopping","status":"complete","data":{"days":[{"day":2,"shopping":[{"name_base":"Silk Market","name_local":"","cost":0,"specialty":"fabric"}]}]},"notes":"hand-checked"}`)

	d, _ := Open(dir)
	doc, err := d.LoadAgent(trip.AgentShopping)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if err := d.SaveAgent(trip.AgentShopping, doc); err != nil {
		t.Fatalf("first save: %v", err)
	}
	first, _ := os.ReadFile(filepath.Join(dir, "shopping.json"))

	doc2, err := d.LoadAgent(trip.AgentShopping)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if err := d.SaveAgent(trip.AgentShopping, doc2); err != nil {
		t.Fatalf("second save: %v", err)
	}
	second, _ := os.ReadFile(filepath.Join(dir, "shopping.json"))

	if string(first) != string(second) {
		t.Fatalf("round trip not a fixed point:\n%s\nvs\n%s", first, second)
	}
	if !strings.Contains(string(second), `"specialty": "fabric"`) {
		t.Fatalf("unknown POI field dropped:\n%s", second)
	}
	if !strings.Contains(string(second), `"notes": "hand-checked"`) {
		t.Fatalf("envelope notes dropped:\n%s", second)
	}
}

func TestSkeletonSaveLoad(t *testing.T) {
	dir := t.TempDir()
	d, err := Create(filepath.Join(dir, "beijing-trip"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	rs := &trip.RequirementsSkeleton{
		TripSummary: trip.TripSummary{
			Dates:        "2026-03-01 to 2026-03-02",
			DurationDays: 2,
			Travelers:    "2 adults",
			Budget:       "3000 EUR",
			Preferences:  map[string]any{"pace": "relaxed"},
		},
		Days: []trip.RequirementDay{
			{Day: 1, Date: "2026-03-01", Location: "Beijing", UserPlans: []string{"Great Wall"}},
			{Day: 2, Date: "2026-03-02", Location: "Beijing", UserPlans: []string{}},
		},
		SupplementalNotes: map[string]string{},
	}
	if err := d.SaveRequirements(rs); err != nil {
		t.Fatalf("SaveRequirements: %v", err)
	}
	back, err := d.LoadRequirements()
	if err != nil {
		t.Fatalf("LoadRequirements: %v", err)
	}
	if back.TripSummary.DurationDays != 2 || len(back.Days) != 2 {
		t.Fatalf("skeleton mangled: %+v", back)
	}
	if back.Days[0].UserPlans[0] != "Great Wall" {
		t.Fatalf("user plans lost: %+v", back.Days[0])
	}
}

func TestOpenMissingDirectory(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope"))
	if !trip.IsKind(err, trip.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestLoadAgentMissingFile(t *testing.T) {
	d, _ := Create(t.TempDir())
	_, err := d.LoadAgent(trip.AgentBudget)
	if !trip.IsKind(err, trip.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
