package schema

import (
	"encoding/json"
	"testing"

	"github.com/wanderplan/wanderplan/internal/trip"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return v
}

func TestAllAgentSchemasCompile(t *testing.T) {
	for _, agent := range trip.Agents {
		if _, err := For(agent); err != nil {
			t.Fatalf("schema for %s: %v", agent, err)
		}
	}
}

func TestValidMealsDocumentPasses(t *testing.T) {
	doc := decode(t, `{
  "days": [
    {
      "day": 1,
      "date": "2026-03-01",
      "location": "Beijing",
      "lunch": {
        "name_base": "Din Tai Fung",
        "name_local": "鼎泰豐",
        "cost": 30,
        "currency": "CNY",
        "time": {"start": "12:30", "end": "13:30"}
      }
    }
  ]
}`)
	errs, err := Validate(trip.AgentMeals, doc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected clean document, got %v", errs)
	}
}

func TestBadClockValueFails(t *testing.T) {
	doc := decode(t, `{
  "days": [
    {"day": 1, "timeline": {"Great Wall": {"start_time": "9am", "end_time": "12:00"}}}
  ]
}`)
	errs, err := Validate(trip.AgentTimeline, doc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) == 0 {
		t.Fatalf("expected violation for non-HH:MM time")
	}
	for _, e := range errs {
		if e.Agent != trip.AgentTimeline {
			t.Fatalf("wrong agent on error: %+v", e)
		}
	}
}

func TestMissingDaysFails(t *testing.T) {
	errs, err := Validate(trip.AgentBudget, decode(t, `{"notes": "empty"}`))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) == 0 {
		t.Fatalf("expected violation for missing days")
	}
}

func TestErrorsSortedByPath(t *testing.T) {
	doc := decode(t, `{
  "days": [
    {"day": 1, "timeline": {"B": {"start_time": "bad", "end_time": "12:00"}}},
    {"day": 2, "timeline": {"A": {"start_time": "also-bad", "end_time": "13:00"}}}
  ]
}`)
	errs, err := Validate(trip.AgentTimeline, doc)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(errs) < 2 {
		t.Fatalf("expected at least two violations, got %v", errs)
	}
	for i := 1; i < len(errs); i++ {
		if errs[i-1].Path > errs[i].Path {
			t.Fatalf("errors not sorted: %q before %q", errs[i-1].Path, errs[i].Path)
		}
	}
}

func TestUnknownAgent(t *testing.T) {
	_, err := Validate("weather", decode(t, `{"days": []}`))
	if !trip.IsKind(err, trip.KindNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
