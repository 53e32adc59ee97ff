// Package validate runs the two-phase consistency check over a plan
// directory: per-agent schema validation, then semantic checks that no
// schema can express (coordinate bounds, timeline overlaps, budget sums,
// cross-agent agreement, leftover legacy fields).
package validate

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/schema"
	"github.com/wanderplan/wanderplan/internal/trip"
)

// Severity classifies an issue. Criticals fail the run; warnings do not.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Check    string   `json:"check"`
	Agent    string   `json:"agent,omitempty"`
	Day      int      `json:"day,omitempty"`
	Path     string   `json:"path,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	loc := i.Agent
	if i.Day > 0 {
		loc = fmt.Sprintf("%s day %d", i.Agent, i.Day)
	}
	if loc != "" {
		return fmt.Sprintf("[%s] %s: %s: %s", i.Severity, i.Check, loc, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Check, i.Message)
}

// Result aggregates the findings of one validation run.
type Result struct {
	Issues []Issue `json:"issues"`
}

// Criticals counts critical issues.
func (r *Result) Criticals() int { return r.count(SeverityCritical) }

// Warnings counts warning issues.
func (r *Result) Warnings() int { return r.count(SeverityWarning) }

func (r *Result) count(s Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == s {
			n++
		}
	}
	return n
}

// ExitCode maps the result onto the process exit contract: 0 clean,
// 1 at least one critical, 2 warnings only.
func (r *Result) ExitCode() int {
	switch {
	case r.Criticals() > 0:
		return 1
	case r.Warnings() > 0:
		return 2
	default:
		return 0
	}
}

func (r *Result) add(sev Severity, check, agent string, day int, msg string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Severity: sev,
		Check:    check,
		Agent:    agent,
		Day:      day,
		Message:  fmt.Sprintf(msg, args...),
	})
}

// Validator checks one plan directory at a time. It never writes.
type Validator struct {
	cfg *config.Config
	log *log.Logger
}

// New builds a validator from config; a nil config uses defaults.
func New(cfg *config.Config) *Validator {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Validator{
		cfg: cfg,
		log: log.New(log.Writer(), "[VALIDATE] ", log.LstdFlags),
	}
}

// legacyItemFields are pre-normalization keys whose presence next to the
// canonical fields means a normalization pass is overdue.
var legacyItemFields = []string{
	"name", "name_english", "name_en", "name_chinese", "name_cn",
	"location", "address", "category", "mode",
	"recommended_duration", "recommended_duration_hours",
	"ticket_price_eur", "price_per_night_eur", "cost_eur", "cost_cny",
}

// overlapSofteners are timeline-name markers for alternatives that are
// expected to overlap; a pair involving one is downgraded to a warning.
var overlapSofteners = []string{"optional", "alternative", " or ", "in-park"}

// Directory validates every agent file present in the plan directory.
// Missing agent files are skipped; unreadable ones are critical.
func (v *Validator) Directory(d *plandir.Dir) (*Result, error) {
	res := &Result{}
	docs := map[string]*trip.AgentDoc{}

	for _, agent := range trip.Agents {
		doc, err := d.LoadAgent(agent)
		if err != nil {
			if trip.IsKind(err, trip.KindNotFound) {
				continue
			}
			res.add(SeverityCritical, "parse", agent, 0, "%v", err)
			continue
		}
		docs[agent] = doc
		if err := v.schemaPhase(agent, doc, res); err != nil {
			return nil, err
		}
	}

	ps, err := d.LoadPlan()
	if err != nil {
		if !trip.IsKind(err, trip.KindNotFound) {
			return nil, err
		}
		ps = nil
	}

	v.semanticPhase(docs, ps, res)

	for _, issue := range res.Issues {
		v.log.Print(issue)
	}
	return res, nil
}

// schemaPhase re-encodes the unwrapped body and validates it against the
// agent's schema. Every schema violation is critical.
func (v *Validator) schemaPhase(agent string, doc *trip.AgentDoc, res *Result) error {
	raw, err := plandir.EncodeBody(doc)
	if err != nil {
		return fmt.Errorf("agent %s: %w", agent, err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("agent %s: %w", agent, err)
	}
	errs, err := schema.Validate(agent, decoded)
	if err != nil {
		return err
	}
	for _, se := range errs {
		res.Issues = append(res.Issues, Issue{
			Severity: SeverityCritical,
			Check:    "schema",
			Agent:    agent,
			Path:     se.Path,
			Message:  se.Message,
		})
	}
	return nil
}

func (v *Validator) semanticPhase(docs map[string]*trip.AgentDoc, ps *trip.PlanSkeleton, res *Result) {
	for _, agent := range trip.Agents {
		doc, ok := docs[agent]
		if !ok {
			continue
		}
		for di := range doc.Days {
			day := &doc.Days[di]
			for _, si := range day.Items(agent) {
				v.checkCoordinates(agent, day, si, res)
				v.checkLegacyFields(agent, day, si, res)
			}
			if agent == trip.AgentAccommodation && day.Accommodation != nil {
				v.checkCurrency(day, day.Accommodation, res)
			}
			if agent == trip.AgentTimeline && day.Timeline != nil {
				v.checkOverlaps(day, res)
			}
			if agent == trip.AgentBudget && day.Budget != nil {
				v.checkBudgetSum(day, res)
			}
		}
	}
	v.crossAgent(docs, ps, res)
}

func (v *Validator) checkCoordinates(agent string, day *trip.AgentDay, si trip.SlotItem, res *Result) {
	if !v.cfg.Region.MainlandChinaMode {
		return
	}
	c := si.Item.Coordinates
	if c == nil {
		return
	}
	for _, exempt := range v.cfg.Region.ExemptLocations {
		if strings.Contains(day.Location, exempt) {
			return
		}
	}
	r := v.cfg.Region
	if c.Lat < r.LatMin || c.Lat > r.LatMax || c.Lng < r.LngMin || c.Lng > r.LngMax {
		res.add(SeverityWarning, "coordinate_bounds", agent, day.Day,
			"%s %q at {%v, %v} is outside mainland bounds", si.Slot, si.Item.NameBase, c.Lat, c.Lng)
	}
}

func (v *Validator) checkLegacyFields(agent string, day *trip.AgentDay, si trip.SlotItem, res *Result) {
	var found []string
	for _, key := range legacyItemFields {
		if _, ok := si.Item.Extra[key]; ok {
			found = append(found, key)
		}
	}
	if len(found) == 0 {
		return
	}
	sort.Strings(found)
	res.add(SeverityWarning, "legacy_fields", agent, day.Day,
		"%s %q still carries legacy fields %v; run normalize", si.Slot, si.Item.NameBase, found)
}

func (v *Validator) checkCurrency(day *trip.AgentDay, it *trip.Item, res *Result) {
	if it.Cost > 0 && it.Cost < 200 && it.Currency == "" {
		res.add(SeverityWarning, "currency_sanity", trip.AgentAccommodation, day.Day,
			"%q costs %v with no currency; value looks converted, not local", it.NameBase, float64(it.Cost))
	}
}

// timelineSpan is one entry with parsed clock minutes.
type timelineSpan struct {
	name  string
	start int
	end   int
}

func (v *Validator) checkOverlaps(day *trip.AgentDay, res *Result) {
	var spans []timelineSpan
	for _, key := range day.Timeline.Keys() {
		entry, _ := day.Timeline.Get(key)
		start, err := trip.ParseClock(entry.StartTime)
		if err != nil {
			res.add(SeverityCritical, "timeline_clock", trip.AgentTimeline, day.Day,
				"%q: bad start_time %q", key, entry.StartTime)
			continue
		}
		end, err := trip.ParseClock(entry.EndTime)
		if err != nil {
			res.add(SeverityCritical, "timeline_clock", trip.AgentTimeline, day.Day,
				"%q: bad end_time %q", key, entry.EndTime)
			continue
		}
		spans = append(spans, timelineSpan{name: key, start: start, end: end})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		if prev.end <= cur.start {
			continue
		}
		sev := SeverityCritical
		if softOverlap(prev.name) || softOverlap(cur.name) {
			sev = SeverityWarning
		}
		res.add(sev, "timeline_overlap", trip.AgentTimeline, day.Day,
			"%q (ends %s) overlaps %q (starts %s)",
			prev.name, trip.FormatClock(prev.end), cur.name, trip.FormatClock(cur.start))
	}
}

func softOverlap(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range overlapSofteners {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func (v *Validator) checkBudgetSum(day *trip.AgentDay, res *Result) {
	b := day.Budget
	if b.IsZero() {
		return
	}
	if diff := math.Abs(b.Total - b.CategorySum()); diff > 1.0 {
		res.add(SeverityWarning, "budget_sum", trip.AgentBudget, day.Day,
			"total %v differs from category sum %v by %v", b.Total, b.CategorySum(), diff)
	}
}

// crossAgent checks agreement between agent files and the plan skeleton:
// day counts, dates, and locations must line up, and the meals budget
// category should track what the meal items actually cost.
func (v *Validator) crossAgent(docs map[string]*trip.AgentDoc, ps *trip.PlanSkeleton, res *Result) {
	if ps != nil {
		for _, agent := range trip.Agents {
			doc, ok := docs[agent]
			if !ok {
				continue
			}
			if len(doc.Days) != len(ps.Days) {
				res.add(SeverityCritical, "day_count", agent, 0,
					"has %d days, plan skeleton has %d", len(doc.Days), len(ps.Days))
			}
			for di := range doc.Days {
				day := &doc.Days[di]
				ref := ps.Day(day.Day)
				if ref == nil {
					res.add(SeverityCritical, "day_count", agent, day.Day,
						"day %d not present in plan skeleton", day.Day)
					continue
				}
				if day.Date != "" && day.Date != ref.Date {
					res.add(SeverityCritical, "date_agreement", agent, day.Day,
						"date %q, plan skeleton says %q", day.Date, ref.Date)
				}
				if day.Location != "" && day.Location != ref.Location {
					res.add(SeverityCritical, "location_agreement", agent, day.Day,
						"location %q, plan skeleton says %q", day.Location, ref.Location)
				}
			}
		}
	}

	meals, okMeals := docs[trip.AgentMeals]
	budget, okBudget := docs[trip.AgentBudget]
	if !okMeals || !okBudget {
		return
	}
	for di := range budget.Days {
		bday := &budget.Days[di]
		if bday.Budget == nil || bday.Budget.Meals <= 0 {
			continue
		}
		mday := meals.Day(bday.Day)
		if mday == nil {
			continue
		}
		actual := 0.0
		for _, si := range mday.Items(trip.AgentMeals) {
			actual += float64(si.Item.Cost)
		}
		if actual == 0 {
			continue
		}
		drift := math.Abs(actual-bday.Budget.Meals) / bday.Budget.Meals
		if drift > 0.25 {
			res.add(SeverityWarning, "meals_budget_drift", trip.AgentBudget, bday.Day,
				"meal items cost %v, budget allots %v (%.0f%% drift)",
				actual, bday.Budget.Meals, drift*100)
		}
	}
}
