// Package merge assembles the merged plan object: plan-skeleton days as
// the base, normalized agent collections layered on top, image URLs
// resolved from the cache, and display-currency numbers computed from the
// resolved rate. The result is pure derivation and is never written back
// into the plan directory.
package merge

import (
	"encoding/json"
	"log"
	"math"
	"strconv"

	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/images"
	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/trip"
)

// CurrencyConfig is the conversion block handed to the template.
// ExchangeRate is the amount of display currency per one source unit.
type CurrencyConfig struct {
	SourceCurrency  string  `json:"source_currency"`
	DisplayCurrency string  `json:"display_currency"`
	ExchangeRate    float64 `json:"exchange_rate"`
	CurrencySymbol  string  `json:"currency_symbol"`
}

// Day is one merged day of the plan.
type Day struct {
	Day              int                  `json:"day"`
	Date             string               `json:"date"`
	Location         string               `json:"location"`
	Cover            string               `json:"cover,omitempty"`
	LocationChange   *trip.LocationChange `json:"location_change"`
	UserRequirements []string             `json:"user_requirements"`
	Breakfast        *trip.Item           `json:"breakfast"`
	Lunch            *trip.Item           `json:"lunch"`
	Dinner           *trip.Item           `json:"dinner"`
	Accommodation    *trip.Item           `json:"accommodation"`
	Attractions      []trip.Item          `json:"attractions"`
	Entertainment    []trip.Item          `json:"entertainment"`
	Shopping         []trip.Item          `json:"shopping"`
	FreeTime         []trip.Item          `json:"free_time"`
	Timeline         *trip.Timeline       `json:"timeline"`
	Budget           trip.BudgetBreakdown `json:"budget"`
	BudgetDisplay    trip.BudgetBreakdown `json:"budget_display"`
}

// Trip is a run of consecutive days in one location.
type Trip struct {
	Name string `json:"name"`
	Days []Day  `json:"days"`
}

// Plan is the merged plan object consumed by the HTML template and the
// preview server.
type Plan struct {
	TripSummary    trip.TripSummary    `json:"trip_summary"`
	CurrencyConfig CurrencyConfig      `json:"currency_config"`
	EmergencyInfo  *trip.EmergencyInfo `json:"emergency_info,omitempty"`
	Trips          []Trip              `json:"trips"`
	Days           []Day               `json:"days"`
	ImagesCacheRef string              `json:"images_cache_ref"`
}

// Merger builds merged plans from a plan directory.
type Merger struct {
	cfg *config.Config
	log *log.Logger
}

// New builds a merger; a nil config uses defaults.
func New(cfg *config.Config) *Merger {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Merger{
		cfg: cfg,
		log: log.New(log.Writer(), "[MERGE] ", log.LstdFlags),
	}
}

// Build assembles the merged plan. rate is the display-per-source
// multiplier already resolved by the caller.
func (m *Merger) Build(d *plandir.Dir, rate float64) (*Plan, error) {
	ps, err := d.LoadPlan()
	if err != nil {
		return nil, err
	}
	cache, err := images.Load(d)
	if err != nil {
		return nil, err
	}

	docs := map[string]*trip.AgentDoc{}
	for _, agent := range trip.Agents {
		doc, err := d.LoadAgent(agent)
		if err != nil {
			if trip.IsKind(err, trip.KindNotFound) {
				continue
			}
			return nil, err
		}
		docs[agent] = doc
	}

	plan := &Plan{
		TripSummary: ps.TripSummary,
		CurrencyConfig: CurrencyConfig{
			SourceCurrency:  m.cfg.Currency.Source,
			DisplayCurrency: m.cfg.Currency.Display,
			ExchangeRate:    rate,
			CurrencySymbol:  m.cfg.Currency.Symbol,
		},
		EmergencyInfo:  ps.EmergencyInfo,
		ImagesCacheRef: plandir.FileImages,
		Days:           []Day{},
	}

	for i := range ps.Days {
		plan.Days = append(plan.Days, m.buildDay(&ps.Days[i], docs, cache, rate))
	}
	plan.Trips = groupTrips(plan.Days)

	m.log.Printf("%s: merged %d days into %d trips", d.Slug(), len(plan.Days), len(plan.Trips))
	return plan, nil
}

func (m *Merger) buildDay(base *trip.PlanDay, docs map[string]*trip.AgentDoc, cache *images.Cache, rate float64) Day {
	day := Day{
		Day:              base.Day,
		Date:             base.Date,
		Location:         base.Location,
		Cover:            cache.CityCover(base.Location),
		LocationChange:   base.LocationChange,
		UserRequirements: base.UserRequirements,
		Attractions:      []trip.Item{},
		Entertainment:    []trip.Item{},
		Shopping:         []trip.Item{},
		FreeTime:         append([]trip.Item{}, base.FreeTime...),
		Timeline:         base.Timeline,
		Budget:           base.Budget,
	}
	if day.UserRequirements == nil {
		day.UserRequirements = []string{}
	}

	finish := func(it trip.Item) trip.Item { return m.finishItem(it, cache, rate) }

	if doc, ok := docs[trip.AgentMeals]; ok {
		if md := doc.Day(base.Day); md != nil {
			day.Breakfast = finishPtr(md.Breakfast, finish)
			day.Lunch = finishPtr(md.Lunch, finish)
			day.Dinner = finishPtr(md.Dinner, finish)
		}
	}
	if doc, ok := docs[trip.AgentAttractions]; ok {
		if ad := doc.Day(base.Day); ad != nil {
			day.Attractions = finishAll(ad.Attractions, finish)
		}
	}
	if doc, ok := docs[trip.AgentEntertainment]; ok {
		if ed := doc.Day(base.Day); ed != nil {
			day.Entertainment = finishAll(ed.Entertainment, finish)
			day.Entertainment = append(day.Entertainment, finishAll(ed.Options, finish)...)
		}
	}
	if doc, ok := docs[trip.AgentShopping]; ok {
		if sd := doc.Day(base.Day); sd != nil {
			day.Shopping = finishAll(sd.Shopping, finish)
			day.Shopping = append(day.Shopping, finishAll(sd.Options, finish)...)
		}
	}
	if doc, ok := docs[trip.AgentAccommodation]; ok {
		if hd := doc.Day(base.Day); hd != nil {
			day.Accommodation = finishPtr(hd.Accommodation, finish)
		}
	}
	if doc, ok := docs[trip.AgentTimeline]; ok {
		if td := doc.Day(base.Day); td != nil && td.Timeline != nil {
			day.Timeline = td.Timeline
		}
	}
	if doc, ok := docs[trip.AgentBudget]; ok {
		if bd := doc.Day(base.Day); bd != nil && bd.Budget != nil {
			day.Budget = *bd.Budget
		}
	}
	if day.Budget.IsZero() {
		day.Budget = aggregateBudget(&day)
	}
	day.BudgetDisplay = convertBudget(day.Budget, rate)
	return day
}

// finishItem resolves the item's image and attaches the display-currency
// cost as a passthrough field, leaving the canonical fields untouched.
func (m *Merger) finishItem(it trip.Item, cache *images.Cache, rate float64) trip.Item {
	if it.ImageURL == "" {
		if url := cache.Resolve(&it); url != "" {
			it.ImageURL = url
		} else {
			it.ImageURL = cache.FallbackFor(it.Type)
		}
	}
	if it.Cost != 0 {
		display := round2(float64(it.Cost) * rate)
		extra := make(map[string]json.RawMessage, len(it.Extra)+1)
		for k, v := range it.Extra {
			extra[k] = v
		}
		extra["cost_display"] = json.RawMessage(strconv.FormatFloat(display, 'f', -1, 64))
		it.Extra = extra
	}
	return it
}

func finishPtr(it *trip.Item, finish func(trip.Item) trip.Item) *trip.Item {
	if it == nil {
		return nil
	}
	out := finish(*it)
	return &out
}

func finishAll(items []trip.Item, finish func(trip.Item) trip.Item) []trip.Item {
	out := make([]trip.Item, 0, len(items))
	for _, it := range items {
		out = append(out, finish(it))
	}
	return out
}

// aggregateBudget derives a day budget from item costs when the budget
// agent did not provide one.
func aggregateBudget(day *Day) trip.BudgetBreakdown {
	var b trip.BudgetBreakdown
	for _, meal := range []*trip.Item{day.Breakfast, day.Lunch, day.Dinner} {
		if meal != nil {
			b.Meals += float64(meal.Cost)
		}
	}
	if day.Accommodation != nil {
		b.Accommodation = float64(day.Accommodation.Cost)
	}
	for _, it := range day.Attractions {
		b.Activities += float64(it.Cost)
	}
	for _, it := range day.Entertainment {
		b.Activities += float64(it.Cost)
	}
	for _, it := range day.Shopping {
		b.Shopping += float64(it.Cost)
	}
	if day.LocationChange != nil {
		b.Transportation = day.LocationChange.Cost
	}
	b.Total = round2(b.CategorySum())
	return b
}

func convertBudget(b trip.BudgetBreakdown, rate float64) trip.BudgetBreakdown {
	return trip.BudgetBreakdown{
		Meals:          round2(b.Meals * rate),
		Accommodation:  round2(b.Accommodation * rate),
		Activities:     round2(b.Activities * rate),
		Shopping:       round2(b.Shopping * rate),
		Transportation: round2(b.Transportation * rate),
		Total:          round2(b.Total * rate),
	}
}

// groupTrips splits days into runs of consecutive identical locations.
// Day numbering inside each trip is untouched.
func groupTrips(days []Day) []Trip {
	trips := []Trip{}
	for _, day := range days {
		if n := len(trips); n > 0 && trips[n-1].Name == day.Location {
			trips[n-1].Days = append(trips[n-1].Days, day)
			continue
		}
		trips = append(trips, Trip{Name: day.Location, Days: []Day{day}})
	}
	return trips
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
