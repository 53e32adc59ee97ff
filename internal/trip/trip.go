// Package trip defines the canonical data model of a travel plan: the
// requirements and plan skeletons, the normalized POI record, the
// per-day timeline, and the classified error taxonomy shared by every
// pipeline stage.
package trip

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
)

// Agent names, one per concern. Each maps to one JSON file in the plan
// directory.
const (
	AgentMeals          = "meals"
	AgentAttractions    = "attractions"
	AgentEntertainment  = "entertainment"
	AgentAccommodation  = "accommodation"
	AgentShopping       = "shopping"
	AgentTransportation = "transportation"
	AgentTimeline       = "timeline"
	AgentBudget         = "budget"
)

// Agents lists all agent names in pipeline order.
var Agents = []string{
	AgentMeals, AgentAttractions, AgentEntertainment, AgentAccommodation,
	AgentShopping, AgentTransportation, AgentTimeline, AgentBudget,
}

// Coordinates is a WGS-84 point. Decoding tolerates the legacy
// {latitude,longitude} key pair; writing always emits {lat,lng}.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	// Legacy marks that the source used latitude/longitude keys;
	// Incomplete marks that one of the pair was missing.
	Legacy     bool `json:"-"`
	Incomplete bool `json:"-"`
}

func (c *Coordinates) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lat       *float64 `json:"lat"`
		Lng       *float64 `json:"lng"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	lat, lng := raw.Lat, raw.Lng
	if lat == nil && raw.Latitude != nil {
		lat = raw.Latitude
		c.Legacy = true
	}
	if lng == nil && raw.Longitude != nil {
		lng = raw.Longitude
		c.Legacy = true
	}
	if lat == nil || lng == nil {
		c.Incomplete = true
		return nil
	}
	c.Lat, c.Lng = *lat, *lng
	return nil
}

// Money is a cost amount that tolerates string-encoded numbers from loose
// agent output; unparseable strings coerce to zero.
type Money float64

func (m *Money) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			*m = 0
			return nil
		}
		*m = Money(f)
		return nil
	}
	if s == "null" {
		*m = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Money(f)
	return nil
}

// TimeWindow is a wall-clock interval in HH:MM, no timezone. Decoding
// tolerates the legacy string forms "HH:MM-HH:MM" and bare "HH:MM" (the
// latter leaves End empty for the synchronizer to fill in).
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type timeWindowJSON TimeWindow

func (w *TimeWindow) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parts := strings.SplitN(s, "-", 2)
		w.Start = strings.TrimSpace(parts[0])
		if len(parts) == 2 {
			w.End = strings.TrimSpace(parts[1])
		}
		return nil
	}
	return json.Unmarshal(data, (*timeWindowJSON)(w))
}

// SearchResult is one canonical external lookup record attached to a POI.
// URL may be empty when the source only provided an ID.
type SearchResult struct {
	Skill       string `json:"skill"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	DisplayText string `json:"display_text"`

	Extra map[string]json.RawMessage `json:"-"`
}

type searchResultJSON SearchResult

func (s SearchResult) MarshalJSON() ([]byte, error) {
	return MarshalWithExtra(searchResultJSON(s), s.Extra)
}

func (s *SearchResult) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*searchResultJSON)(s)); err != nil {
		return err
	}
	extra, err := CollectExtra(data, reflect.TypeOf(searchResultJSON{}))
	if err != nil {
		return err
	}
	s.Extra = extra
	return nil
}

// Item is the canonical POI record after normalization: a common base plus
// kind-specific extensions (cuisine for meals, duration for attractions,
// check-in data for accommodation). Fields the pipeline does not know are
// preserved verbatim in Extra and re-emitted on write.
type Item struct {
	NameBase      string         `json:"name_base"`
	NameLocal     string         `json:"name_local"`
	LocationBase  string         `json:"location_base,omitempty"`
	LocationLocal string         `json:"location_local,omitempty"`
	Coordinates   *Coordinates   `json:"coordinates,omitempty"`
	Cost          Money          `json:"cost"`
	Currency      string         `json:"currency,omitempty"`
	Type          string         `json:"type,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	SearchResults []SearchResult `json:"search_results,omitempty"`
	Time          *TimeWindow    `json:"time,omitempty"`

	// Meals.
	Cuisine         string   `json:"cuisine,omitempty"`
	SignatureDishes []string `json:"signature_dishes,omitempty"`

	// Attractions.
	DurationMinutes float64 `json:"duration_minutes,omitempty"`
	OpeningHours    string  `json:"opening_hours,omitempty"`

	// Accommodation.
	Stars     float64  `json:"stars,omitempty"`
	CheckIn   string   `json:"check_in,omitempty"`
	CheckOut  string   `json:"check_out,omitempty"`
	Amenities []string `json:"amenities,omitempty"`

	// Set during merge; never present in agent files.
	ImageURL string `json:"image_url,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type itemJSON Item

func (it Item) MarshalJSON() ([]byte, error) {
	return MarshalWithExtra(itemJSON(it), it.Extra)
}

func (it *Item) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*itemJSON)(it)); err != nil {
		return err
	}
	extra, err := CollectExtra(data, reflect.TypeOf(itemJSON{}))
	if err != nil {
		return err
	}
	it.Extra = extra
	return nil
}

// Names returns the candidate names used for timeline matching, in
// preference order, with empties removed.
func (it *Item) Names() []string {
	var out []string
	for _, n := range []string{it.NameBase, it.legacyName(), it.NameLocal} {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (it *Item) legacyName() string {
	raw, ok := it.Extra["name"]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// BudgetBreakdown carries per-day budget categories. Total must equal the
// category sum within the validator's tolerance.
type BudgetBreakdown struct {
	Meals          float64 `json:"meals"`
	Accommodation  float64 `json:"accommodation"`
	Activities     float64 `json:"activities"`
	Shopping       float64 `json:"shopping"`
	Transportation float64 `json:"transportation"`
	Total          float64 `json:"total"`

	Extra map[string]json.RawMessage `json:"-"`
}

type budgetBreakdownJSON BudgetBreakdown

func (b BudgetBreakdown) MarshalJSON() ([]byte, error) {
	return MarshalWithExtra(budgetBreakdownJSON(b), b.Extra)
}

func (b *BudgetBreakdown) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*budgetBreakdownJSON)(b)); err != nil {
		return err
	}
	extra, err := CollectExtra(data, reflect.TypeOf(budgetBreakdownJSON{}))
	if err != nil {
		return err
	}
	b.Extra = extra
	return nil
}

// CategorySum returns the sum of the five category fields.
func (b BudgetBreakdown) CategorySum() float64 {
	return b.Meals + b.Accommodation + b.Activities + b.Shopping + b.Transportation
}

// IsZero reports whether every numeric field is zero.
func (b BudgetBreakdown) IsZero() bool {
	return b.Total == 0 && b.CategorySum() == 0
}

// LocationChange describes movement between consecutive-day locations. It is
// derived from day locations, never user-authored.
type LocationChange struct {
	From            string  `json:"from"`
	To              string  `json:"to"`
	Method          string  `json:"method"`
	DepartureTime   string  `json:"departure_time"`
	ArrivalTime     string  `json:"arrival_time"`
	Cost            float64 `json:"cost"`
	BookingRequired bool    `json:"booking_required"`
}

// MealSlot is a plan-skeleton placeholder for one meal; agents overwrite it
// through their own files.
type MealSlot struct {
	Name     string  `json:"name"`
	Location string  `json:"location"`
	Cost     float64 `json:"cost"`
	Notes    string  `json:"notes"`
}

// AccommodationSlot is the plan-skeleton placeholder for lodging.
type AccommodationSlot struct {
	Name            string  `json:"name"`
	Location        string  `json:"location"`
	Cost            float64 `json:"cost"`
	CheckIn         string  `json:"check_in"`
	CheckOut        string  `json:"check_out"`
	BookingRequired bool    `json:"booking_required"`
}

// EmergencyInfo is supplemental safety data initialized empty on the plan
// skeleton.
type EmergencyInfo struct {
	Hospitals      []string `json:"hospitals"`
	PoliceStations []string `json:"police_stations"`
	Embassy        string   `json:"embassy"`
}

// TripSummary is shared by the requirements and plan skeletons.
type TripSummary struct {
	Dates        string         `json:"dates"`
	DurationDays int            `json:"duration_days"`
	Travelers    string         `json:"travelers"`
	Budget       string         `json:"budget"`
	Preferences  map[string]any `json:"preferences"`

	Extra map[string]json.RawMessage `json:"-"`
}

type tripSummaryJSON TripSummary

func (s TripSummary) MarshalJSON() ([]byte, error) {
	return MarshalWithExtra(tripSummaryJSON(s), s.Extra)
}

func (s *TripSummary) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*tripSummaryJSON)(s)); err != nil {
		return err
	}
	extra, err := CollectExtra(data, reflect.TypeOf(tripSummaryJSON{}))
	if err != nil {
		return err
	}
	s.Extra = extra
	return nil
}

// RequirementDay is one day of user intent.
type RequirementDay struct {
	Day       int      `json:"day"`
	Date      string   `json:"date"`
	Location  string   `json:"location"`
	UserPlans []string `json:"user_plans"`

	Extra map[string]json.RawMessage `json:"-"`
}

type requirementDayJSON RequirementDay

func (d RequirementDay) MarshalJSON() ([]byte, error) {
	return MarshalWithExtra(requirementDayJSON(d), d.Extra)
}

func (d *RequirementDay) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*requirementDayJSON)(d)); err != nil {
		return err
	}
	extra, err := CollectExtra(data, reflect.TypeOf(requirementDayJSON{}))
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

// RequirementsSkeleton captures structured trip intent.
type RequirementsSkeleton struct {
	TripSummary       TripSummary       `json:"trip_summary"`
	Days              []RequirementDay  `json:"days"`
	SupplementalNotes map[string]string `json:"supplemental_notes"`
}

// PlanDay is the authoritative per-day container of the plan skeleton. Every
// day carries all slot keys even when empty.
type PlanDay struct {
	Day              int               `json:"day"`
	Date             string            `json:"date"`
	Location         string            `json:"location"`
	LocationChange   *LocationChange   `json:"location_change"`
	UserRequirements []string          `json:"user_requirements"`
	Breakfast        MealSlot          `json:"breakfast"`
	Lunch            MealSlot          `json:"lunch"`
	Dinner           MealSlot          `json:"dinner"`
	Accommodation    AccommodationSlot `json:"accommodation"`
	Attractions      []Item            `json:"attractions"`
	Entertainment    []Item            `json:"entertainment"`
	Shopping         []Item            `json:"shopping"`
	FreeTime         []Item            `json:"free_time"`
	Timeline         *Timeline         `json:"timeline"`
	Budget           BudgetBreakdown   `json:"budget"`

	Extra map[string]json.RawMessage `json:"-"`
}

type planDayJSON PlanDay

func (d PlanDay) MarshalJSON() ([]byte, error) {
	return MarshalWithExtra(planDayJSON(d), d.Extra)
}

func (d *PlanDay) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*planDayJSON)(d)); err != nil {
		return err
	}
	extra, err := CollectExtra(data, reflect.TypeOf(planDayJSON{}))
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

// NewPlanDay returns a plan day with every slot initialized empty.
func NewPlanDay(day int, date, location string, userPlans []string) PlanDay {
	reqs := append([]string{}, userPlans...)
	return PlanDay{
		Day:              day,
		Date:             date,
		Location:         location,
		UserRequirements: reqs,
		Accommodation:    AccommodationSlot{BookingRequired: true},
		Attractions:      []Item{},
		Entertainment:    []Item{},
		Shopping:         []Item{},
		FreeTime:         []Item{},
		Timeline:         NewTimeline(),
	}
}

// PlanSkeleton is the agent-facing plan document.
type PlanSkeleton struct {
	TripSummary   TripSummary    `json:"trip_summary"`
	Days          []PlanDay      `json:"days"`
	EmergencyInfo *EmergencyInfo `json:"emergency_info,omitempty"`
}

// Day returns a pointer to the day with the given number, or nil.
func (p *PlanSkeleton) Day(n int) *PlanDay {
	for i := range p.Days {
		if p.Days[i].Day == n {
			return &p.Days[i]
		}
	}
	return nil
}

// Day returns a pointer to the day with the given number, or nil.
func (r *RequirementsSkeleton) Day(n int) *RequirementDay {
	for i := range r.Days {
		if r.Days[i].Day == n {
			return &r.Days[i]
		}
	}
	return nil
}

// AgentDay is one day of an agent output document. Only the fields the
// agent's concern owns are populated; the rest stay at zero and are omitted
// on write.
type AgentDay struct {
	Day      int    `json:"day"`
	Date     string `json:"date,omitempty"`
	Location string `json:"location,omitempty"`

	Breakfast     *Item            `json:"breakfast,omitempty"`
	Lunch         *Item            `json:"lunch,omitempty"`
	Dinner        *Item            `json:"dinner,omitempty"`
	Attractions   []Item           `json:"attractions,omitempty"`
	Entertainment []Item           `json:"entertainment,omitempty"`
	Shopping      []Item           `json:"shopping,omitempty"`
	Accommodation *Item            `json:"accommodation,omitempty"`
	Options       []Item           `json:"options,omitempty"`
	Timeline      *Timeline        `json:"timeline,omitempty"`
	Budget        *BudgetBreakdown `json:"budget,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

type agentDayJSON AgentDay

func (d AgentDay) MarshalJSON() ([]byte, error) {
	return MarshalWithExtra(agentDayJSON(d), d.Extra)
}

func (d *AgentDay) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, (*agentDayJSON)(d)); err != nil {
		return err
	}
	extra, err := CollectExtra(data, reflect.TypeOf(agentDayJSON{}))
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

// Items returns pointers to every POI of the day relevant to the given
// agent, paired with the slot each came from.
func (d *AgentDay) Items(agent string) []SlotItem {
	var out []SlotItem
	add := func(slot string, it *Item) {
		if it != nil {
			out = append(out, SlotItem{Slot: slot, Item: it})
		}
	}
	addAll := func(slot string, items []Item) {
		for i := range items {
			out = append(out, SlotItem{Slot: slot, Item: &items[i]})
		}
	}
	switch agent {
	case AgentMeals:
		add("breakfast", d.Breakfast)
		add("lunch", d.Lunch)
		add("dinner", d.Dinner)
	case AgentAttractions:
		addAll("attractions", d.Attractions)
	case AgentEntertainment:
		addAll("entertainment", d.Entertainment)
		addAll("options", d.Options)
	case AgentShopping:
		addAll("shopping", d.Shopping)
		addAll("options", d.Options)
	case AgentAccommodation:
		add("accommodation", d.Accommodation)
	case AgentTransportation:
		addAll("options", d.Options)
	}
	return out
}

// SlotItem pairs a POI with the slot name it occupies within a day.
type SlotItem struct {
	Slot string
	Item *Item
}

// AgentDoc is one agent output file. Envelope metadata is retained so a
// wrapped document round-trips with its wrapper intact.
type AgentDoc struct {
	Agent  string `json:"agent,omitempty"`
	Status string `json:"status,omitempty"`
	Notes  string `json:"notes,omitempty"`

	Days []AgentDay `json:"days"`

	// Enveloped is true when the source file wrapped days in {data:{...}}.
	Enveloped bool `json:"-"`
	// Extra holds unknown keys alongside days; EnvelopeExtra holds unknown
	// keys of the outer wrapper when Enveloped is set.
	Extra         map[string]json.RawMessage `json:"-"`
	EnvelopeExtra map[string]json.RawMessage `json:"-"`
}

// Day returns a pointer to the day with the given number, or nil.
func (doc *AgentDoc) Day(n int) *AgentDay {
	for i := range doc.Days {
		if doc.Days[i].Day == n {
			return &doc.Days[i]
		}
	}
	return nil
}
