// Package normalize reconciles legacy and current agent field shapes into
// the canonical POI record. Every rule is idempotent: a second pass over
// already-normalized data changes nothing and logs nothing.
package normalize

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/trip"
)

// Change records one field modification for the normalization report.
type Change struct {
	Agent string `json:"agent"`
	Day   int    `json:"day"`
	Item  string `json:"item"`
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Options configures currency conversion for EUR-denominated legacy costs
// and the duration fallbacks applied when no value can be parsed.
type Options struct {
	// SourceCurrency is the currency converted costs land in.
	SourceCurrency string
	// EURRate is the amount of SourceCurrency per one EUR.
	EURRate float64
	// Durations maps "walk", "museum", "other" to fallback minutes. The
	// same table drives timeline sync (config sync.default_duration_minutes).
	Durations map[string]int
}

// Normalizer applies the canonicalization rules to agent documents.
type Normalizer struct {
	opts Options
	log  *log.Logger
}

// New builds a normalizer; zero options default to CNY at 7.8 per EUR.
func New(opts Options) *Normalizer {
	if opts.SourceCurrency == "" {
		opts.SourceCurrency = "CNY"
	}
	if opts.EURRate <= 0 {
		opts.EURRate = 7.8
	}
	durations := map[string]int{"walk": 60, "museum": 120, "other": 90}
	for k, v := range opts.Durations {
		if v > 0 {
			durations[k] = v
		}
	}
	opts.Durations = durations
	return &Normalizer{
		opts: opts,
		log:  log.New(log.Writer(), "[NORMALIZE] ", log.LstdFlags),
	}
}

// poiAgents lists the agents whose items carry the canonical POI shape.
var poiAgents = []string{
	trip.AgentMeals, trip.AgentAttractions, trip.AgentEntertainment,
	trip.AgentAccommodation, trip.AgentShopping, trip.AgentTransportation,
}

// POIAgents returns the agents the normalizer operates on.
func POIAgents() []string { return append([]string(nil), poiAgents...) }

// Document normalizes one agent document in place. The plan skeleton
// supplies day-level date/location backfill; it may be nil.
func (n *Normalizer) Document(agent string, doc *trip.AgentDoc, ps *trip.PlanSkeleton) []Change {
	var changes []Change
	for di := range doc.Days {
		day := &doc.Days[di]
		changes = append(changes, n.dayMetadata(agent, day, ps)...)
		for _, si := range day.Items(agent) {
			changes = append(changes, n.item(agent, day, si.Slot, si.Item)...)
		}
	}
	for _, c := range changes {
		n.log.Printf("%s day %d %s: %s %v -> %v", c.Agent, c.Day, c.Item, c.Field, c.Old, c.New)
	}
	return changes
}

// Directory normalizes every POI agent file present in the plan directory,
// writing back only the files that changed. Missing agent files are skipped.
func (n *Normalizer) Directory(d *plandir.Dir, ps *trip.PlanSkeleton) (map[string][]Change, error) {
	report := map[string][]Change{}
	for _, agent := range poiAgents {
		doc, err := d.LoadAgent(agent)
		if err != nil {
			if trip.IsKind(err, trip.KindNotFound) {
				continue
			}
			return nil, err
		}
		changes := n.Document(agent, doc, ps)
		if len(changes) == 0 {
			continue
		}
		if err := d.SaveAgent(agent, doc); err != nil {
			return nil, err
		}
		report[agent] = changes
	}
	return report, nil
}

func (n *Normalizer) dayMetadata(agent string, day *trip.AgentDay, ps *trip.PlanSkeleton) []Change {
	if ps == nil {
		return nil
	}
	ref := ps.Day(day.Day)
	if ref == nil {
		return nil
	}
	var changes []Change
	if day.Date == "" && ref.Date != "" {
		day.Date = ref.Date
		changes = append(changes, Change{Agent: agent, Day: day.Day, Item: "(day)", Field: "date", Old: nil, New: ref.Date})
	}
	if day.Location == "" && ref.Location != "" {
		day.Location = ref.Location
		changes = append(changes, Change{Agent: agent, Day: day.Day, Item: "(day)", Field: "location", Old: nil, New: ref.Location})
	}
	return changes
}

func (n *Normalizer) item(agent string, day *trip.AgentDay, slot string, it *trip.Item) []Change {
	var changes []Change
	add := func(field string, old, val any) {
		changes = append(changes, Change{Agent: agent, Day: day.Day, Item: slot, Field: field, Old: old, New: val})
	}

	n.bilingualName(it, add)
	n.bilingualLocation(it, add)
	n.coordinates(it, add)
	n.searchResults(it, add)
	n.cost(it, add)
	n.itemType(agent, it, add)
	if agent == trip.AgentAttractions {
		n.duration(it, add)
	}
	if agent == trip.AgentMeals && it.Cuisine == "" {
		cuisine := "Local"
		if it.Type != "" && it.Type != "Other" {
			cuisine = it.Type
		}
		it.Cuisine = cuisine
		add("cuisine", nil, cuisine)
	}
	if agent == trip.AgentAccommodation {
		n.sarCurrency(day, it, add)
	}
	return changes
}

// bilingualRe splits "English Name (中文名)" into base and local parts.
var bilingualRe = regexp.MustCompile(`^([A-Za-z][\w\s'\-]+?)(?:\s*[(（](.+?)[)）])?\s*$`)

func (n *Normalizer) bilingualName(it *trip.Item, add func(string, any, any)) {
	local := func() string {
		for _, key := range []string{"name_chinese", "name_cn"} {
			if v, ok := extraString(it, key); ok && v != "" {
				return v
			}
		}
		return ""
	}

	if it.NameBase == "" {
		cn := local()
		if en, ok := firstExtraString(it, "name_english", "name_en"); ok && en != "" {
			it.NameBase = en
		} else if name, ok := extraString(it, "name"); ok && name != "" {
			if m := bilingualRe.FindStringSubmatch(name); m != nil && m[2] != "" {
				it.NameBase = strings.TrimSpace(m[1])
				if cn == "" {
					cn = strings.TrimSpace(m[2])
				}
			} else {
				it.NameBase = name
			}
		}
		if it.NameBase != "" {
			add("name_base", nil, it.NameBase)
		}
		if it.NameLocal == "" && cn != "" {
			it.NameLocal = cn
			add("name_local", nil, cn)
		}
	} else if it.NameLocal == "" {
		if cn := local(); cn != "" {
			it.NameLocal = cn
			add("name_local", nil, cn)
		}
	}
	dropExtra(it, "name", "name_english", "name_en", "name_chinese", "name_cn")
}

func (n *Normalizer) bilingualLocation(it *trip.Item, add func(string, any, any)) {
	if it.LocationBase == "" {
		if loc, ok := firstExtraString(it, "location", "address"); ok && loc != "" {
			it.LocationBase = loc
			add("location_base", nil, loc)
			if it.LocationLocal == "" && containsCJK(loc) {
				it.LocationLocal = loc
				add("location_local", nil, loc)
			}
		}
	}
	// An ASCII local "translation" identical to the base carries nothing.
	if it.LocationLocal != "" && it.LocationLocal == it.LocationBase && isASCII(it.LocationLocal) {
		add("location_local", it.LocationLocal, "")
		it.LocationLocal = ""
	}
	dropExtra(it, "location", "address")
}

func (n *Normalizer) coordinates(it *trip.Item, add func(string, any, any)) {
	c := it.Coordinates
	if c == nil {
		return
	}
	if c.Incomplete {
		add("coordinates", "incomplete pair", nil)
		it.Coordinates = nil
		return
	}
	if c.Legacy {
		add("coordinates", "latitude/longitude keys", fmt.Sprintf("{lat:%v, lng:%v}", c.Lat, c.Lng))
		c.Legacy = false
	}
}

func (n *Normalizer) searchResults(it *trip.Item, add func(string, any, any)) {
	for i := range it.SearchResults {
		sr := &it.SearchResults[i]
		if sr.Skill != "" || sr.URL != "" {
			continue
		}
		source, _ := rawString(sr.Extra["source"])
		id, okID := rawString(sr.Extra["gaode_id"])
		if source == "gaode" && okID && id != "" {
			sr.Skill = "gaode-maps"
			sr.Type = "poi_search"
			sr.URL = "https://www.amap.com/place/" + id
			sr.DisplayText = "高德地图 - " + id
			delete(sr.Extra, "source")
			delete(sr.Extra, "gaode_id")
			add(fmt.Sprintf("search_results[%d]", i), "gaode legacy record", sr.URL)
		}
	}
}

func (n *Normalizer) cost(it *trip.Item, add func(string, any, any)) {
	if it.Cost != 0 {
		return
	}
	for _, key := range []string{"ticket_price_eur", "price_per_night_eur", "cost_eur"} {
		if eur, ok := extraNumber(it, key); ok && eur != 0 {
			it.Cost = trip.Money(math.Round(eur*n.opts.EURRate*100) / 100)
			it.Currency = n.opts.SourceCurrency
			dropExtra(it, key)
			add("cost", fmt.Sprintf("%s=%v", key, eur), float64(it.Cost))
			return
		}
	}
	if cny, ok := extraNumber(it, "cost_cny"); ok && cny != 0 {
		it.Cost = trip.Money(cny)
		it.Currency = "CNY"
		dropExtra(it, "cost_cny")
		add("cost", "cost_cny", cny)
	}
}

func (n *Normalizer) itemType(agent string, it *trip.Item, add func(string, any, any)) {
	if it.Type == "" {
		if category, ok := extraString(it, "category"); ok && category != "" {
			it.Type = category
			add("type", "category", category)
		} else {
			switch agent {
			case trip.AgentAttractions:
				it.Type = "Attraction"
			case trip.AgentEntertainment:
				it.Type = "Entertainment"
			default:
				it.Type = "Other"
			}
			add("type", nil, it.Type)
		}
	}
	dropExtra(it, "category")

	titled := SmartTitle(strings.ReplaceAll(it.Type, "_", " "))
	if titled != it.Type {
		add("type", it.Type, titled)
		it.Type = titled
	}
}

var (
	durationRangeRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*-\s*(\d+(?:\.\d+)?)\s*h`)
	durationHoursRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*h`)
	durationMinsRe  = regexp.MustCompile(`(?i)(\d+)\s*min`)
)

func (n *Normalizer) duration(it *trip.Item, add func(string, any, any)) {
	if it.DurationMinutes != 0 {
		dropExtra(it, "recommended_duration", "recommended_duration_hours")
		return
	}
	if hours, ok := extraNumber(it, "recommended_duration_hours"); ok && hours > 0 {
		it.DurationMinutes = math.Round(hours * 60)
		dropExtra(it, "recommended_duration", "recommended_duration_hours")
		add("duration_minutes", "recommended_duration_hours", it.DurationMinutes)
		return
	}
	if rec, ok := extraString(it, "recommended_duration"); ok && rec != "" {
		if minutes, parsed := parseDurationText(rec); parsed {
			it.DurationMinutes = minutes
			dropExtra(it, "recommended_duration", "recommended_duration_hours")
			add("duration_minutes", rec, minutes)
			return
		}
	}
	lower := strings.ToLower(it.Type)
	kind := "other"
	switch {
	case strings.Contains(lower, "walk") || strings.Contains(lower, "stroll"):
		kind = "walk"
	case strings.Contains(lower, "museum") || strings.Contains(lower, "gallery"):
		kind = "museum"
	}
	it.DurationMinutes = float64(n.opts.Durations[kind])
	dropExtra(it, "recommended_duration", "recommended_duration_hours")
	add("duration_minutes", nil, it.DurationMinutes)
}

// parseDurationText reads "1.5h", "90 min", or "2-3 hours" (lower bound).
func parseDurationText(s string) (float64, bool) {
	if m := durationRangeRe.FindStringSubmatch(s); m != nil {
		low, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return math.Round(low * 60), true
		}
	}
	if m := durationHoursRe.FindStringSubmatch(s); m != nil {
		h, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return math.Round(h * 60), true
		}
	}
	if m := durationMinsRe.FindStringSubmatch(s); m != nil {
		mins, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return mins, true
		}
	}
	return 0, false
}

// sarCurrencies maps special-administrative-region substrings to the
// currency actually charged there.
var sarCurrencies = []struct {
	substr   string
	currency string
}{
	{"Hong Kong", "HKD"},
	{"Macau", "MOP"},
	{"Macao", "MOP"},
}

func (n *Normalizer) sarCurrency(day *trip.AgentDay, it *trip.Item, add func(string, any, any)) {
	for _, sar := range sarCurrencies {
		if strings.Contains(day.Location, sar.substr) {
			if it.Currency != sar.currency {
				add("currency", it.Currency, sar.currency)
				it.Currency = sar.currency
			}
			return
		}
	}
}

func containsCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4E00 && r <= 0x9FFF {
			return true
		}
	}
	return false
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return false
		}
	}
	return true
}

func extraString(it *trip.Item, key string) (string, bool) {
	raw, ok := it.Extra[key]
	if !ok {
		return "", false
	}
	return rawString(raw)
}

func firstExtraString(it *trip.Item, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := extraString(it, key); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func extraNumber(it *trip.Item, key string) (float64, bool) {
	raw, ok := it.Extra[key]
	if !ok {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	if s, ok := rawString(raw); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func rawString(raw json.RawMessage) (string, bool) {
	if raw == nil {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return "", false
}

func dropExtra(it *trip.Item, keys ...string) {
	for _, key := range keys {
		delete(it.Extra, key)
	}
}
