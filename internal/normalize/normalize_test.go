package normalize

import (
	"encoding/json"
	"testing"

	"github.com/wanderplan/wanderplan/internal/trip"
)

func itemFrom(t *testing.T, src string) *trip.Item {
	t.Helper()
	var it trip.Item
	if err := json.Unmarshal([]byte(src), &it); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return &it
}

func mealDoc(it *trip.Item) *trip.AgentDoc {
	return &trip.AgentDoc{Days: []trip.AgentDay{{Day: 1, Location: "Beijing", Lunch: it}}}
}

func TestBilingualNameSplit(t *testing.T) {
	n := New(Options{})
	it := itemFrom(t, `{"name":"Din Tai Fung (鼎泰豐)"}`)
	doc := mealDoc(it)

	changes := n.Document(trip.AgentMeals, doc, nil)
	if it.NameBase != "Din Tai Fung" {
		t.Fatalf("name_base: %q", it.NameBase)
	}
	if it.NameLocal != "鼎泰豐" {
		t.Fatalf("name_local: %q", it.NameLocal)
	}
	if _, ok := it.Extra["name"]; ok {
		t.Fatalf("legacy name field not removed")
	}
	if len(changes) == 0 {
		t.Fatalf("expected logged changes")
	}

	// Second pass is a no-op.
	again := n.Document(trip.AgentMeals, doc, nil)
	if len(again) != 0 {
		t.Fatalf("second pass not idempotent: %+v", again)
	}
}

func TestNameFallsBackToWholeString(t *testing.T) {
	n := New(Options{})
	it := itemFrom(t, `{"name":"北京烤鸭店"}`)
	n.Document(trip.AgentMeals, mealDoc(it), nil)
	if it.NameBase != "北京烤鸭店" {
		t.Fatalf("name_base: %q", it.NameBase)
	}
	if it.NameLocal != "" {
		t.Fatalf("name_local should stay empty: %q", it.NameLocal)
	}
}

func TestNameEnglishPreferred(t *testing.T) {
	n := New(Options{})
	doc := &trip.AgentDoc{Days: []trip.AgentDay{{Day: 1}}}
	doc.Days[0].Attractions = []trip.Item{
		*itemFrom(t, `{"name":"ignored","name_english":"Summer Palace","name_chinese":"颐和园"}`),
	}

	n.Document(trip.AgentAttractions, doc, nil)
	it := &doc.Days[0].Attractions[0]
	if it.NameBase != "Summer Palace" {
		t.Fatalf("name_english not preferred: %q", it.NameBase)
	}
	if it.NameLocal != "颐和园" {
		t.Fatalf("name_chinese not adopted: %q", it.NameLocal)
	}
	for _, key := range []string{"name", "name_english", "name_chinese"} {
		if _, ok := it.Extra[key]; ok {
			t.Fatalf("legacy field %q not removed", key)
		}
	}
}

func TestLocationLocalClearedWhenASCIIEqual(t *testing.T) {
	n := New(Options{})
	it := itemFrom(t, `{"name_base":"Silk Market","location_base":"Chaoyang","location_local":"Chaoyang"}`)
	doc := &trip.AgentDoc{Days: []trip.AgentDay{{Day: 1, Shopping: []trip.Item{*it}}}}
	n.Document(trip.AgentShopping, doc, nil)
	if got := doc.Days[0].Shopping[0].LocationLocal; got != "" {
		t.Fatalf("ascii duplicate not cleared: %q", got)
	}
}

func TestCoordinateCanonicalization(t *testing.T) {
	n := New(Options{})
	it := itemFrom(t, `{"name_base":"Bund","coordinates":{"latitude":31.24,"longitude":121.49}}`)
	doc := mealDoc(it)
	changes := n.Document(trip.AgentMeals, doc, nil)
	if it.Coordinates == nil || it.Coordinates.Lat != 31.24 {
		t.Fatalf("coordinates lost: %+v", it.Coordinates)
	}
	if it.Coordinates.Legacy {
		t.Fatalf("legacy flag not cleared")
	}
	found := false
	for _, c := range changes {
		if c.Field == "coordinates" {
			found = true
		}
	}
	if !found {
		t.Fatalf("legacy conversion not logged: %+v", changes)
	}

	half := itemFrom(t, `{"name_base":"Nowhere","coordinates":{"lat":31.24}}`)
	doc = mealDoc(half)
	n.Document(trip.AgentMeals, doc, nil)
	if half.Coordinates != nil {
		t.Fatalf("incomplete coordinates should be dropped: %+v", half.Coordinates)
	}
}

func TestGaodeLegacySearchResult(t *testing.T) {
	n := New(Options{})
	doc := &trip.AgentDoc{Days: []trip.AgentDay{{Day: 1}}}
	it := itemFrom(t, `{"name_base":"Great Wall","search_results":[{"source":"gaode","gaode_id":"B000A7O1CU"}]}`)
	doc.Days[0].Attractions = []trip.Item{*it}

	n.Document(trip.AgentAttractions, doc, nil)
	sr := doc.Days[0].Attractions[0].SearchResults[0]
	if sr.Skill != "gaode-maps" || sr.Type != "poi_search" {
		t.Fatalf("gaode record not converted: %+v", sr)
	}
	if sr.URL != "https://www.amap.com/place/B000A7O1CU" {
		t.Fatalf("url wrong: %q", sr.URL)
	}
	if sr.DisplayText != "高德地图 - B000A7O1CU" {
		t.Fatalf("display text wrong: %q", sr.DisplayText)
	}
}

func TestEURCostMigration(t *testing.T) {
	n := New(Options{SourceCurrency: "CNY", EURRate: 7.8})
	doc := &trip.AgentDoc{Days: []trip.AgentDay{{Day: 1}}}
	doc.Days[0].Attractions = []trip.Item{*itemFrom(t, `{"name_base":"Opera","ticket_price_eur":10}`)}

	n.Document(trip.AgentAttractions, doc, nil)
	it := &doc.Days[0].Attractions[0]
	if it.Cost != 78 {
		t.Fatalf("cost: %v", it.Cost)
	}
	if it.Currency != "CNY" {
		t.Fatalf("currency: %q", it.Currency)
	}
	if _, ok := it.Extra["ticket_price_eur"]; ok {
		t.Fatalf("legacy cost field not removed")
	}
}

func TestTypeDefaultsAndTitleCase(t *testing.T) {
	n := New(Options{})
	doc := &trip.AgentDoc{Days: []trip.AgentDay{{Day: 1}}}
	doc.Days[0].Attractions = []trip.Item{
		*itemFrom(t, `{"name_base":"Hutong Walk","type":"night_market"}`),
		*itemFrom(t, `{"name_base":"Mystery"}`),
		*itemFrom(t, `{"name_base":"Temple","type":"UNESCO site"}`),
	}

	n.Document(trip.AgentAttractions, doc, nil)
	items := doc.Days[0].Attractions
	if items[0].Type != "Night Market" {
		t.Fatalf("snake_case not titled: %q", items[0].Type)
	}
	if items[1].Type != "Attraction" {
		t.Fatalf("attraction default wrong: %q", items[1].Type)
	}
	if items[2].Type != "UNESCO Site" {
		t.Fatalf("acronym mangled: %q", items[2].Type)
	}
}

func TestDurationParsing(t *testing.T) {
	n := New(Options{})
	doc := &trip.AgentDoc{Days: []trip.AgentDay{{Day: 1}}}
	doc.Days[0].Attractions = []trip.Item{
		*itemFrom(t, `{"name_base":"A","recommended_duration":"1.5h"}`),
		*itemFrom(t, `{"name_base":"B","recommended_duration":"90 min"}`),
		*itemFrom(t, `{"name_base":"C","recommended_duration":"2-3 hours"}`),
		*itemFrom(t, `{"name_base":"D","type":"Walk"}`),
		*itemFrom(t, `{"name_base":"E","type":"Museum"}`),
		*itemFrom(t, `{"name_base":"F"}`),
	}

	n.Document(trip.AgentAttractions, doc, nil)
	want := []float64{90, 90, 120, 60, 120, 90}
	for i, w := range want {
		if got := doc.Days[0].Attractions[i].DurationMinutes; got != w {
			t.Fatalf("item %d duration = %v, want %v", i, got, w)
		}
	}
}

func TestDurationDefaultsConfigurable(t *testing.T) {
	n := New(Options{Durations: map[string]int{"walk": 30, "other": 45}})
	doc := &trip.AgentDoc{Days: []trip.AgentDay{{Day: 1}}}
	doc.Days[0].Attractions = []trip.Item{
		*itemFrom(t, `{"name_base":"D","type":"Walk"}`),
		*itemFrom(t, `{"name_base":"E","type":"Museum"}`),
		*itemFrom(t, `{"name_base":"F"}`),
	}

	n.Document(trip.AgentAttractions, doc, nil)
	want := []float64{30, 120, 45}
	for i, w := range want {
		if got := doc.Days[0].Attractions[i].DurationMinutes; got != w {
			t.Fatalf("item %d duration = %v, want %v", i, got, w)
		}
	}
}

func TestDayMetadataBackfill(t *testing.T) {
	n := New(Options{})
	ps := &trip.PlanSkeleton{Days: []trip.PlanDay{
		trip.NewPlanDay(1, "2026-03-01", "Beijing", nil),
	}}
	doc := &trip.AgentDoc{Days: []trip.AgentDay{{Day: 1}}}

	n.Document(trip.AgentShopping, doc, ps)
	if doc.Days[0].Date != "2026-03-01" || doc.Days[0].Location != "Beijing" {
		t.Fatalf("backfill failed: %+v", doc.Days[0])
	}
}

func TestSARCurrencyCorrection(t *testing.T) {
	n := New(Options{})
	doc := &trip.AgentDoc{Days: []trip.AgentDay{{
		Day:           1,
		Location:      "Hong Kong",
		Accommodation: itemFrom(t, `{"name_base":"Harbour Hotel","cost":900,"currency":"CNY"}`),
	}}}

	changes := n.Document(trip.AgentAccommodation, doc, nil)
	if doc.Days[0].Accommodation.Currency != "HKD" {
		t.Fatalf("currency: %q", doc.Days[0].Accommodation.Currency)
	}
	found := false
	for _, c := range changes {
		if c.Field == "currency" && c.New == "HKD" {
			found = true
		}
	}
	if !found {
		t.Fatalf("currency change not logged: %+v", changes)
	}
}

func TestMealCuisineDefault(t *testing.T) {
	n := New(Options{})
	it := itemFrom(t, `{"name_base":"Noodle House","type":"Sichuan"}`)
	n.Document(trip.AgentMeals, mealDoc(it), nil)
	if it.Cuisine != "Sichuan" {
		t.Fatalf("cuisine: %q", it.Cuisine)
	}

	plain := itemFrom(t, `{"name_base":"Corner Shop"}`)
	n.Document(trip.AgentMeals, mealDoc(plain), nil)
	if plain.Cuisine != "Local" {
		t.Fatalf("cuisine default: %q", plain.Cuisine)
	}
}

func TestSmartTitle(t *testing.T) {
	cases := map[string]string{
		"night market":         "Night Market",
		"temple of the heaven": "Temple of the Heaven",
		"UNESCO site":          "UNESCO Site",
		"AAAA+ scenic area":    "AAAA+ Scenic Area",
		"park / garden":        "Park / Garden",
		"of the people":        "Of the People",
	}
	for in, want := range cases {
		if got := SmartTitle(in); got != want {
			t.Fatalf("SmartTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
