package trip

import (
	"encoding/json"
	"testing"
)

func TestItemRoundTripPreservesUnknownFields(t *testing.T) {
	src := []byte(`{"name_base":"Great Wall","name_local":"长城","cost":40,"vendor_rating":4.8,"tags":["unesco"]}`)

	var it Item
	if err := json.Unmarshal(src, &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.NameBase != "Great Wall" || it.Cost != 40 {
		t.Fatalf("unexpected item: %+v", it)
	}
	if _, ok := it.Extra["vendor_rating"]; !ok {
		t.Fatalf("unknown field not preserved: %v", it.Extra)
	}

	out, err := json.Marshal(it)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back["vendor_rating"] != 4.8 {
		t.Fatalf("vendor_rating lost on write: %v", back)
	}
	if back["name_base"] != "Great Wall" {
		t.Fatalf("name_base lost: %v", back)
	}
}

func TestItemNamesIncludeLegacyName(t *testing.T) {
	var it Item
	if err := json.Unmarshal([]byte(`{"name":"Old Name","name_base":"New Name"}`), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	names := it.Names()
	if len(names) != 2 || names[0] != "New Name" || names[1] != "Old Name" {
		t.Fatalf("unexpected candidates: %v", names)
	}
}

func TestTimelineOrderSurvivesRoundTrip(t *testing.T) {
	src := []byte(`{"Wake up":{"start_time":"07:00","end_time":"07:30"},"Great Wall":{"start_time":"09:00","end_time":"12:00"},"Lunch":{"start_time":"12:30","end_time":"13:30"}}`)

	var tl Timeline
	if err := json.Unmarshal(src, &tl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"Wake up", "Great Wall", "Lunch"}
	got := tl.Keys()
	if len(got) != len(want) {
		t.Fatalf("expected %d keys, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key order changed: got %v want %v", got, want)
		}
	}

	out, err := json.Marshal(&tl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != string(src) {
		t.Fatalf("round trip changed bytes:\n got %s\nwant %s", out, src)
	}
}

func TestTimelineSetPreservesPosition(t *testing.T) {
	tl := NewTimeline()
	tl.Set("a", TimelineEntry{StartTime: "08:00", EndTime: "09:00"})
	tl.Set("b", TimelineEntry{StartTime: "09:00", EndTime: "10:00"})
	tl.Set("a", TimelineEntry{StartTime: "08:30", EndTime: "09:00"})

	keys := tl.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("replacement moved key: %v", keys)
	}
	e, _ := tl.Get("a")
	if e.StartTime != "08:30" {
		t.Fatalf("replacement did not stick: %+v", e)
	}
}

func TestPlanSkeletonCloneIsIndependent(t *testing.T) {
	ps := &PlanSkeleton{
		TripSummary: TripSummary{Dates: "2026-03-01 to 2026-03-02", DurationDays: 2, Preferences: map[string]any{}},
		Days: []PlanDay{
			NewPlanDay(1, "2026-03-01", "Beijing", []string{"Great Wall"}),
			NewPlanDay(2, "2026-03-02", "Beijing", nil),
		},
	}
	ps.Days[0].Timeline.Set("Great Wall", TimelineEntry{StartTime: "09:00", EndTime: "12:00"})

	c := ps.Clone()
	c.Days[0].Location = "Shanghai"
	c.Days[0].Timeline.Set("Bund", TimelineEntry{StartTime: "19:00", EndTime: "20:00"})
	c.Days[0].UserRequirements[0] = "changed"

	if ps.Days[0].Location != "Beijing" {
		t.Fatalf("clone shares day data")
	}
	if ps.Days[0].Timeline.Len() != 1 {
		t.Fatalf("clone shares timeline")
	}
	if ps.Days[0].UserRequirements[0] != "Great Wall" {
		t.Fatalf("clone shares plan slice")
	}
}

func TestDateHelpers(t *testing.T) {
	n, err := DateSpanDays("2026-03-01", "2026-03-05")
	if err != nil {
		t.Fatalf("DateSpanDays: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 days, got %d", n)
	}

	if _, err := DateSpanDays("2026-03-05", "2026-03-01"); !IsKind(err, KindInvalidInput) {
		t.Fatalf("expected invalid input for reversed range, got %v", err)
	}

	start, end, err := ParseDateRange("2026-03-01 to 2026-03-05")
	if err != nil || start != "2026-03-01" || end != "2026-03-05" {
		t.Fatalf("ParseDateRange: %q %q %v", start, end, err)
	}

	m, err := ParseClock("09:30")
	if err != nil || m != 570 {
		t.Fatalf("ParseClock: %d %v", m, err)
	}
	if FormatClock(570) != "09:30" {
		t.Fatalf("FormatClock mismatch: %s", FormatClock(570))
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestErrorKinds(t *testing.T) {
	err := E(KindNotFound, "day %d not found", 7)
	if !IsKind(err, KindNotFound) {
		t.Fatalf("kind lost: %v", err)
	}
	wrapped := Wrap(KindExternalFailure, err, "rate fetch")
	if KindOf(wrapped) != KindExternalFailure {
		t.Fatalf("expected outer kind, got %v", KindOf(wrapped))
	}
}

func TestMoneyToleratesStrings(t *testing.T) {
	var it Item
	if err := json.Unmarshal([]byte(`{"name_base":"x","cost":"42.5"}`), &it); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if it.Cost != 42.5 {
		t.Fatalf("string cost not coerced: %v", it.Cost)
	}
	if err := json.Unmarshal([]byte(`{"name_base":"x","cost":"free"}`), &it); err != nil {
		t.Fatalf("unmarshal bad string: %v", err)
	}
	if it.Cost != 0 {
		t.Fatalf("unparseable cost should coerce to 0, got %v", it.Cost)
	}
}

func TestCoordinatesLegacyKeys(t *testing.T) {
	var c Coordinates
	if err := json.Unmarshal([]byte(`{"latitude":39.9,"longitude":116.4}`), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !c.Legacy || c.Incomplete {
		t.Fatalf("legacy flags wrong: %+v", c)
	}
	if c.Lat != 39.9 || c.Lng != 116.4 {
		t.Fatalf("values wrong: %+v", c)
	}
	out, _ := json.Marshal(c)
	if string(out) != `{"lat":39.9,"lng":116.4}` {
		t.Fatalf("canonical form not emitted: %s", out)
	}

	var half Coordinates
	if err := json.Unmarshal([]byte(`{"lat":39.9}`), &half); err != nil {
		t.Fatalf("unmarshal half: %v", err)
	}
	if !half.Incomplete {
		t.Fatalf("missing lng not flagged: %+v", half)
	}
}

func TestBudgetCategorySum(t *testing.T) {
	b := BudgetBreakdown{Meals: 100, Accommodation: 200, Activities: 50, Shopping: 25, Transportation: 25, Total: 400}
	if b.CategorySum() != 400 {
		t.Fatalf("sum = %v", b.CategorySum())
	}
	if b.IsZero() {
		t.Fatalf("non-zero budget reported zero")
	}
}
