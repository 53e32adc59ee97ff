package timesync

import (
	"testing"

	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/trip"
)

func newDir(t *testing.T) *plandir.Dir {
	t.Helper()
	d, err := plandir.Create(t.TempDir())
	if err != nil {
		t.Fatalf("create dir: %v", err)
	}
	return d
}

func saveAgent(t *testing.T, d *plandir.Dir, agent string, doc *trip.AgentDoc) {
	t.Helper()
	if err := d.SaveAgent(agent, doc); err != nil {
		t.Fatalf("save %s: %v", agent, err)
	}
}

func saveTimeline(t *testing.T, d *plandir.Dir, entries map[int][][3]string) {
	t.Helper()
	doc := &trip.AgentDoc{}
	for day := 1; ; day++ {
		rows, ok := entries[day]
		if !ok {
			break
		}
		tl := trip.NewTimeline()
		for _, row := range rows {
			tl.Set(row[0], trip.TimelineEntry{StartTime: row[1], EndTime: row[2]})
		}
		doc.Days = append(doc.Days, trip.AgentDay{Day: day, Timeline: tl})
	}
	saveAgent(t, d, trip.AgentTimeline, doc)
}

func TestExactMatchInjectsTime(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Wake up", "07:00", "07:30"},
		{"Great Wall", "09:00", "12:00"},
	}})
	saveAgent(t, d, trip.AgentAttractions, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day: 1, Attractions: []trip.Item{{NameBase: "Great Wall", Currency: "CNY"}},
	}}})

	report, err := New(nil, false).Run(d)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.TimelineInjections) != 1 {
		t.Fatalf("injections: %v", report.TimelineInjections)
	}

	doc, err := d.LoadAgent(trip.AgentAttractions)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := doc.Days[0].Attractions[0].Time
	if got == nil || got.Start != "09:00" || got.End != "12:00" {
		t.Fatalf("time not injected: %+v", got)
	}
	if !d.Exists(plandir.FileSyncReport) {
		t.Fatalf("sync report not written")
	}
}

func TestBaseNameMatchRecorded(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Din Tai Fung (鼎泰豐)", "12:00", "13:30"},
	}})
	saveAgent(t, d, trip.AgentMeals, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day:   1,
		Lunch: &trip.Item{NameBase: "din tai fung", Currency: "CNY"},
	}}})

	report, err := New(nil, false).Run(d)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.TimelineInjections) != 1 {
		t.Fatalf("injections: %v", report.TimelineInjections)
	}
	if len(report.NameNormalizations) != 1 {
		t.Fatalf("tier-2 match not recorded: %v", report.NameNormalizations)
	}
}

func TestTransitEntriesExcluded(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Travel to Summer Palace", "08:00", "09:00"},
		{"Summer Palace stroll", "09:00", "12:00"},
	}})
	saveAgent(t, d, trip.AgentAttractions, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day: 1, Attractions: []trip.Item{{NameBase: "Summer Palace", Currency: "CNY"}},
	}}})

	report, err := New(nil, false).Run(d)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	doc, _ := d.LoadAgent(trip.AgentAttractions)
	got := doc.Days[0].Attractions[0].Time
	if got == nil || got.Start != "09:00" {
		t.Fatalf("matched transit entry instead: %+v, report %+v", got, report.TimelineInjections)
	}
}

func TestMealHintDisambiguates(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Dumplings at Wangfujing", "12:00", "13:00"},
		{"Dumplings round two", "18:30", "19:30"},
	}})
	saveAgent(t, d, trip.AgentMeals, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day:    1,
		Lunch:  &trip.Item{NameBase: "Dumplings", Currency: "CNY"},
		Dinner: &trip.Item{NameBase: "Dumplings", Currency: "CNY"},
	}}})

	report, err := New(nil, false).Run(d)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.MultipleMatches) != 0 {
		t.Fatalf("hint should have resolved ambiguity: %v", report.MultipleMatches)
	}

	doc, _ := d.LoadAgent(trip.AgentMeals)
	day := doc.Days[0]
	if day.Lunch.Time == nil || day.Lunch.Time.Start != "12:00" {
		t.Fatalf("lunch time: %+v", day.Lunch.Time)
	}
	if day.Dinner.Time == nil || day.Dinner.Time.Start != "18:30" {
		t.Fatalf("dinner time: %+v", day.Dinner.Time)
	}
}

func TestAmbiguityTakesFirstAndWarns(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Tea house visit", "10:00", "11:00"},
		{"Tea house concert", "15:00", "16:00"},
	}})
	saveAgent(t, d, trip.AgentEntertainment, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day: 1, Entertainment: []trip.Item{{NameBase: "Tea house", Currency: "CNY"}},
	}}})

	report, err := New(nil, false).Run(d)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.MultipleMatches) != 1 {
		t.Fatalf("ambiguity not reported: %v", report.MultipleMatches)
	}
	doc, _ := d.LoadAgent(trip.AgentEntertainment)
	got := doc.Days[0].Entertainment[0].Time
	if got == nil || got.Start != "10:00" {
		t.Fatalf("should take first in timeline order: %+v", got)
	}
}

func TestExistingTimeNormalized(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Something unrelated", "09:00", "10:00"},
	}})
	saveAgent(t, d, trip.AgentAttractions, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day: 1, Attractions: []trip.Item{{
			NameBase: "Hutong Walk", Type: "Walk", Currency: "CNY",
			Time: &trip.TimeWindow{Start: "14:00"},
		}},
	}}})

	report, err := New(nil, false).Run(d)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.TimeNormalizations) != 1 {
		t.Fatalf("normalizations: %v", report.TimeNormalizations)
	}
	doc, _ := d.LoadAgent(trip.AgentAttractions)
	got := doc.Days[0].Attractions[0].Time
	if got == nil || got.End != "15:00" {
		t.Fatalf("walk default not applied: %+v", got)
	}
}

func TestUnmatchedReported(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Morning at the museum", "09:00", "12:00"},
	}})
	saveAgent(t, d, trip.AgentShopping, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day: 1, Shopping: []trip.Item{{NameBase: "Silk Market", Currency: "CNY"}},
	}}})

	report, err := New(nil, false).Run(d)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.UnmatchedItems) != 1 || report.UnmatchedItems[0].Name != "Silk Market" {
		t.Fatalf("unmatched: %v", report.UnmatchedItems)
	}
	doc, _ := d.LoadAgent(trip.AgentShopping)
	if doc.Days[0].Shopping[0].Time != nil {
		t.Fatalf("unmatched item should keep null time")
	}
}

func TestAccommodationCheckInInjected(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Grand Hotel Beijing", "15:00", "15:30"},
	}})
	saveAgent(t, d, trip.AgentAccommodation, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day:           1,
		Accommodation: &trip.Item{NameBase: "Grand Hotel Beijing", Cost: 800, Currency: "CNY"},
	}}})

	_, err := New(nil, false).Run(d)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	doc, _ := d.LoadAgent(trip.AgentAccommodation)
	if got := doc.Days[0].Accommodation.CheckIn; got != "15:00" {
		t.Fatalf("check_in: %q", got)
	}
}

func TestRerunIsNoOp(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Great Wall", "09:00", "12:00"},
	}})
	saveAgent(t, d, trip.AgentAttractions, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day: 1, Attractions: []trip.Item{{NameBase: "Great Wall", Currency: "CNY"}},
	}}})

	s := New(nil, false)
	first, err := s.Run(d)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !first.Changed() {
		t.Fatalf("first run should change files")
	}

	second, err := s.Run(d)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Changed() {
		t.Fatalf("second run not idempotent: injections %v normalizations %v",
			second.TimelineInjections, second.TimeNormalizations)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	d := newDir(t)
	saveTimeline(t, d, map[int][][3]string{1: {
		{"Great Wall", "09:00", "12:00"},
	}})
	saveAgent(t, d, trip.AgentAttractions, &trip.AgentDoc{Days: []trip.AgentDay{{
		Day: 1, Attractions: []trip.Item{{NameBase: "Great Wall", Currency: "CNY"}},
	}}})

	report, err := New(nil, true).Run(d)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if !report.DryRun || !report.Changed() {
		t.Fatalf("dry run report wrong: %+v", report)
	}
	doc, _ := d.LoadAgent(trip.AgentAttractions)
	if doc.Days[0].Attractions[0].Time != nil {
		t.Fatalf("dry run mutated the file")
	}
	if d.Exists(plandir.FileSyncReport) {
		t.Fatalf("dry run wrote the report")
	}
}
