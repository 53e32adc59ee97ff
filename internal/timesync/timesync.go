// Package timesync propagates the per-day timeline onto every POI's time
// window. The timeline is ground truth: matched POIs take their times from
// it, unmatched POIs keep what they have (normalized) or get reported.
package timesync

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/trip"
	"github.com/wanderplan/wanderplan/internal/validate"
)

// SyncAgents lists the agents whose POIs receive timeline times.
// Transportation is excluded: its entries are the transit rows themselves.
var SyncAgents = []string{
	trip.AgentMeals, trip.AgentAttractions, trip.AgentEntertainment,
	trip.AgentAccommodation, trip.AgentShopping,
}

// Event is one recorded sync action.
type Event struct {
	Agent  string `json:"agent"`
	Day    int    `json:"day"`
	Item   string `json:"item"`
	Detail string `json:"detail"`
}

// Unmatched is a POI no timeline entry accounted for.
type Unmatched struct {
	Agent  string `json:"agent"`
	Day    int    `json:"day"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Report is the structured outcome of one sync run, written to
// sync-report.json.
type Report struct {
	ReportID  string `json:"report_id"`
	Timestamp string `json:"timestamp"`
	PlanID    string `json:"plan_id"`
	DryRun    bool   `json:"dry_run"`

	TimeNormalizations []Event     `json:"time_normalizations"`
	TimelineInjections []Event     `json:"timeline_injections"`
	NameNormalizations []Event     `json:"name_normalizations"`
	MultipleMatches    []Event     `json:"multiple_matches"`
	UnmatchedItems     []Unmatched `json:"unmatched_items"`
	Errors             []string    `json:"errors"`

	Validation []validate.Issue `json:"validation"`
}

// Changed reports whether the run mutated any agent file.
func (r *Report) Changed() bool {
	return len(r.TimeNormalizations) > 0 || len(r.TimelineInjections) > 0
}

// Synchronizer runs the timeline sync over one plan directory.
type Synchronizer struct {
	cfg    *config.Config
	dryRun bool
	log    *log.Logger
}

// New builds a synchronizer; a nil config uses defaults. With dryRun set,
// nothing is written and the report only describes what would change.
func New(cfg *config.Config, dryRun bool) *Synchronizer {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Synchronizer{
		cfg:    cfg,
		dryRun: dryRun,
		log:    log.New(log.Writer(), "[SYNC] ", log.LstdFlags),
	}
}

// Run syncs every POI agent file against the timeline file, reruns
// validation in report-only mode, and writes the sync report. The timeline
// file must exist; everything else is optional.
func (s *Synchronizer) Run(d *plandir.Dir) (*Report, error) {
	tlDoc, err := d.LoadAgent(trip.AgentTimeline)
	if err != nil {
		return nil, err
	}
	timelines := map[int]*trip.Timeline{}
	for i := range tlDoc.Days {
		if tlDoc.Days[i].Timeline != nil {
			timelines[tlDoc.Days[i].Day] = tlDoc.Days[i].Timeline
		}
	}

	report := &Report{
		ReportID:           uuid.NewString(),
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
		PlanID:             d.Slug(),
		DryRun:             s.dryRun,
		TimeNormalizations: []Event{},
		TimelineInjections: []Event{},
		NameNormalizations: []Event{},
		MultipleMatches:    []Event{},
		UnmatchedItems:     []Unmatched{},
		Errors:             []string{},
	}

	for _, agent := range SyncAgents {
		doc, err := d.LoadAgent(agent)
		if err != nil {
			if trip.IsKind(err, trip.KindNotFound) {
				continue
			}
			return nil, err
		}
		changed := s.syncDoc(agent, doc, timelines, report)
		if changed && !s.dryRun {
			if err := d.SaveAgent(agent, doc); err != nil {
				return nil, err
			}
		}
	}

	res, err := validate.New(s.cfg).Directory(d)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
	} else {
		report.Validation = res.Issues
	}

	if !s.dryRun {
		if err := d.WriteReport(plandir.FileSyncReport, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (s *Synchronizer) syncDoc(agent string, doc *trip.AgentDoc, timelines map[int]*trip.Timeline, report *Report) bool {
	changed := false
	for di := range doc.Days {
		day := &doc.Days[di]
		tl := timelines[day.Day]
		for _, si := range day.Items(agent) {
			if s.syncItem(agent, day, si, tl, report) {
				changed = true
			}
		}
	}
	return changed
}

func (s *Synchronizer) syncItem(agent string, day *trip.AgentDay, si trip.SlotItem, tl *trip.Timeline, report *Report) bool {
	it := si.Item
	name := displayName(it)

	m := s.match(si, tl)
	if m.key == "" {
		if it.Time != nil && it.Time.Start != "" {
			return s.normalizeExisting(agent, day, si, report)
		}
		report.UnmatchedItems = append(report.UnmatchedItems, Unmatched{
			Agent: agent, Day: day.Day, Name: name, Reason: m.reason,
		})
		return false
	}

	entry, _ := tl.Get(m.key)
	want := trip.TimeWindow{Start: entry.StartTime, End: entry.EndTime}
	changed := false
	if it.Time == nil || *it.Time != want {
		it.Time = &want
		changed = true
		ev := Event{Agent: agent, Day: day.Day, Item: name,
			Detail: fmt.Sprintf("%s-%s from timeline entry %q", want.Start, want.End, m.key)}
		report.TimelineInjections = append(report.TimelineInjections, ev)
		s.log.Printf("%s day %d: %s <- %q (%s-%s)", agent, day.Day, name, m.key, want.Start, want.End)
		if m.tier > 1 {
			report.NameNormalizations = append(report.NameNormalizations, Event{
				Agent: agent, Day: day.Day, Item: name,
				Detail: fmt.Sprintf("matched timeline key %q at tier %d", m.key, m.tier),
			})
		}
		if m.ambiguous {
			report.MultipleMatches = append(report.MultipleMatches, Event{
				Agent: agent, Day: day.Day, Item: name,
				Detail: fmt.Sprintf("%d timeline entries matched; took %q", m.count, m.key),
			})
		}
	}

	if agent == trip.AgentAccommodation && it.CheckIn == "" {
		it.CheckIn = entry.StartTime
		changed = true
		report.TimelineInjections = append(report.TimelineInjections, Event{
			Agent: agent, Day: day.Day, Item: name,
			Detail: fmt.Sprintf("check_in %s from timeline entry %q", entry.StartTime, m.key),
		})
		s.log.Printf("%s day %d: %s check_in <- %s", agent, day.Day, name, entry.StartTime)
	}
	return changed
}

// normalizeExisting fixes a pre-existing time the timeline could not
// confirm: a bare start gets an end derived from the item's duration.
func (s *Synchronizer) normalizeExisting(agent string, day *trip.AgentDay, si trip.SlotItem, report *Report) bool {
	it := si.Item
	if it.Time.End != "" {
		return false
	}
	start, err := trip.ParseClock(it.Time.Start)
	if err != nil {
		report.Errors = append(report.Errors,
			fmt.Sprintf("%s day %d %s: unparseable time %q", agent, day.Day, displayName(it), it.Time.Start))
		return false
	}
	end := start + s.defaultDuration(it)
	if end > 23*60+59 {
		end = 23*60 + 59
	}
	it.Time.End = trip.FormatClock(end)
	report.TimeNormalizations = append(report.TimeNormalizations, Event{
		Agent: agent, Day: day.Day, Item: displayName(it),
		Detail: fmt.Sprintf("end %s derived from start %s", it.Time.End, it.Time.Start),
	})
	s.log.Printf("%s day %d: %s end <- %s", agent, day.Day, displayName(it), it.Time.End)
	return true
}

func (s *Synchronizer) defaultDuration(it *trip.Item) int {
	if it.DurationMinutes > 0 {
		return int(it.DurationMinutes)
	}
	defaults := s.cfg.Sync.DefaultDurationMinutes
	lower := strings.ToLower(it.Type)
	switch {
	case strings.Contains(lower, "walk") || strings.Contains(lower, "stroll"):
		return defaults["walk"]
	case strings.Contains(lower, "museum") || strings.Contains(lower, "gallery"):
		return defaults["museum"]
	default:
		return defaults["other"]
	}
}

// matchResult carries the outcome of the three-tier name match.
type matchResult struct {
	key       string
	tier      int
	count     int
	ambiguous bool
	reason    string
}

// match finds the timeline entry for a POI. Keys are tried in timeline
// insertion order; transit entries are excluded up front. The best (lowest)
// tier wins; surviving ties go to the slot's meal-hint window, then to the
// first key in order.
func (s *Synchronizer) match(si trip.SlotItem, tl *trip.Timeline) matchResult {
	if tl == nil || tl.Len() == 0 {
		return matchResult{reason: "no timeline for day"}
	}
	candidates := si.Item.Names()
	if len(candidates) == 0 {
		return matchResult{reason: "item has no name"}
	}

	type hit struct {
		key  string
		tier int
	}
	var hits []hit
	best := 4
	for _, key := range tl.Keys() {
		if s.isTransit(key) {
			continue
		}
		tier := matchTier(candidates, key)
		if tier == 0 {
			continue
		}
		hits = append(hits, hit{key: key, tier: tier})
		if tier < best {
			best = tier
		}
	}
	if len(hits) == 0 {
		return matchResult{reason: "no timeline entry matched"}
	}

	var keys []string
	for _, h := range hits {
		if h.tier == best {
			keys = append(keys, h.key)
		}
	}
	if len(keys) == 1 {
		return matchResult{key: keys[0], tier: best, count: 1}
	}

	if window, ok := s.cfg.Sync.MealHints[si.Slot]; ok {
		var inWindow []string
		for _, key := range keys {
			entry, _ := tl.Get(key)
			if start, err := trip.ParseClock(entry.StartTime); err == nil && window.Contains(start/60) {
				inWindow = append(inWindow, key)
			}
		}
		if len(inWindow) == 1 {
			return matchResult{key: inWindow[0], tier: best, count: len(keys)}
		}
		if len(inWindow) > 1 {
			keys = inWindow
		}
	}
	return matchResult{key: keys[0], tier: best, count: len(keys), ambiguous: true}
}

func (s *Synchronizer) isTransit(key string) bool {
	lower := strings.ToLower(key)
	for _, prefix := range s.cfg.Sync.TransitPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// parentheticalRe strips a trailing "(...)" suffix, full- or half-width.
var parentheticalRe = regexp.MustCompile(`\s*[(（][^()（）]*[)）]\s*$`)

func baseName(s string) string {
	return strings.TrimSpace(parentheticalRe.ReplaceAllString(s, ""))
}

// matchTier returns the strongest tier (1 best, 0 none) any candidate
// reaches against the key.
func matchTier(candidates []string, key string) int {
	keyBase := baseName(key)
	best := 0
	better := func(t int) {
		if best == 0 || t < best {
			best = t
		}
	}
	for _, cand := range candidates {
		switch {
		case cand == key:
			better(1)
		case strings.EqualFold(baseName(cand), keyBase):
			better(2)
		case strings.Contains(strings.ToLower(key), strings.ToLower(cand)),
			keyBase != "" && strings.Contains(strings.ToLower(cand), strings.ToLower(keyBase)):
			better(3)
		}
	}
	return best
}

func displayName(it *trip.Item) string {
	if names := it.Names(); len(names) > 0 {
		return names[0]
	}
	return "(unnamed)"
}
