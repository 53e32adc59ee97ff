// Package skeleton builds the requirements and plan skeletons from a trip
// parameter bundle and applies atomic mutations to them afterwards.
package skeleton

import (
	"sort"

	"github.com/wanderplan/wanderplan/internal/trip"
)

// Params is the generator input bundle.
type Params struct {
	Slug         string
	StartDate    string
	EndDate      string
	DurationDays int
	Travelers    string
	Budget       string
	Preferences  map[string]any
	Days         []trip.RequirementDay
}

func (p Params) validate() error {
	if p.Preferences == nil {
		return trip.E(trip.KindInvalidInput, "preferences must be an object")
	}
	if len(p.Days) == 0 {
		return trip.E(trip.KindInvalidInput, "days must be a non-empty array")
	}
	for i, d := range p.Days {
		if d.Day <= 0 {
			return trip.E(trip.KindInvalidInput, "days[%d]: missing day number", i)
		}
		if d.Date == "" {
			return trip.E(trip.KindInvalidInput, "days[%d]: missing date", i)
		}
		if d.Location == "" {
			return trip.E(trip.KindInvalidInput, "days[%d]: missing location", i)
		}
	}
	if p.DurationDays != len(p.Days) {
		return trip.E(trip.KindInvalidInput,
			"duration_days (%d) does not match day count (%d)", p.DurationDays, len(p.Days))
	}
	span, err := trip.DateSpanDays(p.StartDate, p.EndDate)
	if err != nil {
		return err
	}
	if span != p.DurationDays {
		return trip.E(trip.KindInvalidInput,
			"date range spans %d days but duration_days is %d", span, p.DurationDays)
	}
	return nil
}

// Generate builds the requirements and plan skeletons. Per-day slots start
// empty and location transitions are derived once at the end.
func Generate(p Params) (*trip.RequirementsSkeleton, *trip.PlanSkeleton, error) {
	if err := p.validate(); err != nil {
		return nil, nil, err
	}

	summary := trip.TripSummary{
		Dates:        trip.FormatDateRange(p.StartDate, p.EndDate),
		DurationDays: p.DurationDays,
		Travelers:    p.Travelers,
		Budget:       p.Budget,
		Preferences:  p.Preferences,
	}

	days := append([]trip.RequirementDay(nil), p.Days...)
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })

	rs := &trip.RequirementsSkeleton{
		TripSummary:       summary,
		Days:              make([]trip.RequirementDay, len(days)),
		SupplementalNotes: map[string]string{},
	}
	psSummary := summary
	psSummary.Preferences = make(map[string]any, len(p.Preferences))
	for k, v := range p.Preferences {
		psSummary.Preferences[k] = v
	}

	ps := &trip.PlanSkeleton{
		TripSummary: psSummary,
		Days:        make([]trip.PlanDay, len(days)),
		EmergencyInfo: &trip.EmergencyInfo{
			Hospitals:      []string{},
			PoliceStations: []string{},
		},
	}

	for i, d := range days {
		if d.UserPlans == nil {
			d.UserPlans = []string{}
		}
		rs.Days[i] = d
		ps.Days[i] = trip.NewPlanDay(d.Day, d.Date, d.Location, d.UserPlans)
	}

	DeriveTransitions(ps.Days)
	resolveRequirementArrows(rs.Days)
	return rs, ps, nil
}
