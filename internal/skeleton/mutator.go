package skeleton

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/trip"
)

// Mutator applies atomic operations to the skeleton pair of one plan
// directory. Every operation loads both files, mutates deep copies in
// memory, and writes both back; if the second write fails the first file is
// restored from its backup so the pair never diverges.
type Mutator struct {
	dir *plandir.Dir
	log *log.Logger
}

// NewMutator binds a mutator to a plan directory.
func NewMutator(d *plandir.Dir) *Mutator {
	return &Mutator{
		dir: d,
		log: log.New(log.Writer(), "[SKELETON] ", log.LstdFlags),
	}
}

// Changes is the human-readable summary of what an operation did.
type Changes []string

func (c *Changes) addf(format string, args ...any) {
	*c = append(*c, fmt.Sprintf(format, args...))
}

// apply runs one operation transactionally against the RS+PS pair.
func (m *Mutator) apply(op func(rs *trip.RequirementsSkeleton, ps *trip.PlanSkeleton, c *Changes) error) (Changes, error) {
	rs, err := m.dir.LoadRequirements()
	if err != nil {
		return nil, err
	}
	ps, err := m.dir.LoadPlan()
	if err != nil {
		return nil, err
	}
	rsBackup := rs.Clone()

	var changes Changes
	if err := op(rs, ps, &changes); err != nil {
		return nil, err
	}

	if err := m.dir.SaveRequirements(rs); err != nil {
		return nil, err
	}
	if err := m.dir.SavePlan(ps); err != nil {
		// Restore the first write so the pair stays consistent.
		if rbErr := m.dir.SaveRequirements(rsBackup); rbErr != nil {
			m.log.Printf("rollback failed: %v", rbErr)
		}
		return nil, fmt.Errorf("write plan skeleton (rolled back): %w", err)
	}

	for _, c := range changes {
		m.log.Printf("%s", c)
	}
	return changes, nil
}

func dayNumbers(rs *trip.RequirementsSkeleton) []int {
	nums := make([]int, len(rs.Days))
	for i, d := range rs.Days {
		nums[i] = d.Day
	}
	return nums
}

func findDays(rs *trip.RequirementsSkeleton, ps *trip.PlanSkeleton, n int) (*trip.RequirementDay, *trip.PlanDay, error) {
	rd := rs.Day(n)
	pd := ps.Day(n)
	if rd == nil || pd == nil {
		return nil, nil, trip.E(trip.KindNotFound,
			"day %d not found, available days: %v", n, dayNumbers(rs))
	}
	return rd, pd, nil
}

// UpdateDayLocation changes one day's location on both skeletons and
// re-derives transitions everywhere.
func (m *Mutator) UpdateDayLocation(day int, location string) (Changes, error) {
	return m.apply(func(rs *trip.RequirementsSkeleton, ps *trip.PlanSkeleton, c *Changes) error {
		rd, pd, err := findDays(rs, ps, day)
		if err != nil {
			return err
		}
		old := pd.Location
		rd.Location = location
		pd.Location = location
		DeriveTransitions(ps.Days)
		resolveRequirementArrows(rs.Days)
		c.addf("Updated day %d location: %q -> %q", day, old, pd.Location)
		c.addf("Re-detected location changes: %d found", countTransitions(ps.Days))
		return nil
	})
}

// AddPlan appends a user plan to one day on both skeletons.
func (m *Mutator) AddPlan(day int, text string) (Changes, error) {
	return m.apply(func(rs *trip.RequirementsSkeleton, ps *trip.PlanSkeleton, c *Changes) error {
		rd, pd, err := findDays(rs, ps, day)
		if err != nil {
			return err
		}
		rd.UserPlans = append(rd.UserPlans, text)
		pd.UserRequirements = append(pd.UserRequirements, text)
		c.addf("Added plan to day %d: %q", day, text)
		return nil
	})
}

// RemovePlan removes every plan containing text (case-insensitive) from one
// day on both skeletons.
func (m *Mutator) RemovePlan(day int, text string) (Changes, error) {
	return m.apply(func(rs *trip.RequirementsSkeleton, ps *trip.PlanSkeleton, c *Changes) error {
		rd, pd, err := findDays(rs, ps, day)
		if err != nil {
			return err
		}
		needle := strings.ToLower(text)
		keep := func(plans []string) ([]string, int) {
			out := plans[:0:0]
			for _, p := range plans {
				if !strings.Contains(strings.ToLower(p), needle) {
					out = append(out, p)
				}
			}
			return out, len(plans) - len(out)
		}
		var removedRS, removedPS int
		rd.UserPlans, removedRS = keep(rd.UserPlans)
		pd.UserRequirements, removedPS = keep(pd.UserRequirements)
		if removedRS == 0 && removedPS == 0 {
			c.addf("No matching plans found for %q in day %d", text, day)
			return nil
		}
		removed := removedRS
		if removedPS > removed {
			removed = removedPS
		}
		c.addf("Removed %d plan(s) matching %q from day %d", removed, text, day)
		return nil
	})
}

// SetPlans replaces one day's plan list on both skeletons.
func (m *Mutator) SetPlans(day int, plans []string) (Changes, error) {
	return m.apply(func(rs *trip.RequirementsSkeleton, ps *trip.PlanSkeleton, c *Changes) error {
		rd, pd, err := findDays(rs, ps, day)
		if err != nil {
			return err
		}
		old := len(rd.UserPlans)
		rd.UserPlans = append([]string{}, plans...)
		pd.UserRequirements = append([]string{}, plans...)
		c.addf("Replaced day %d plans: %d -> %d items", day, old, len(plans))
		return nil
	})
}

// SummaryUpdate carries the trip-summary fields to change; nil fields are
// left alone. Multiple fields may be combined in one call.
type SummaryUpdate struct {
	Budget      *string
	Travelers   *string
	Preferences map[string]any
	Dates       *[2]string
}

// IsZero reports whether the update changes nothing.
func (u SummaryUpdate) IsZero() bool {
	return u.Budget == nil && u.Travelers == nil && u.Preferences == nil && u.Dates == nil
}

// UpdateSummary applies trip-summary edits to both skeletons. Preferences
// merge key-by-key; a dates change recomputes duration_days from the span.
func (m *Mutator) UpdateSummary(u SummaryUpdate) (Changes, error) {
	if u.IsZero() {
		return nil, trip.E(trip.KindInvalidInput, "no summary fields to update")
	}
	return m.apply(func(rs *trip.RequirementsSkeleton, ps *trip.PlanSkeleton, c *Changes) error {
		if u.Budget != nil {
			old := rs.TripSummary.Budget
			rs.TripSummary.Budget = *u.Budget
			ps.TripSummary.Budget = *u.Budget
			c.addf("Updated budget: %q -> %q", old, *u.Budget)
		}
		if u.Travelers != nil {
			old := rs.TripSummary.Travelers
			rs.TripSummary.Travelers = *u.Travelers
			ps.TripSummary.Travelers = *u.Travelers
			c.addf("Updated travelers: %q -> %q", old, *u.Travelers)
		}
		if u.Preferences != nil {
			if rs.TripSummary.Preferences == nil {
				rs.TripSummary.Preferences = map[string]any{}
			}
			if ps.TripSummary.Preferences == nil {
				ps.TripSummary.Preferences = map[string]any{}
			}
			for k, v := range u.Preferences {
				old, ok := rs.TripSummary.Preferences[k]
				rs.TripSummary.Preferences[k] = v
				ps.TripSummary.Preferences[k] = v
				if ok {
					c.addf("Updated preference %q: %v -> %v", k, old, v)
				} else {
					c.addf("Set preference %q: %v", k, v)
				}
			}
		}
		if u.Dates != nil {
			start, end := u.Dates[0], u.Dates[1]
			duration, err := trip.DateSpanDays(start, end)
			if err != nil {
				return err
			}
			oldDates := rs.TripSummary.Dates
			oldDuration := rs.TripSummary.DurationDays
			dates := trip.FormatDateRange(start, end)
			rs.TripSummary.Dates = dates
			rs.TripSummary.DurationDays = duration
			ps.TripSummary.Dates = dates
			ps.TripSummary.DurationDays = duration
			c.addf("Updated dates: %q -> %q", oldDates, dates)
			c.addf("Updated duration: %d -> %d days", oldDuration, duration)
		}
		return nil
	})
}

// AddDay inserts a new day into both skeletons. When the day number is
// already taken, the existing day and everything after it shift up by one so
// the new day lands in between; duration and transitions are re-derived.
func (m *Mutator) AddDay(day int, date, location string, plans []string) (Changes, error) {
	if day <= 0 {
		return nil, trip.E(trip.KindInvalidInput, "day number must be positive, got %d", day)
	}
	if plans == nil {
		plans = []string{}
	}
	return m.apply(func(rs *trip.RequirementsSkeleton, ps *trip.PlanSkeleton, c *Changes) error {
		shifted := 0
		if rs.Day(day) != nil {
			for i := range rs.Days {
				if rs.Days[i].Day >= day {
					rs.Days[i].Day++
					shifted++
				}
			}
			for i := range ps.Days {
				if ps.Days[i].Day >= day {
					ps.Days[i].Day++
				}
			}
		}

		rs.Days = append(rs.Days, trip.RequirementDay{
			Day: day, Date: date, Location: location, UserPlans: append([]string{}, plans...),
		})
		ps.Days = append(ps.Days, trip.NewPlanDay(day, date, location, plans))

		sort.Slice(rs.Days, func(i, j int) bool { return rs.Days[i].Day < rs.Days[j].Day })
		sort.Slice(ps.Days, func(i, j int) bool { return ps.Days[i].Day < ps.Days[j].Day })

		rs.TripSummary.DurationDays = len(rs.Days)
		ps.TripSummary.DurationDays = len(ps.Days)

		DeriveTransitions(ps.Days)
		resolveRequirementArrows(rs.Days)

		c.addf("Added day %d (%s, %s) with %d plan(s)", day, date, location, len(plans))
		if shifted > 0 {
			c.addf("Shifted %d existing day(s) up to make room", shifted)
		}
		c.addf("Updated duration_days: %d", len(rs.Days))
		c.addf("Re-detected location changes: %d found", countTransitions(ps.Days))
		return nil
	})
}

// RemoveDay deletes a day from both skeletons, renumbers the rest from 1,
// and re-derives duration and transitions.
func (m *Mutator) RemoveDay(day int) (Changes, error) {
	return m.apply(func(rs *trip.RequirementsSkeleton, ps *trip.PlanSkeleton, c *Changes) error {
		rd, _, err := findDays(rs, ps, day)
		if err != nil {
			return err
		}
		removedLocation := rd.Location

		keepRS := rs.Days[:0:0]
		for _, d := range rs.Days {
			if d.Day != day {
				keepRS = append(keepRS, d)
			}
		}
		rs.Days = keepRS
		keepPS := ps.Days[:0:0]
		for _, d := range ps.Days {
			if d.Day != day {
				keepPS = append(keepPS, d)
			}
		}
		ps.Days = keepPS

		for i := range rs.Days {
			rs.Days[i].Day = i + 1
		}
		for i := range ps.Days {
			ps.Days[i].Day = i + 1
		}

		rs.TripSummary.DurationDays = len(rs.Days)
		ps.TripSummary.DurationDays = len(ps.Days)

		DeriveTransitions(ps.Days)
		resolveRequirementArrows(rs.Days)

		c.addf("Removed day %d (%s)", day, removedLocation)
		c.addf("Re-numbered %d remaining days", len(rs.Days))
		c.addf("Re-detected location changes: %d found", countTransitions(ps.Days))
		return nil
	})
}

// SetNote sets a supplemental note on the requirements skeleton only.
func (m *Mutator) SetNote(key, value string) (Changes, error) {
	return m.applyRequirementsOnly(func(rs *trip.RequirementsSkeleton, c *Changes) error {
		if rs.SupplementalNotes == nil {
			rs.SupplementalNotes = map[string]string{}
		}
		old, existed := rs.SupplementalNotes[key]
		rs.SupplementalNotes[key] = value
		if existed {
			c.addf("Updated note %q: %q -> %q", key, old, value)
		} else {
			c.addf("Set note %q: %q", key, value)
		}
		return nil
	})
}

// RemoveNote deletes a supplemental note from the requirements skeleton.
func (m *Mutator) RemoveNote(key string) (Changes, error) {
	return m.applyRequirementsOnly(func(rs *trip.RequirementsSkeleton, c *Changes) error {
		old, ok := rs.SupplementalNotes[key]
		if !ok {
			keys := make([]string, 0, len(rs.SupplementalNotes))
			for k := range rs.SupplementalNotes {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			return trip.E(trip.KindNotFound, "note %q not found, available keys: %v", key, keys)
		}
		delete(rs.SupplementalNotes, key)
		c.addf("Removed note %q (was: %q)", key, old)
		return nil
	})
}

// ListNotes returns the formatted supplemental notes without mutating
// anything.
func (m *Mutator) ListNotes() (Changes, error) {
	rs, err := m.dir.LoadRequirements()
	if err != nil {
		return nil, err
	}
	if len(rs.SupplementalNotes) == 0 {
		return Changes{"No supplemental_notes found"}, nil
	}
	var c Changes
	c.addf("supplemental_notes (%d entries):", len(rs.SupplementalNotes))
	keys := make([]string, 0, len(rs.SupplementalNotes))
	for k := range rs.SupplementalNotes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := rs.SupplementalNotes[k]
		if len(v) > 120 {
			v = v[:117] + "..."
		}
		c.addf("  %s: %q", k, v)
	}
	return c, nil
}

// applyRequirementsOnly runs a note operation touching only the
// requirements skeleton.
func (m *Mutator) applyRequirementsOnly(op func(rs *trip.RequirementsSkeleton, c *Changes) error) (Changes, error) {
	rs, err := m.dir.LoadRequirements()
	if err != nil {
		return nil, err
	}
	var changes Changes
	if err := op(rs, &changes); err != nil {
		return nil, err
	}
	if err := m.dir.SaveRequirements(rs); err != nil {
		return nil, err
	}
	for _, c := range changes {
		m.log.Printf("%s", c)
	}
	return changes, nil
}

func countTransitions(days []trip.PlanDay) int {
	n := 0
	for i := range days {
		if days[i].LocationChange != nil {
			n++
		}
	}
	return n
}
