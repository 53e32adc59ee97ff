package skeleton

import (
	"strings"

	"github.com/wanderplan/wanderplan/internal/trip"
)

// arrow is the notation a single day may use to express "left A for B".
const arrow = "→"

// newTransition builds the derived transition record. Method and times are
// left for agents to fill in.
func newTransition(from, to string) *trip.LocationChange {
	return &trip.LocationChange{
		From:            from,
		To:              to,
		Method:          "TBD",
		BookingRequired: true,
	}
}

// resolveArrow splits an "A → B" location. ok is false when the location has
// no arrow.
func resolveArrow(location string) (from, to string, ok bool) {
	if !strings.Contains(location, arrow) {
		return "", "", false
	}
	parts := strings.SplitN(location, arrow, 2)
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}

// DeriveTransitions recomputes location and location_change across the plan
// days from locations alone; every other per-day field is untouched. A day
// written as "A → B" resolves to location B and carries the A→B transition;
// otherwise a transition appears exactly when consecutive days differ.
func DeriveTransitions(days []trip.PlanDay) {
	prev := ""
	for i := range days {
		day := &days[i]
		if from, to, ok := resolveArrow(day.Location); ok {
			day.LocationChange = newTransition(from, to)
			day.Location = to
			prev = to
			continue
		}
		if i > 0 && prev != "" && prev != day.Location {
			day.LocationChange = newTransition(prev, day.Location)
			prev = day.Location
			continue
		}
		day.LocationChange = nil
		if i == 0 {
			prev = day.Location
		}
	}
}

// resolveRequirementArrows applies arrow resolution to requirement days so
// both skeletons agree on the resolved location. Requirement days carry no
// transition record.
func resolveRequirementArrows(days []trip.RequirementDay) {
	for i := range days {
		if _, to, ok := resolveArrow(days[i].Location); ok {
			days[i].Location = to
		}
	}
}
