package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/skeleton"
	"github.com/wanderplan/wanderplan/internal/trip"
)

func generateCMD() *cobra.Command {
	var (
		slug        string
		startDate   string
		endDate     string
		duration    int
		travelers   string
		budget      string
		preferences string
		daysJSON    string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the requirements and plan skeletons for a new trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			prefs := map[string]any{}
			if preferences != "" {
				if err := json.Unmarshal([]byte(preferences), &prefs); err != nil {
					return trip.Wrap(trip.KindInvalidInput, err, "parse --preferences")
				}
			}
			var days []trip.RequirementDay
			if err := json.Unmarshal([]byte(daysJSON), &days); err != nil {
				return trip.Wrap(trip.KindInvalidInput, err, "parse --days")
			}

			rs, ps, err := skeleton.Generate(skeleton.Params{
				Slug:         slug,
				StartDate:    startDate,
				EndDate:      endDate,
				DurationDays: duration,
				Travelers:    travelers,
				Budget:       budget,
				Preferences:  prefs,
				Days:         days,
			})
			if err != nil {
				return err
			}

			d, err := plandir.Create(filepath.Join(cfg.General.DataDir, slug))
			if err != nil {
				return err
			}
			if err := d.SaveRequirements(rs); err != nil {
				return err
			}
			if err := d.SavePlan(ps); err != nil {
				return err
			}
			fmt.Printf("Generated skeletons for %s: %d days (%s)\n", slug, len(ps.Days), ps.TripSummary.Dates)
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "destination-slug", "", "plan directory slug")
	cmd.Flags().StringVar(&startDate, "start-date", "", "trip start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "trip end date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&duration, "duration", 0, "trip length in days")
	cmd.Flags().StringVar(&travelers, "travelers", "", "traveler description")
	cmd.Flags().StringVar(&budget, "budget", "", "budget description")
	cmd.Flags().StringVar(&preferences, "preferences", "", "preferences as a JSON object")
	cmd.Flags().StringVar(&daysJSON, "days", "", `days as a JSON array of {"day","date","location","user_plans"}`)
	_ = cmd.MarkFlagRequired("destination-slug")
	_ = cmd.MarkFlagRequired("days")
	return cmd
}

func updateSkeletonCMD() *cobra.Command {
	var (
		slug string

		updateDay  int
		location   string
		addPlan    string
		removePlan string
		setPlans   string

		updateBudget      string
		updateTravelers   string
		updatePreferences string
		updateDates       []string

		addDay   bool
		dayNum   int
		dayDate  string
		dayPlans string

		removeDay int

		setNote    string
		removeNote string
		listNotes  bool
	)
	cmd := &cobra.Command{
		Use:   "update-skeleton",
		Short: "Apply one atomic edit to the skeleton pair of a plan",
		Long: `Apply one atomic edit to the requirements and plan skeletons.

Exactly one operation may be given per call, except that the trip-summary
fields (--update-budget, --update-travelers, --update-preferences,
--update-dates) combine freely.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := openPlan(cfg, slug)
			if err != nil {
				return err
			}
			m := skeleton.NewMutator(d)

			summary := skeleton.SummaryUpdate{}
			if cmd.Flags().Changed("update-budget") {
				summary.Budget = &updateBudget
			}
			if cmd.Flags().Changed("update-travelers") {
				summary.Travelers = &updateTravelers
			}
			if updatePreferences != "" {
				prefs := map[string]any{}
				if err := json.Unmarshal([]byte(updatePreferences), &prefs); err != nil {
					return trip.Wrap(trip.KindInvalidInput, err, "parse --update-preferences")
				}
				summary.Preferences = prefs
			}
			if len(updateDates) > 0 {
				if len(updateDates) != 2 {
					return trip.E(trip.KindInvalidInput, "--update-dates needs exactly two dates (start,end), got %d", len(updateDates))
				}
				summary.Dates = &[2]string{updateDates[0], updateDates[1]}
			}

			ops := []string{}
			if updateDay > 0 {
				ops = append(ops, "--update-day")
			}
			if !summary.IsZero() {
				ops = append(ops, "trip-summary update")
			}
			if addDay {
				ops = append(ops, "--add-day")
			}
			if removeDay > 0 {
				ops = append(ops, "--remove-day")
			}
			if setNote != "" {
				ops = append(ops, "--set-note")
			}
			if removeNote != "" {
				ops = append(ops, "--remove-note")
			}
			if listNotes {
				ops = append(ops, "--list-notes")
			}
			if len(ops) == 0 {
				return trip.E(trip.KindInvalidInput, "no operation given")
			}
			if len(ops) > 1 {
				return trip.E(trip.KindConflict, "operations are mutually exclusive, got %s", strings.Join(ops, ", "))
			}

			var changes skeleton.Changes
			switch ops[0] {
			case "--update-day":
				changes, err = runDayOp(cmd, m, updateDay, location, addPlan, removePlan, setPlans)
			case "trip-summary update":
				changes, err = m.UpdateSummary(summary)
			case "--add-day":
				var plans []string
				if dayPlans != "" {
					if err := json.Unmarshal([]byte(dayPlans), &plans); err != nil {
						return trip.Wrap(trip.KindInvalidInput, err, "parse --plans")
					}
				}
				changes, err = m.AddDay(dayNum, dayDate, location, plans)
			case "--remove-day":
				changes, err = m.RemoveDay(removeDay)
			case "--set-note":
				key, value, ok := strings.Cut(setNote, "=")
				if !ok {
					return trip.E(trip.KindInvalidInput, "--set-note takes KEY=VALUE, got %q", setNote)
				}
				changes, err = m.SetNote(key, value)
			case "--remove-note":
				changes, err = m.RemoveNote(removeNote)
			case "--list-notes":
				changes, err = m.ListNotes()
			}
			if err != nil {
				return err
			}
			for _, c := range changes {
				fmt.Println(c)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&slug, "destination-slug", "", "plan directory slug")
	cmd.Flags().IntVar(&updateDay, "update-day", 0, "day number to edit")
	cmd.Flags().StringVar(&location, "location", "", "location (with --update-day or --add-day)")
	cmd.Flags().StringVar(&addPlan, "add-plan", "", "append a user plan to the day")
	cmd.Flags().StringVar(&removePlan, "remove-plan", "", "remove plans matching this substring")
	cmd.Flags().StringVar(&setPlans, "set-plans", "", "replace the day's plans (JSON array of strings)")
	cmd.Flags().StringVar(&updateBudget, "update-budget", "", "set the trip budget text")
	cmd.Flags().StringVar(&updateTravelers, "update-travelers", "", "set the travelers text")
	cmd.Flags().StringVar(&updatePreferences, "update-preferences", "", "merge preferences from a JSON object")
	cmd.Flags().StringSliceVar(&updateDates, "update-dates", nil, "set trip dates: start,end (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&addDay, "add-day", false, "insert a new day")
	cmd.Flags().IntVar(&dayNum, "day", 0, "day number (with --add-day)")
	cmd.Flags().StringVar(&dayDate, "date", "", "day date (with --add-day)")
	cmd.Flags().StringVar(&dayPlans, "plans", "", "initial plans for the new day (JSON array of strings)")
	cmd.Flags().IntVar(&removeDay, "remove-day", 0, "day number to remove")
	cmd.Flags().StringVar(&setNote, "set-note", "", "set a supplemental note: KEY=VALUE")
	cmd.Flags().StringVar(&removeNote, "remove-note", "", "remove a supplemental note by key")
	cmd.Flags().BoolVar(&listNotes, "list-notes", false, "list supplemental notes")
	_ = cmd.MarkFlagRequired("destination-slug")
	return cmd
}

func runDayOp(cmd *cobra.Command, m *skeleton.Mutator, day int, location, addPlan, removePlan, setPlans string) (skeleton.Changes, error) {
	given := []string{}
	if cmd.Flags().Changed("location") {
		given = append(given, "--location")
	}
	if addPlan != "" {
		given = append(given, "--add-plan")
	}
	if removePlan != "" {
		given = append(given, "--remove-plan")
	}
	if setPlans != "" {
		given = append(given, "--set-plans")
	}
	if len(given) != 1 {
		return nil, trip.E(trip.KindConflict,
			"--update-day needs exactly one of --location, --add-plan, --remove-plan, --set-plans, got %d", len(given))
	}
	switch given[0] {
	case "--location":
		return m.UpdateDayLocation(day, location)
	case "--add-plan":
		return m.AddPlan(day, addPlan)
	case "--remove-plan":
		return m.RemovePlan(day, removePlan)
	default:
		var plans []string
		if err := json.Unmarshal([]byte(setPlans), &plans); err != nil {
			return nil, trip.Wrap(trip.KindInvalidInput, err, "parse --set-plans")
		}
		return m.SetPlans(day, plans)
	}
}
