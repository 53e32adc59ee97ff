package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wanderplan/wanderplan/internal/merge"
	"github.com/wanderplan/wanderplan/internal/normalize"
	"github.com/wanderplan/wanderplan/internal/pipeline"
	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/rates"
	"github.com/wanderplan/wanderplan/internal/render"
	"github.com/wanderplan/wanderplan/internal/timesync"
	"github.com/wanderplan/wanderplan/internal/trip"
	"github.com/wanderplan/wanderplan/internal/validate"
)

func normalizeCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <slug>",
		Short: "Normalize every agent document of a plan in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := openPlan(cfg, args[0])
			if err != nil {
				return err
			}
			ps, err := d.LoadPlan()
			if err != nil {
				if !trip.IsKind(err, trip.KindNotFound) {
					return err
				}
				ps = nil
			}
			n := normalize.New(normalize.Options{
				SourceCurrency: cfg.Currency.Source,
				EURRate:        cfg.Currency.FallbackRate,
				Durations:      cfg.Sync.DefaultDurationMinutes,
			})
			changes, err := n.Directory(d, ps)
			if err != nil {
				return err
			}
			total := 0
			for _, agent := range trip.Agents {
				for _, c := range changes[agent] {
					fmt.Printf("%s day %d %s: %s %v -> %v\n", c.Agent, c.Day, c.Item, c.Field, c.Old, c.New)
					total++
				}
			}
			fmt.Printf("Normalized %s: %d changes\n", args[0], total)
			return nil
		},
	}
	return cmd
}

func syncCMD() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sync <slug>",
		Short: "Synchronize POI times from the timeline and write the sync report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := openPlan(cfg, args[0])
			if err != nil {
				return err
			}
			report, err := timesync.New(cfg, dryRun).Run(d)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without writing any file")
	return cmd
}

func validateCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate-agent-outputs <plan_dir>",
		Short: "Validate a plan directory: schema phase then semantic phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := plandir.Open(args[0])
			if err != nil {
				return err
			}
			res, err := validate.New(cfg).Directory(d)
			if err != nil {
				return err
			}
			for _, issue := range res.Issues {
				fmt.Println(issue)
			}
			fmt.Printf("%d critical, %d warnings\n", res.Criticals(), res.Warnings())
			if code := res.ExitCode(); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	return cmd
}

func emitCMD() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emit <slug>",
		Short: "Merge agent documents into the plan object and write the HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			d, err := openPlan(cfg, args[0])
			if err != nil {
				return err
			}
			var source rates.Source
			if s := rates.NewSubprocessSource(cfg.Currency); s != nil {
				source = s
			}
			rate, err := rates.Resolve(cmd.Context(), cfg.Currency, source)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, rates.Describe(cfg.Currency, rate))

			plan, err := merge.New(cfg).Build(d, rate)
			if err != nil {
				return err
			}
			out := filepath.Join(cfg.General.OutputDir, args[0]+".html")
			if err := render.New(cfg.Render).Render(cmd.Context(), plan, out); err != nil {
				return err
			}
			fmt.Printf("Emitted %s\n", out)
			return nil
		},
	}
	return cmd
}

func pipelineCMD() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "pipeline <slug>",
		Short: "Run normalize, sync, validate, merge, and render in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			res, err := pipeline.New(cfg, nil).Run(cmd.Context(), args[0], force)
			if res != nil {
				if out, mErr := json.MarshalIndent(res, "", "  "); mErr == nil {
					fmt.Println(string(out))
				}
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "rebuild even when the output is fresh")
	return cmd
}
