// wanderplan compiles per-agent travel JSON into one validated,
// HTML-ready plan object.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wanderplan/wanderplan/config"
	"github.com/wanderplan/wanderplan/internal/plandir"
	"github.com/wanderplan/wanderplan/internal/trip"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "wanderplan",
		Short:         "Travel plan compiler: skeletons, normalization, sync, validation, merge, HTML",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: ./config/config.json)")

	root.AddCommand(
		generateCMD(),
		updateSkeletonCMD(),
		normalizeCMD(),
		syncCMD(),
		validateCMD(),
		emitCMD(),
		pipelineCMD(),
		serveCMD(),
		searchCMD(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy onto process exit codes: 1 for
// validation-class failures, 2 for external or unexpected ones.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	switch trip.KindOf(err) {
	case trip.KindInvalidInput, trip.KindNotFound, trip.KindConflict,
		trip.KindSchemaViolation, trip.KindSemanticViolation:
		return 1
	default:
		return 2
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath)
}

func openPlan(cfg *config.Config, slug string) (*plandir.Dir, error) {
	return plandir.Open(filepath.Join(cfg.General.DataDir, slug))
}
