package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wanderplan/wanderplan/internal/pipeline"
	"github.com/wanderplan/wanderplan/internal/search"
)

func searchCMD() *cobra.Command {
	var (
		rebuild  bool
		indexDir string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Query the POI index, optionally rebuilding it from every plan first",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if indexDir != "" {
				cfg.Search.IndexDir = indexDir
			}
			idx, err := search.Open(cfg.Search.IndexDir)
			if err != nil {
				return err
			}
			defer idx.Close()

			if rebuild {
				p := pipeline.New(cfg, nil)
				slugs, err := planSlugs(cfg.General.DataDir)
				if err != nil {
					return err
				}
				for _, slug := range slugs {
					plan, err := p.Build(cmd.Context(), slug)
					if err != nil {
						fmt.Fprintf(os.Stderr, "skip %s: %v\n", slug, err)
						continue
					}
					n, err := idx.IndexPlan(slug, plan)
					if err != nil {
						return err
					}
					fmt.Fprintf(os.Stderr, "indexed %s: %d POIs\n", slug, n)
				}
			}

			if len(args) == 0 {
				return nil
			}
			hits, err := idx.Query(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			for _, h := range hits {
				fmt.Printf("%.3f %s (%v, day %v)\n", h.Score, h.ID, h.Fields["location"], h.Fields["day"])
			}
			fmt.Fprintf(os.Stderr, "%d hits\n", len(hits))
			return nil
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "reindex every plan in the data directory first")
	cmd.Flags().StringVar(&indexDir, "index", "", "index directory (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum hits to print")
	return cmd
}

func planSlugs(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var slugs []string
	for _, e := range entries {
		if e.IsDir() {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}
