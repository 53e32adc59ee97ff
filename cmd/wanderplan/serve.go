package main

import (
	"github.com/spf13/cobra"

	"github.com/wanderplan/wanderplan/internal/server"
)

func serveCMD() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the preview server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			s, err := server.New(cfg, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Run()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
