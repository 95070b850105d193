package main

import (
	"os/signal"
	"syscall"

	"github.com/arenalab/arena/internal/dashboard"
	"github.com/arenalab/arena/internal/refresh"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard and the background task-list refresh",
		Long:  "Serves the read-only HTTP dashboard and, when enabled, keeps the local task forest in sync with the backend on the configured cron schedule. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if a.cfg.Refresh.Enabled {
				r, err := refresh.New(a.api, a.service.Store(), a.cfg.Refresh.Schedule)
				if err != nil {
					return err
				}
				// First sync up front so the dashboard is populated.
				if err := r.Once(ctx); err != nil {
					cmd.PrintErrf("initial refresh: %v\n", err)
				}
				go r.Run(ctx)
			}

			return dashboard.Start(ctx, dashboard.StartOpts{
				Store: a.service.Store(),
				Port:  a.cfg.Dashboard.Port,
				Out:   cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "arena.yaml", "path to Arena config file")
	return cmd
}
