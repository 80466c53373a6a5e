package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeisme/ingestvault/pkg/app"
	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
)

var (
	jobsCmd = &cobra.Command{
		Use:   "jobs",
		Short: "run maintenance jobs once",
	}

	jobsReapCmd = &cobra.Command{
		Use:   "reap",
		Short: "mark attempts stuck in processing past run_timeout as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return maintain(cmd, "reaped", func(svc *app.Services) (int, error) {
				return svc.Maintenance.ReapStale(cmd.Context())
			})
		},
	}

	jobsSweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "delete staged copies no attempt will read again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return maintain(cmd, "released", func(svc *app.Services) (int, error) {
				return svc.Maintenance.SweepStaging(cmd.Context())
			})
		},
	}
)

func maintain(cmd *cobra.Command, verb string, fn func(*app.Services) (int, error)) error {
	return withServices(cmd.Context(), configs.GetConfig(), true, func(svc *app.Services) error {
		n, err := fn(svc)
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d records\n", verb, n)

		return err
	}, storage.PartDB, storage.PartStaging)
}

func registerJobsCommands() {
	jobsCmd.AddCommand(jobsReapCmd, jobsSweepCmd)
	rootCmd.AddCommand(jobsCmd)
}
