package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yeisme/ingestvault/pkg/app"
	"github.com/yeisme/ingestvault/pkg/configs"
)

var (
	serveOpts = app.Options{HTTP: true, Worker: true, Scheduler: true}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "run the http api, the ingest worker and maintenance jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, serveOpts)
		},
	}

	workerScheduler bool

	workerCmd = &cobra.Command{
		Use:   "worker",
		Short: "consume queued ingest jobs without serving http",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app.Options{Worker: true, Scheduler: workerScheduler})
		},
	}
)

// run 启动进程直到收到 SIGINT/SIGTERM.
func run(cmd *cobra.Command, opts app.Options) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, configs.GetConfig(), opts)
	if err != nil {
		return err
	}

	return a.Run(ctx)
}

func registerServeCommands() {
	serveCmd.Flags().BoolVar(&serveOpts.HTTP, "http", true, "serve the http api")
	serveCmd.Flags().BoolVar(&serveOpts.Worker, "worker", true, "consume ingest jobs in this process")
	serveCmd.Flags().BoolVar(&serveOpts.Scheduler, "scheduler", true, "run staging sweep and stale attempt reaping")

	workerCmd.Flags().BoolVar(&workerScheduler, "scheduler", false, "also run maintenance jobs")

	rootCmd.AddCommand(serveCmd, workerCmd)
}
