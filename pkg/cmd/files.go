package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yeisme/ingestvault/pkg/app"
	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
	"github.com/yeisme/ingestvault/pkg/internal/types"
	"github.com/yeisme/ingestvault/pkg/rule"
)

var (
	listReq types.ListFilesRequest

	filesCmd = &cobra.Command{
		Use:   "files",
		Short: "query ingested files",
	}

	filesListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list file records, newest first",
		Aliases: []string{"ls", "l"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rule.Check(&listReq); err != nil {
				return err
			}

			return query(cmd, func(svc *app.Services) (any, error) {
				return svc.Status.List(cmd.Context(), listReq)
			})
		},
	}

	statusCmd = &cobra.Command{
		Use:   "status <id>",
		Short: "show ingestion progress of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid file id %q", args[0])
			}

			return query(cmd, func(svc *app.Services) (any, error) {
				return svc.Status.GetStatus(cmd.Context(), uint(id))
			})
		},
	}

	detailsCmd = &cobra.Command{
		Use:   "details <unique_key>",
		Short: "show detail records for a unique key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return query(cmd, func(svc *app.Services) (any, error) {
				return svc.Status.LookupByKey(cmd.Context(), args[0])
			})
		},
	}
)

// query 只读查询只需要数据库与暂存存储，不经过缓存.
func query(cmd *cobra.Command, fn func(*app.Services) (any, error)) error {
	return withServices(cmd.Context(), configs.GetConfig(), true, func(svc *app.Services) error {
		v, err := fn(svc)
		if err != nil {
			return err
		}

		return printJSON(cmd, v)
	}, storage.PartDB, storage.PartStaging)
}

func registerFilesCommands() {
	filesListCmd.Flags().StringVar(&listReq.Status, "status", "", "filter by status")
	filesListCmd.Flags().IntVar(&listReq.Limit, "limit", 50, "page size, 0 for all")
	filesListCmd.Flags().IntVar(&listReq.Offset, "offset", 0, "offset")

	filesCmd.AddCommand(filesListCmd)
	rootCmd.AddCommand(filesCmd, statusCmd, detailsCmd)
}
