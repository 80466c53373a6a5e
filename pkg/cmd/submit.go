package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yeisme/ingestvault/pkg/app"
	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/ingest"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
	"github.com/yeisme/ingestvault/pkg/internal/store"
	"github.com/yeisme/ingestvault/pkg/internal/types"
)

var (
	submitInline bool

	submitCmd = &cobra.Command{
		Use:   "submit <file>...",
		Short: "submit local files for ingestion",
		Long: "Submit local CSV/TXT files. By default files are queued for a running worker; " +
			"with --inline they are ingested in this process before the command returns.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configs.GetConfig()
			if !submitInline && cfg.MQ.Type == configs.MQTypeGoChannel {
				return errors.New("the gochannel queue only reaches workers in the same process, use --inline or configure nats/redis")
			}

			parts := []storage.Part{storage.PartDB, storage.PartStaging}
			if !submitInline {
				parts = append(parts, storage.PartMQ)
			}

			return withServices(cmd.Context(), cfg, submitInline, func(svc *app.Services) error {
				uploads := make([]ingest.Upload, 0, len(args))
				for _, path := range args {
					uploads = append(uploads, ingest.Upload{
						Name: filepath.Base(path),
						Open: func() (io.ReadCloser, error) { return os.Open(path) },
					})
				}

				results := svc.Gateway.SubmitAll(cmd.Context(), uploads)
				if !submitInline {
					return printJSON(cmd, types.SubmitResponse{Results: results})
				}

				return printJSON(cmd, inlineReport(cmd.Context(), svc, results))
			}, parts...)
		},
	}
)

// inlineReport 内联导入结束后附带每个文件的最终状态与当前归属于它的明细数.
func inlineReport(ctx context.Context, svc *app.Services, results []types.SubmitResult) []any {
	out := make([]any, 0, len(results))

	for _, res := range results {
		if res.Outcome != types.OutcomeQueued {
			out = append(out, res)
			continue
		}

		status, err := svc.Status.GetStatus(ctx, res.RecordID)
		if err != nil {
			out = append(out, res)
			continue
		}

		owned, err := svc.Status.DetailsOwned(ctx, res.RecordID)
		if err != nil {
			owned = -1
		}

		out = append(out, struct {
			types.SubmitResult
			Final        *types.FileStatus `json:"final"`
			DetailsOwned int64             `json:"details_owned"`
		}{res, status, owned})
	}

	return out
}

// withServices 打开所需资源、迁移数据库并组装业务组件，fn 返回后释放资源.
func withServices(
	ctx context.Context, cfg *configs.AppConfig, inline bool, fn func(*app.Services) error, parts ...storage.Part,
) error {
	mgr, err := storage.Open(ctx, cfg, parts...)
	if err != nil {
		return err
	}

	if err := store.Migrate(ctx, mgr.DB.GetDB()); err != nil {
		return errors.Join(fmt.Errorf("migrate: %w", err), mgr.Close())
	}

	svc, err := app.NewServices(mgr, cfg, inline)
	if err != nil {
		return errors.Join(err, mgr.Close())
	}

	return errors.Join(fn(svc), mgr.Close())
}

func registerSubmitCommands() {
	submitCmd.Flags().BoolVar(&submitInline, "inline", false, "ingest in this process instead of queueing")

	rootCmd.AddCommand(submitCmd)
}
