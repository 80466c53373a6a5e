package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
	mq "github.com/yeisme/ingestvault/pkg/internal/storage/mq"
)

// mqInfo mq info 的输出.
type mqInfo struct {
	Type       configs.MQType `json:"type"`
	Topic      string         `json:"topic"`
	Registered bool           `json:"registered"`
	Healthy    bool           `json:"healthy"`
	Error      string         `json:"error,omitempty"`
}

var (
	mqCmd = &cobra.Command{
		Use:   "mq",
		Short: "inspect the ingest message queue",
	}

	mqTypesCmd = &cobra.Command{
		Use:     "types",
		Short:   "list the queue backends compiled into this binary",
		Aliases: []string{"ls"},
		Run: func(cmd *cobra.Command, args []string) {
			types := mq.GetRegisteredMQTypes()
			slices.Sort(types)

			for _, t := range types {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}

	mqInfoCmd = &cobra.Command{
		Use:   "info",
		Short: "connect to the configured queue and report its health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configs.GetConfig()
			info := mqInfo{
				Type:       cfg.MQ.Type,
				Topic:      cfg.Ingest.Topic,
				Registered: slices.Contains(mq.GetRegisteredMQTypes(), cfg.MQ.Type),
			}

			mgr, err := storage.Open(cmd.Context(), cfg, storage.PartMQ)
			if err == nil {
				err = mgr.MQ.HealthCheck(cmd.Context())
				_ = mgr.Close()
			}

			info.Healthy = err == nil
			if err != nil {
				info.Error = err.Error()
			}

			return printJSON(cmd, info)
		},
	}
)

// registerMQCommands 注册 MQ 相关命令.
func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)
	mqCmd.AddCommand(mqTypesCmd, mqInfoCmd)
}
