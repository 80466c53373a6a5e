// Package cmd 提供 ingestvault 的命令行入口：服务进程、worker、离线提交与查询.
package cmd

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/ingestvault/pkg/configs"
)

var (
	// configPath 配置文件或所在目录.
	configPath string
	// debug 打印更多调试信息.
	debug bool

	rootCmd = &cobra.Command{
		Use:          "ingestvault",
		Short:        "Bulk CSV/TXT product file ingestion service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := configs.InitConfig(configPath); err != nil {
				return fmt.Errorf("init config: %w", err)
			}

			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print debug output")

	registerServeCommands()
	registerSubmitCommands()
	registerFilesCommands()
	registerJobsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerConfigsCommands()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// printJSON 以缩进 JSON 输出到标准输出.
func printJSON(cmd *cobra.Command, v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return nil
}
