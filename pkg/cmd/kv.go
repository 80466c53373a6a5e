package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/yeisme/ingestvault/pkg/app"
	"github.com/yeisme/ingestvault/pkg/cache"
	"github.com/yeisme/ingestvault/pkg/configs"
	"github.com/yeisme/ingestvault/pkg/internal/storage"
	kv "github.com/yeisme/ingestvault/pkg/internal/storage/kv"
)

var (
	kvCmd = &cobra.Command{
		Use:   "kv",
		Short: "inspect the status cache kept in the kv store",
	}

	kvTypesCmd = &cobra.Command{
		Use:     "types",
		Short:   "list the kv backends compiled into this binary",
		Aliases: []string{"ls"},
		Run: func(cmd *cobra.Command, args []string) {
			types := kv.GetRegisteredKVTypes()
			sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

			for _, t := range types {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	}

	kvKeysCmd = &cobra.Command{
		Use:   "keys [pattern]",
		Short: "list cached status keys, pattern defaults to *",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := "*"
			if len(args) == 1 {
				pattern = args[0]
			}

			return withKV(cmd, func(store kv.KVStore) error {
				keys, err := store.Keys(cmd.Context(), app.StatusCacheNamespace+":"+pattern)
				if err != nil {
					return err
				}

				sort.Strings(keys)

				return printJSON(cmd, keys)
			})
		},
	}

	kvClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "drop every cached status view",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, func(store kv.KVStore) error {
				if err := cache.NewCache(store, app.StatusCacheNamespace).Clear(cmd.Context()); err != nil {
					return err
				}

				fmt.Fprintln(cmd.OutOrStdout(), "status cache cleared")

				return nil
			})
		},
	}
)

// withKV 只打开 KV 资源.memory 类型的缓存只存在于服务进程内，这里看到的总是空的.
func withKV(cmd *cobra.Command, fn func(kv.KVStore) error) error {
	cfg := configs.GetConfig()
	if cfg.KV.Type == string(kv.KVTypeMemory) {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: kv.type=memory is process local")
	}

	mgr, err := storage.Open(cmd.Context(), cfg, storage.PartKV)
	if err != nil {
		return err
	}
	defer mgr.Close()

	return fn(mgr.KV)
}

// registerKVCommands 注册 KV 相关命令.
func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvTypesCmd, kvKeysCmd, kvClearCmd)
}
