package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/any-hub/teecache/internal/cache"
	"github.com/any-hub/teecache/internal/config"
	"github.com/any-hub/teecache/internal/logging"
)

const tabPadding = 2

// newCacheCmd 提供直接操作本地缓存目录的运维子命令，无需启动服务。
func newCacheCmd(code *int, resolve func() cliOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or purge the local cache directory",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cached entries, least recently accessed first",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			*code = withStore(resolve(), func(store *cache.Store) error {
				entries, err := store.Describe()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(entries)
				}
				w := tabwriter.NewWriter(stdOut, 0, 0, tabPadding, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSIZE\tLAST_ACCESSED")
				for _, entry := range entries {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", entry.ID, entry.Name, entry.Size, entry.LastAccessed)
				}
				return w.Flush()
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "以 JSON 输出")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print entry count and total size",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			*code = withStore(resolve(), func(store *cache.Store) error {
				stats, err := store.Stats()
				if err != nil {
					return err
				}
				return writeJSON(stats)
			})
		},
	}

	purge := &cobra.Command{
		Use:   "purge <id>",
		Short: "Delete one cached entry",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			*code = withStore(resolve(), func(store *cache.Store) error {
				return store.Purge(args[0])
			})
		},
	}

	purgeAll := &cobra.Command{
		Use:   "purge-all",
		Short: "Delete every cached entry",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			*code = withStore(resolve(), func(store *cache.Store) error {
				return store.PurgeAll()
			})
		},
	}

	cmd.AddCommand(list, stats, purge, purgeAll)
	return cmd
}

// withStore 加载配置并打开缓存目录后执行 fn；日志默认写到 stderr，避免混入命令输出。
func withStore(opts cliOptions, fn func(*cache.Store) error) int {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}
	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}
	if cfg.Global.LogFilePath == "" {
		logger.SetOutput(stdErr)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}
	if !store.Enabled() {
		fmt.Fprintf(stdErr, "缓存未启用 (%s)\n", opts.configPath)
	}
	if err := fn(store); err != nil {
		fmt.Fprintf(stdErr, "缓存操作失败: %v\n", err)
		return 1
	}
	return 0
}

func writeJSON(v any) error {
	enc := json.NewEncoder(stdOut)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
