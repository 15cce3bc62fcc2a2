package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/teecache/internal/cache"
	"github.com/any-hub/teecache/internal/config"
	"github.com/any-hub/teecache/internal/logging"
	"github.com/any-hub/teecache/internal/proxy"
	"github.com/any-hub/teecache/internal/server"
	"github.com/any-hub/teecache/internal/server/routes"
	"github.com/any-hub/teecache/internal/upstream"
	"github.com/any-hub/teecache/internal/version"
)

const (
	configEnvVar      = "TEECACHE_CONFIG"
	defaultConfigPath = "config.toml"
	shutdownTimeout   = 10 * time.Second
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

// execute 构建命令树并执行，返回进程退出码：0 成功、1 运行失败、2 参数错误。
func execute(args []string) int {
	code := 0
	root := newRootCmd(&code)
	root.SetArgs(args)
	root.SetOut(stdOut)
	root.SetErr(stdErr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stdErr, "解析参数失败: %v\n", err)
		return 2
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	var configFlag string

	resolve := func() cliOptions {
		return cliOptions{configPath: resolveConfigPath(configFlag)}
	}

	root := &cobra.Command{
		Use:           "teecache",
		Short:         "Read-through disk cache in front of an object store",
		Version:       version.Full(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(_ *cobra.Command, _ []string) {
			*code = run(resolve())
		},
	}
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configFlag, "config", "",
		"配置文件路径（默认 ./config.toml，可被 "+configEnvVar+" 覆盖）")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP cache service",
			Args:  cobra.NoArgs,
			Run: func(_ *cobra.Command, _ []string) {
				*code = run(resolve())
			},
		},
		&cobra.Command{
			Use:   "check-config",
			Short: "Validate the configuration file and exit",
			Args:  cobra.NoArgs,
			Run: func(_ *cobra.Command, _ []string) {
				opts := resolve()
				opts.checkOnly = true
				*code = run(opts)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(_ *cobra.Command, _ []string) {
				*code = run(cliOptions{showVersion: true})
			},
		},
		newCacheCmd(code, resolve),
	)
	return root
}

// resolveConfigPath 结合 flag、环境变量与默认值计算最终的配置路径。
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(configEnvVar); env != "" {
		return env
	}
	return defaultConfigPath
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

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

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["cache_enabled"] = cfg.Global.CacheEnabled
		fields["upstream"] = cfg.Upstream.URL
		fields["credentials"] = cfg.Upstream.HasCredentials()
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动顺序：配置 → 缓存目录 → 暂存清理 → 回源客户端 → Fiber server，
	// 所有请求共享同一个 Store 与 http.Client。
	store, err := openStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存目录失败: %v\n", err)
		return 1
	}

	janitor := cache.NewJanitor(store, cfg.Global.StagingMaxAge.DurationValue())
	if _, err := janitor.Sweep(); err != nil {
		logger.WithError(err).WithField("action", "cache_janitor").Warn("initial staging sweep failed")
	}
	if err := janitor.Start(cfg.Global.JanitorSchedule); err != nil {
		fmt.Fprintf(stdErr, "启动暂存清理失败: %v\n", err)
		return 1
	}
	defer janitor.Stop()

	client, err := upstream.NewClient(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化回源客户端失败: %v\n", err)
		return 1
	}
	proxyHandler := proxy.NewHandler(client, logger, store)

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["cache_enabled"] = store.Enabled()
	fields["cache_root"] = store.Config().Root
	fields["upstream"] = cfg.Upstream.URL
	fields["credentials"] = cfg.Upstream.HasCredentials()
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startHTTPServer(ctx, cfg, store, proxyHandler, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

func openStore(cfg *config.Config, logger *logrus.Logger) (*cache.Store, error) {
	opts := append(cfg.CacheOptions(), cache.WithLogger(logger))
	return cache.NewStore(cfg.CacheConfig(), opts...)
}

func startHTTPServer(
	ctx context.Context,
	cfg *config.Config,
	store *cache.Store,
	proxyHandler server.ProxyHandler,
	logger *logrus.Logger,
) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Proxy:      proxyHandler,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterCacheRoutes(app, store, logger)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(fmt.Sprintf(":%d", port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.WithField("action", "shutdown").Info("收到退出信号，停止服务")
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	}
}
