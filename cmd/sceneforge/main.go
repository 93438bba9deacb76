// =============================================================================
// SceneForge 主入口
// =============================================================================
// 命令行入口：重试循环、单次执行、清洗/校验工具与运行历史
//
// 使用方法:
//
//	sceneforge run                          # 运行 generate → execute → validate 循环
//	sceneforge run --config sceneforge.yaml # 指定配置文件
//	sceneforge exec                         # 单次生成并执行，不校验
//	sceneforge sanitize raw.txt             # 清洗一段模型输出
//	sceneforge validate renders/*.png       # 校验渲染结果
//	sceneforge history [run-id]             # 查看运行记录
//	sceneforge version                      # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneforge/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// 退出码
const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2
)

// exitCodeError 携带非零退出码的错误
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

// cli 命令共享的状态，由 PersistentPreRunE 填充
type cli struct {
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
	closer func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root, c := newRootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	c.close()
	if err == nil {
		return exitOK
	}
	var ec *exitCodeError
	if errors.As(err, &ec) {
		if ec.code != exitRejected {
			fmt.Fprintln(root.ErrOrStderr(), "Error:", ec.err)
		}
		return ec.code
	}
	fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
	return exitError
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:   "sceneforge",
		Short: "Generate, render and verify 3D scenes from a text description",
		Long: `SceneForge asks a code-generation model for a Blender script, repairs known
defects in the output, runs the script in the engine and judges the rendered
pixels. Rejected attempts are fed back to the model until a render passes or the
attempt budget is spent.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.init()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to config file (YAML)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newRunCmd(c),
		newExecCmd(c),
		newSanitizeCmd(c),
		newValidateCmd(c),
		newHistoryCmd(c),
		newVersionCmd(),
	)
	return root, c
}

// init 加载配置并初始化日志
func (c *cli) init() error {
	loader := config.NewLoader()
	if c.configPath != "" {
		loader = loader.WithConfigPath(c.configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLog, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.cfg = cfg
	c.logger = logger
	c.closer = func() {
		_ = logger.Sync()
		closeLog()
	}
	return nil
}

// close 刷新并关闭日志；未初始化时为空操作
func (c *cli) close() {
	if c.closer != nil {
		c.closer()
		c.closer = nil
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "SceneForge %s\n", Version)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
		},
	}
}
