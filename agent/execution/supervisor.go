package execution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BaSui01/sceneforge/types"
	"go.uber.org/zap"
)

// Mode 决定非零退出如何交给调用方。
type Mode string

const (
	// ModeCapture 非零退出作为诊断文本返回，供反馈合成使用（重试循环的默认模式）
	ModeCapture Mode = "capture"
	// ModeFailFast 非零退出直接返回错误，仅用于不循环的单次调用
	ModeFailFast Mode = "fail-fast"
)

// ProgramPlaceholder 在参数模板中替换为程序文件路径
const ProgramPlaceholder = "{program}"

// Config 配置引擎子进程。
type Config struct {
	Executable     string            `yaml:"executable" env:"EXECUTABLE"`
	Args           []string          `yaml:"args" env:"ARGS"`
	Timeout        time.Duration     `yaml:"timeout" env:"TIMEOUT"`
	Mode           Mode              `yaml:"mode" env:"MODE"`
	MaxOutputBytes int               `yaml:"max_output_bytes" env:"MAX_OUTPUT_BYTES"` // stdout / stderr 各保留末尾这么多字节
	KillGrace      time.Duration     `yaml:"kill_grace" env:"KILL_GRACE"`
	Env            map[string]string `yaml:"env"`
}

// DefaultConfig 无界面批处理模式运行 Blender。
// --python-exit-code 让脚本异常反映到进程退出码上。
func DefaultConfig() Config {
	return Config{
		Executable:     "blender",
		Args:           []string{"--background", "--python", ProgramPlaceholder, "--python-exit-code", "1"},
		Timeout:        10 * time.Minute,
		Mode:           ModeCapture,
		MaxOutputBytes: 1024 * 1024, // 1MB
		KillGrace:      5 * time.Second,
	}
}

// Validate 检查配置
func (c Config) Validate() error {
	if c.Executable == "" {
		return errors.New("execution: executable is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("execution: timeout must be positive, got %s", c.Timeout)
	}
	if c.Mode != ModeCapture && c.Mode != ModeFailFast {
		return fmt.Errorf("execution: unknown mode %q", c.Mode)
	}
	return nil
}

// Result 一次引擎调用的结果。
type Result struct {
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	TimedOut  bool          `json:"timed_out"`
	Truncated bool          `json:"truncated,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Succeeded 退出码为 0 且未超时
func (r *Result) Succeeded() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Diagnostics 失败时的诊断文本：优先 stderr，stderr 为空时取 stdout 末尾。
// 成功时为空字符串。
func (r *Result) Diagnostics() string {
	if r.Succeeded() {
		return ""
	}
	diag := strings.TrimSpace(r.Stderr)
	if diag == "" {
		diag = tail(strings.TrimSpace(r.Stdout), 4096)
	}
	if r.TimedOut {
		if diag == "" {
			return "execution timed out"
		}
		return "execution timed out\n" + diag
	}
	return diag
}

// Stats 执行统计
type Stats struct {
	TotalExecutions   int64         `json:"total_executions"`
	SuccessExecutions int64         `json:"success_executions"`
	FailedExecutions  int64         `json:"failed_executions"`
	TimeoutExecutions int64         `json:"timeout_executions"`
	TotalDuration     time.Duration `json:"total_duration"`
}

// Supervisor 以子进程方式运行引擎，并施加自己的墙钟超时。
type Supervisor struct {
	cfg    Config
	logger *zap.Logger

	mu    sync.RWMutex
	stats Stats
}

// NewSupervisor 创建 Supervisor
func NewSupervisor(cfg Config, logger *zap.Logger) (*Supervisor, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeCapture
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "execution")),
	}, nil
}

// Mode 返回当前模式
func (s *Supervisor) Mode() Mode { return s.cfg.Mode }

// Command 返回对给定程序的完整命令行
func (s *Supervisor) Command(programPath string) []string {
	argv := make([]string, 0, len(s.cfg.Args)+1)
	argv = append(argv, s.cfg.Executable)
	for _, a := range s.cfg.Args {
		argv = append(argv, strings.ReplaceAll(a, ProgramPlaceholder, programPath))
	}
	return argv
}

// Execute 运行程序。
//
// 进程无法启动时返回错误。capture 模式下非零退出与超时都记录在 Result 中，
// 返回 nil 错误；fail-fast 模式下二者都返回 EXECUTION_FAILED，Result 仍然非 nil。
func (s *Supervisor) Execute(ctx context.Context, programPath string) (*Result, error) {
	absPath, err := filepath.Abs(programPath)
	if err != nil {
		return nil, fmt.Errorf("resolve program path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return nil, fmt.Errorf("program not found: %w", err)
	}

	execCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	argv := s.Command(absPath)
	cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(absPath)
	cmd.Env = os.Environ()
	for k, v := range s.cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = s.cfg.KillGrace

	stdout := newTailBuffer(s.cfg.MaxOutputBytes)
	stderr := newTailBuffer(s.cfg.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	s.logger.Debug("starting engine",
		zap.Strings("argv", argv),
		zap.Duration("timeout", s.cfg.Timeout))

	start := time.Now()
	runErr := cmd.Run()

	result := &Result{
		ExitCode:  -1,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.Truncated() || stderr.Truncated(),
		Duration:  time.Since(start),
	}
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			result.TimedOut = true
		case ctx.Err() != nil:
			s.record(result)
			return result, types.NewError(types.ErrCancelled, "engine execution cancelled").WithCause(ctx.Err())
		case errors.As(runErr, &exitErr):
			// 非零退出，交给下面按模式处理
		case cmd.ProcessState == nil:
			return nil, fmt.Errorf("start engine %q: %w", argv[0], runErr)
		}
	}
	s.record(result)

	fields := []zap.Field{
		zap.Int("exit_code", result.ExitCode),
		zap.Bool("timed_out", result.TimedOut),
		zap.Duration("duration", result.Duration),
	}
	if result.Succeeded() {
		s.logger.Debug("engine finished", fields...)
		return result, nil
	}
	s.logger.Info("engine failed", fields...)

	if s.cfg.Mode == ModeFailFast {
		msg := fmt.Sprintf("engine exited with code %d", result.ExitCode)
		if result.TimedOut {
			msg = fmt.Sprintf("engine timed out after %s", s.cfg.Timeout)
		}
		return result, types.NewError(types.ErrExecutionFailed, msg).
			WithCause(errors.New(result.Diagnostics()))
	}
	return result, nil
}

func (s *Supervisor) record(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalExecutions++
	s.stats.TotalDuration += r.Duration
	switch {
	case r.Succeeded():
		s.stats.SuccessExecutions++
	case r.TimedOut:
		s.stats.FailedExecutions++
		s.stats.TimeoutExecutions++
	default:
		s.stats.FailedExecutions++
	}
}

// Stats 返回执行统计
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
