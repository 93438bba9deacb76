package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/BaSui01/sceneforge/agent/artifacts"
	"github.com/BaSui01/sceneforge/agent/execution"
	"github.com/BaSui01/sceneforge/agent/feedback"
	"github.com/BaSui01/sceneforge/agent/generator"
	"github.com/BaSui01/sceneforge/agent/persistence"
	"github.com/BaSui01/sceneforge/agent/scene"
	"github.com/BaSui01/sceneforge/internal/lock"
	"github.com/BaSui01/sceneforge/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/BaSui01/sceneforge/agent"

// Config 重试循环配置
type Config struct {
	MaxAttempts int           `json:"max_attempts"`
	ProgramPath string        `json:"program_path"`
	Cooldown    time.Duration `json:"cooldown"`

	// Provider / Model 仅用于记录与指标
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// RecordPrograms 把清洗后的程序写入 journal
	RecordPrograms bool `json:"record_programs"`

	LockWait  time.Duration `json:"lock_wait"`
	LockRetry time.Duration `json:"lock_retry"`
}

// DefaultConfig 返回默认循环配置
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 6,
		ProgramPath: "generated_scene.py",
		Cooldown:    5 * time.Second,
		LockRetry:   500 * time.Millisecond,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1, got %d", ErrConfigInvalid, c.MaxAttempts)
	}
	if c.ProgramPath == "" {
		return fmt.Errorf("%w: program_path is required", ErrConfigInvalid)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("%w: cooldown must not be negative", ErrConfigInvalid)
	}
	return nil
}

// Components 循环的五个协作者，全部必需
type Components struct {
	Generator   Generator
	Sanitizer   Sanitizer
	Executor    Executor
	Validator   Validator
	Synthesizer Synthesizer
}

func (c Components) validate() error {
	missing := func(name string) error { return fmt.Errorf("%w: %s", ErrComponentMissing, name) }
	switch {
	case c.Generator == nil:
		return missing("generator")
	case c.Sanitizer == nil:
		return missing("sanitizer")
	case c.Executor == nil:
		return missing("executor")
	case c.Validator == nil:
		return missing("validator")
	case c.Synthesizer == nil:
		return missing("synthesizer")
	}
	return nil
}

// Option 配置 Orchestrator
type Option func(*Orchestrator)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithJournal 记录每次运行与 attempt
func WithJournal(j persistence.Journal) Option {
	return func(o *Orchestrator) { o.journal = j }
}

// WithArchiver 归档每次 attempt 的程序与渲染结果
func WithArchiver(a Archiver) Option {
	return func(o *Orchestrator) { o.archiver = a }
}

// WithLocker 运行期间独占输出目录
func WithLocker(l lock.Locker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

// WithMetrics 设置指标收集器
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer 设置 tracer，默认取全局 TracerProvider
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithSystemInstructions 覆盖对话的 system 轮次
func WithSystemInstructions(s string) Option {
	return func(o *Orchestrator) { o.system = s }
}

// Orchestrator 驱动 generate → patch → execute → validate → feedback 循环。
// 同一实例的 Run 串行执行：每次 attempt 都读写同一个程序文件与输出目录，
// 对话历史只属于一次 Run。
type Orchestrator struct {
	cfg  Config
	spec scene.Spec
	c    Components

	system   string
	logger   *zap.Logger
	journal  persistence.Journal
	archiver Archiver
	locker   lock.Locker
	metrics  Metrics
	tracer   trace.Tracer

	sleep func(ctx context.Context, d time.Duration) error
	newID func() string

	mu       sync.RWMutex
	progress Progress
}

// New 创建 Orchestrator
func New(cfg Config, spec scene.Spec, c Components, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := spec.Layout.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		cfg:     cfg,
		spec:    spec,
		c:       c,
		system:  scene.DefaultSystemInstructions,
		logger:  zap.NewNop(),
		metrics: nopMetrics{},
		tracer:  otel.Tracer(tracerName),
		sleep:   sleepContext,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "orchestrator"))
	return o, nil
}

// Run 执行一次完整的重试循环，直到 ACCEPTED、EXHAUSTED 或 ABORTED。
// ACCEPTED 与 EXHAUSTED 返回 nil 错误，由 RunReport.Err 区分；
// ABORTED 返回导致终止的错误。运行开始前的失败（如输出目录被占用）返回 nil 报告。
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	runID := o.newID()
	ctx = types.WithRunID(ctx, runID)
	logger := o.logger.With(zap.String("run_id", runID))

	programPath, err := filepath.Abs(o.cfg.ProgramPath)
	if err != nil {
		return nil, fmt.Errorf("resolve program path: %w", err)
	}
	dir := filepath.Dir(programPath)

	ctx, span := o.tracer.Start(ctx, "sceneforge.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("scene.name", o.spec.Name),
		attribute.Int("run.max_attempts", o.cfg.MaxAttempts),
	))
	defer span.End()

	if o.locker != nil {
		release, err := lock.Acquire(ctx, o.locker, dir, o.cfg.LockWait, o.cfg.LockRetry)
		if err != nil {
			if errors.Is(err, lock.ErrLocked) {
				err = fmt.Errorf("%w: %s", ErrSlotBusy, dir)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("release output slot failed", zap.Error(err))
			}
		}()
	}

	report := &RunReport{
		RunID:       runID,
		Scene:       o.spec.Name,
		ProgramPath: programPath,
		StartedAt:   time.Now(),
	}
	o.startRun(ctx, report, logger)
	o.updateProgress(func(p *Progress) {
		*p = Progress{
			RunID:       runID,
			Scene:       o.spec.Name,
			State:       StateGenerate,
			MaxAttempts: o.cfg.MaxAttempts,
			StartedAt:   report.StartedAt,
			Running:     true,
		}
	})

	logger.Info("run started",
		zap.String("scene", o.spec.Name),
		zap.String("program", programPath),
		zap.Int("max_attempts", o.cfg.MaxAttempts))

	conv := generator.NewConversation(o.system)
	base := o.spec.Prompt()
	prompt := base
	paths := o.spec.Layout.Paths(dir)
	m := &machine{
		state:   StateGenerate,
		metrics: o.metrics,
		logger:  logger,
		onState: func(s State) { o.updateProgress(func(p *Progress) { p.State = s }) },
	}

	for k := 1; ; k++ {
		o.updateProgress(func(p *Progress) { p.Attempt = k })
		att := o.attempt(ctx, k, conv, prompt, programPath, paths, m, logger)
		report.History = append(report.History, *att)
		report.Attempts = k
		report.Reason = att.Reason
		o.updateProgress(func(p *Progress) { p.LastReason = att.Reason })
		o.recordAttempt(ctx, runID, att, programPath, paths, logger)

		if att.Accepted {
			report.Artifacts = paths
			break
		}
		if att.fatal {
			m.to(StateAborted)
			report.cause = att.err
			break
		}

		m.to(StateFeedback)
		if k >= o.cfg.MaxAttempts {
			m.to(StateExhausted)
			break
		}

		// 反馈总是基于原始提示，不在上一轮修正上叠加
		fb := o.c.Synthesizer.Synthesize(base, feedback.Input{
			Diagnostics: att.Diagnostics,
			Verdict:     att.Verdict,
			Program:     att.Program,
		})
		prompt = fb.Prompt
		logger.Info("attempt rejected",
			zap.Int("attempt", k),
			zap.String("reason", att.Reason),
			zap.Strings("matched", fb.Matched))

		if err := o.sleep(ctx, o.cfg.Cooldown); err != nil {
			m.to(StateAborted)
			report.Reason = "run cancelled during cooldown"
			report.cause = types.NewError(types.ErrCancelled, "run cancelled").WithCause(err)
			break
		}
		m.to(StateGenerate)
	}

	report.State = m.state
	report.Duration = time.Since(report.StartedAt)
	o.updateProgress(func(p *Progress) { p.Running = false })
	report.Conversation = conv.Turns()
	o.finishRun(ctx, report, logger)
	o.metrics.RecordRun(string(report.State), report.Attempts)

	span.SetAttributes(
		attribute.String("run.state", string(report.State)),
		attribute.Int("run.attempts", report.Attempts),
	)
	if !report.Accepted() {
		span.SetStatus(codes.Error, report.Summary())
	}

	logger.Info("run finished",
		zap.String("state", string(report.State)),
		zap.Int("attempts", report.Attempts),
		zap.String("reason", report.Reason),
		zap.Duration("duration", report.Duration))

	if report.State == StateAborted {
		return report, report.cause
	}
	return report, nil
}

// attempt 执行一次 GENERATE → PATCH → EXECUTE → VALIDATE。
// attempt 内的 panic 被恢复并记为一次被拒绝的 attempt。
func (o *Orchestrator) attempt(
	ctx context.Context,
	k int,
	conv *generator.Conversation,
	prompt, programPath string,
	paths []string,
	m *machine,
	logger *zap.Logger,
) (att *AttemptReport) {
	att = &AttemptReport{Ordinal: k}
	start := time.Now()
	ctx = types.WithAttempt(ctx, k)
	ctx, span := o.tracer.Start(ctx, "sceneforge.attempt", trace.WithAttributes(attribute.Int("attempt", k)))
	logger = logger.With(zap.Int("attempt", k))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("attempt panicked",
				zap.Any("panic", r),
				zap.String("state", string(m.state)),
				zap.Stack("stack"))
			reason := fmt.Sprintf("internal error: %v", r)
			att.reject(reason, types.NewError(types.ErrInternalError, reason))
		}
		att.State = m.state
		att.Duration = time.Since(start)
		o.metrics.RecordAttempt(att.outcome(), att.Duration)

		span.SetAttributes(
			attribute.String("attempt.state", string(att.State)),
			attribute.Bool("attempt.accepted", att.Accepted),
		)
		if !att.Accepted {
			if att.err != nil {
				span.RecordError(att.err)
			}
			span.SetStatus(codes.Error, att.Reason)
		}
		span.End()
	}()

	// GENERATE
	genStart := time.Now()
	res, err := o.c.Generator.Generate(ctx, conv, prompt)
	att.GenerateDuration = time.Since(genStart)
	if err != nil {
		o.metrics.RecordLLMRequest(o.cfg.Provider, o.cfg.Model, "error", att.GenerateDuration, 0, 0)
		reason := fmt.Sprintf("generation failed: %v", err)
		if fatal := cancelled(ctx, err); fatal != nil {
			att.abort(reason, fatal)
			return att
		}
		// 鉴权、配额等不可恢复的 API 错误在循环中只消耗一次 attempt
		if types.IsErrorCode(err, types.ErrFatalAPI) {
			logger.Warn("non-recoverable api error", zap.Error(err))
		}
		att.reject(reason, err)
		return att
	}
	att.RateLimited = res.RateLimited
	o.metrics.RecordLLMRequest(o.cfg.Provider, o.cfg.Model, "success", res.Duration,
		res.Usage.PromptTokens, res.Usage.CompletionTokens)

	// PATCH
	m.to(StatePatch)
	san := o.c.Sanitizer.Apply(res.Text)
	att.Program = san.Program
	att.AppliedRules = san.Applied
	o.metrics.RecordSanitizerRules(san.Applied)
	if len(san.Failed) > 0 {
		logger.Warn("sanitizer rules skipped", zap.Strings("rules", san.Failed))
	}
	if err := execution.WriteProgram(programPath, san.Program); err != nil {
		att.reject(fmt.Sprintf("write program: %v", err), err)
		return att
	}
	n, err := artifacts.Clear(paths)
	if err != nil {
		att.reject(fmt.Sprintf("clear stale artifacts: %v", err), err)
		return att
	}
	if n > 0 {
		logger.Debug("cleared stale artifacts", zap.Int("count", n))
	}

	// EXECUTE
	m.to(StateExecute)
	run, err := o.c.Executor.Execute(ctx, programPath)
	if run != nil {
		att.ExitCode = run.ExitCode
		att.TimedOut = run.TimedOut
		att.ExecuteDuration = run.Duration
		o.metrics.RecordEngineExecution(run.Succeeded(), run.TimedOut, run.Duration)
	}
	if fatal := cancelled(ctx, err); fatal != nil {
		att.abort("execution cancelled", fatal)
		return att
	}
	switch {
	case run == nil:
		if err == nil {
			err = errors.New("executor returned no result")
		}
		att.reject(fmt.Sprintf("execution failed: %v", err), err)
		return att
	case !run.Succeeded():
		att.Diagnostics = run.Diagnostics()
		reason := fmt.Sprintf("execution failed with exit code %d", run.ExitCode)
		if run.TimedOut {
			reason = fmt.Sprintf("execution timed out after %s", run.Duration.Round(time.Millisecond))
		}
		if err == nil {
			err = types.NewError(types.ErrExecutionFailed, reason)
		}
		att.reject(reason, err)
		return att
	}

	// VALIDATE
	m.to(StateValidate)
	valStart := time.Now()
	verdict, err := o.c.Validator.Validate(ctx, paths)
	att.ValidateDuration = time.Since(valStart)
	if err != nil {
		if fatal := cancelled(ctx, err); fatal != nil {
			att.abort("validation cancelled", fatal)
			return att
		}
		att.reject(fmt.Sprintf("validation failed: %v", err), err)
		return att
	}
	att.Verdict = verdict
	if !verdict.Accepted {
		o.metrics.RecordValidationRejections(verdict.Reasons())
		att.reject(verdict.Reason(), types.NewError(types.ErrValidationFailed, verdict.Reason()))
		return att
	}

	m.to(StateAccepted)
	att.Accepted = true
	logger.Info("attempt accepted", zap.Strings("artifacts", paths))
	return att
}

// Once 单次模式：生成、清洗、执行，不做像素校验也不重试。任何失败都返回错误。
func (o *Orchestrator) Once(ctx context.Context) (*AttemptReport, error) {
	runID := o.newID()
	ctx = types.WithRunID(ctx, runID)
	programPath, err := filepath.Abs(o.cfg.ProgramPath)
	if err != nil {
		return nil, fmt.Errorf("resolve program path: %w", err)
	}

	att := &AttemptReport{Ordinal: 1, State: StateGenerate}
	conv := generator.NewConversation(o.system)

	res, err := o.c.Generator.Generate(ctx, conv, o.spec.Prompt())
	if err != nil {
		return att, err
	}
	att.RateLimited = res.RateLimited
	att.GenerateDuration = res.Duration

	att.State = StatePatch
	san := o.c.Sanitizer.Apply(res.Text)
	att.Program = san.Program
	att.AppliedRules = san.Applied
	if err := execution.WriteProgram(programPath, san.Program); err != nil {
		return att, err
	}

	att.State = StateExecute
	run, err := o.c.Executor.Execute(ctx, programPath)
	if run != nil {
		att.ExitCode = run.ExitCode
		att.TimedOut = run.TimedOut
		att.ExecuteDuration = run.Duration
		att.Diagnostics = run.Diagnostics()
	}
	if err != nil {
		return att, err
	}
	if !run.Succeeded() {
		return att, types.NewError(types.ErrExecutionFailed,
			fmt.Sprintf("execution failed with exit code %d", run.ExitCode))
	}
	att.Accepted = true
	return att, nil
}

func (o *Orchestrator) startRun(ctx context.Context, report *RunReport, logger *zap.Logger) {
	if o.journal == nil {
		return
	}
	err := o.journal.StartRun(ctx, &persistence.RunRecord{
		ID:          report.RunID,
		Description: o.spec.Description,
		Provider:    o.cfg.Provider,
		Model:       o.cfg.Model,
		MaxAttempts: o.cfg.MaxAttempts,
		State:       string(StateGenerate),
		StartedAt:   report.StartedAt,
	})
	if err != nil {
		logger.Warn("journal start run failed", zap.Error(err))
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, runID string, att *AttemptReport, programPath string, paths []string, logger *zap.Logger) {
	// 取消后仍要记下被中断的 attempt
	ctx = context.WithoutCancel(ctx)

	if o.journal != nil {
		rec := &persistence.AttemptRecord{
			RunID:          runID,
			Ordinal:        att.Ordinal,
			State:          string(att.State),
			Accepted:       att.Accepted,
			Reason:         att.Reason,
			Diagnostics:    att.Diagnostics,
			ExitCode:       att.ExitCode,
			TimedOut:       att.TimedOut,
			GenerateMillis: att.GenerateDuration.Milliseconds(),
			ExecuteMillis:  att.ExecuteDuration.Milliseconds(),
			ValidateMillis: att.ValidateDuration.Milliseconds(),
		}
		if o.cfg.RecordPrograms {
			rec.Program = att.Program
		}
		if err := o.journal.RecordAttempt(ctx, rec); err != nil {
			logger.Warn("journal record attempt failed", zap.Int("attempt", att.Ordinal), zap.Error(err))
		}
	}

	// 生成失败时程序文件仍是上一次的，不归档
	if o.archiver != nil && att.Program != "" {
		_, err := o.archiver.Archive(ctx, artifacts.Snapshot{
			RunID:   runID,
			Attempt: att.Ordinal,
			State:   string(att.State),
			Reason:  att.Reason,
			Program: programPath,
			Renders: paths,
		})
		if err != nil {
			logger.Warn("archive attempt failed", zap.Int("attempt", att.Ordinal), zap.Error(err))
		}
	}
}

func (o *Orchestrator) finishRun(ctx context.Context, report *RunReport, logger *zap.Logger) {
	if o.journal == nil {
		return
	}
	err := o.journal.FinishRun(context.WithoutCancel(ctx), report.RunID, persistence.RunUpdate{
		State:    string(report.State),
		Reason:   report.Reason,
		Attempts: report.Attempts,
	})
	if err != nil {
		logger.Warn("journal finish run failed", zap.Error(err))
	}
}

// machine 跟踪当前状态并记录每次转换
type machine struct {
	state   State
	metrics Metrics
	logger  *zap.Logger
	onState func(State)
}

func (m *machine) to(next State) {
	if !CanTransition(m.state, next) {
		m.logger.DPanic("invalid state transition", zap.Error(ErrInvalidTransition{From: m.state, To: next}))
	}
	m.metrics.RecordStateTransition(string(m.state), string(next))
	m.logger.Debug("state transition",
		zap.String("from", string(m.state)),
		zap.String("to", string(next)))
	m.state = next
	if m.onState != nil {
		m.onState(next)
	}
}

func cancelled(ctx context.Context, err error) error {
	if types.IsErrorCode(err, types.ErrCancelled) {
		return err
	}
	if ctx.Err() != nil {
		return types.NewError(types.ErrCancelled, "run cancelled").WithCause(ctx.Err())
	}
	if errors.Is(err, context.Canceled) {
		return types.NewError(types.ErrCancelled, "run cancelled").WithCause(err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
