package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneforge/agent"
	"github.com/BaSui01/sceneforge/agent/artifacts"
	"github.com/BaSui01/sceneforge/agent/execution"
	"github.com/BaSui01/sceneforge/agent/feedback"
	"github.com/BaSui01/sceneforge/agent/generator"
	"github.com/BaSui01/sceneforge/agent/persistence"
	"github.com/BaSui01/sceneforge/agent/sanitizer"
	"github.com/BaSui01/sceneforge/agent/validation"
	"github.com/BaSui01/sceneforge/config"
	"github.com/BaSui01/sceneforge/internal/lock"
	"github.com/BaSui01/sceneforge/internal/metrics"
	"github.com/BaSui01/sceneforge/internal/server"
	"github.com/BaSui01/sceneforge/internal/telemetry"
	"github.com/BaSui01/sceneforge/llm"
	"github.com/BaSui01/sceneforge/llm/providers"
	"github.com/BaSui01/sceneforge/llm/providers/mistral"
	"github.com/BaSui01/sceneforge/llm/providers/openai"
	"github.com/BaSui01/sceneforge/llm/tokenizer"
)

// app 一次命令执行所需的完整组件栈
type app struct {
	orchestrator *agent.Orchestrator
	supervisor   *execution.Supervisor
	journal      persistence.Journal

	closers []func(ctx context.Context) error
	logger  *zap.Logger
}

// Close 逆序关闭所有资源
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// runStatus /status 的响应体：循环进度加引擎执行统计
type runStatus struct {
	agent.Progress
	Engine execution.Stats `json:"engine"`
}

func (a *app) status() any {
	return runStatus{
		Progress: a.orchestrator.Progress(),
		Engine:   a.supervisor.Stats(),
	}
}

func (a *app) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// buildApp 按配置装配 provider、五个循环组件与可选的 journal / lock / archive / metrics / telemetry。
// 出错时已创建的资源会被关闭。
func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	var loopMetrics []agent.Metrics

	otelProviders, otelErr := telemetry.Init(cfg.Telemetry, logger)
	if otelErr != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(otelErr))
	} else {
		a.onClose(otelProviders.Shutdown)
		lm, err := otelProviders.LoopMetrics()
		if err != nil {
			logger.Warn("failed to create otel loop metrics", zap.Error(err))
		} else if lm != nil {
			loopMetrics = append(loopMetrics, lm)
		}
	}

	var (
		collector *metrics.Collector
		reg       *prometheus.Registry
	)
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewCollector(cfg.Metrics.Namespace, reg, logger)
		loopMetrics = append(loopMetrics, collector)
	}

	provider, err := newProvider(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	genOpts := []generator.Option{
		generator.WithLogger(logger),
		generator.WithTokenizer(tokenizer.ForModel(cfg.LLM.Model, logger)),
	}
	if collector != nil {
		genOpts = append(genOpts, generator.WithRateLimitHook(func(time.Duration) {
			collector.RecordRateLimited(provider.Name())
		}))
	}
	gen := generator.NewClient(provider, generatorConfig(cfg.LLM), genOpts...)

	spec, err := cfg.Scene.Spec()
	if err != nil {
		return nil, err
	}

	san, err := sanitizer.New(sanitizer.Options{
		Layout:         spec.Layout,
		DefensiveNames: cfg.Sanitizer.DefensiveNames,
		Disabled:       cfg.Sanitizer.Disabled,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create sanitizer: %w", err)
	}
	sup, err := execution.NewSupervisor(cfg.Engine, logger)
	if err != nil {
		return nil, fmt.Errorf("create supervisor: %w", err)
	}
	a.supervisor = sup
	val, err := validation.NewValidator(cfg.Validation, logger)
	if err != nil {
		return nil, fmt.Errorf("create validator: %w", err)
	}
	syn, err := feedback.New(cfg.Feedback, logger)
	if err != nil {
		return nil, fmt.Errorf("create feedback synthesizer: %w", err)
	}

	opts := []agent.Option{
		agent.WithLogger(logger),
		agent.WithSystemInstructions(cfg.Scene.Instructions()),
		agent.WithTracer(telemetry.Tracer()),
	}
	if len(loopMetrics) > 0 {
		opts = append(opts, agent.WithMetrics(agent.CombineMetrics(loopMetrics...)))
	}

	if cfg.Journal.Enabled {
		j, err := persistence.NewJournal(cfg.Journal, logger)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		a.journal = j
		a.onClose(func(context.Context) error { return j.Close() })
		opts = append(opts, agent.WithJournal(j))
	}

	locker, err := lock.New(cfg.Lock, logger)
	if err != nil {
		return nil, fmt.Errorf("create lock: %w", err)
	}
	a.onClose(func(context.Context) error { return locker.Close() })
	opts = append(opts, agent.WithLocker(locker))

	if cfg.Archive.Enabled {
		archiver, err := artifacts.NewArchiver(cfg.Archive.Root, logger)
		if err != nil {
			return nil, fmt.Errorf("create archiver: %w", err)
		}
		opts = append(opts, agent.WithArchiver(archiver))
	}

	loop := agent.DefaultConfig()
	loop.MaxAttempts = cfg.Loop.MaxAttempts
	loop.ProgramPath = cfg.Loop.ProgramPath
	loop.Cooldown = cfg.Loop.Cooldown
	loop.RecordPrograms = cfg.Loop.RecordPrograms
	loop.Provider = provider.Name()
	loop.Model = cfg.LLM.Model
	loop.LockWait = cfg.Lock.WaitTimeout
	loop.LockRetry = cfg.Lock.RetryInterval

	a.orchestrator, err = agent.New(loop, spec, agent.Components{
		Generator:   gen,
		Sanitizer:   san,
		Executor:    sup,
		Validator:   val,
		Synthesizer: syn,
	}, opts...)
	if err != nil {
		return nil, err
	}

	if reg != nil && cfg.Metrics.Addr != "" {
		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.Addr
		routes := server.Routes(reg, a.status, logger)
		srv := server.NewManager(routes, srvCfg, logger)
		if err := srv.Start(); err != nil {
			return nil, fmt.Errorf("start metrics server: %w", err)
		}
		a.onClose(srv.Shutdown)
	}
	return a, nil
}

// newProvider 按配置创建代码生成 Provider
func newProvider(cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key for provider %q: set llm.api_key or the provider's API key environment variable", cfg.Provider)
	}
	pc := providers.Config{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		Model:             cfg.Model,
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Organization:      cfg.Organization,
	}
	switch cfg.Provider {
	case "mistral":
		return mistral.New(pc, logger), nil
	case "openai":
		return openai.New(pc, logger), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func generatorConfig(cfg config.LLMConfig) generator.Config {
	return generator.Config{
		Model:            cfg.Model,
		Temperature:      float32(cfg.Temperature),
		MaxTokens:        cfg.MaxTokens,
		RateLimitDelay:   cfg.RateLimitDelay,
		RateLimitCeiling: cfg.RateLimitCeiling,
		ContextWarnRatio: cfg.ContextWarnRatio,
	}
}
