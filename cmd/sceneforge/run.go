package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/sceneforge/agent"
	"github.com/BaSui01/sceneforge/agent/execution"
)

// runFlags run / exec 的命令行覆盖项
type runFlags struct {
	maxAttempts     int
	description     string
	descriptionFile string
	programPath     string
	jsonOutput      bool
}

func (f *runFlags) register(cmd *cobra.Command, loop bool) {
	fs := cmd.Flags()
	if loop {
		fs.IntVarP(&f.maxAttempts, "max-attempts", "n", 0, "override loop.max_attempts")
	}
	fs.StringVarP(&f.description, "description", "d", "", "scene description (overrides config)")
	fs.StringVarP(&f.descriptionFile, "description-file", "f", "", "read the scene description from a file")
	fs.StringVarP(&f.programPath, "program", "p", "", "override loop.program_path")
	fs.BoolVar(&f.jsonOutput, "json", false, "print the report as JSON")
}

func (f *runFlags) apply(c *cli) {
	if f.maxAttempts > 0 {
		c.cfg.Loop.MaxAttempts = f.maxAttempts
	}
	if f.description != "" {
		c.cfg.Scene.Description = f.description
		c.cfg.Scene.DescriptionFile = ""
	}
	if f.descriptionFile != "" {
		c.cfg.Scene.DescriptionFile = f.descriptionFile
	}
	if f.programPath != "" {
		c.cfg.Loop.ProgramPath = f.programPath
	}
}

// =============================================================================
// 🔁 run 命令
// =============================================================================

func newRunCmd(c *cli) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the generate → execute → validate loop until a render is accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(c)
			return runLoop(cmd.Context(), c, cmd.OutOrStdout(), flags.jsonOutput)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func runLoop(ctx context.Context, c *cli, out io.Writer, asJSON bool) error {
	a, err := buildApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer closeApp(a, c.logger)

	report, err := a.orchestrator.Run(ctx)
	if report == nil {
		return err
	}
	engine := a.supervisor.Stats()
	c.logger.Info("engine executions",
		zap.Int64("total", engine.TotalExecutions),
		zap.Int64("failed", engine.FailedExecutions),
		zap.Int64("timeouts", engine.TimeoutExecutions),
		zap.Duration("duration", engine.TotalDuration))

	if asJSON {
		if err := writeJSON(out, report); err != nil {
			return err
		}
	} else {
		printReport(out, report)
	}

	switch report.State {
	case agent.StateAccepted:
		return nil
	case agent.StateExhausted:
		return &exitCodeError{code: exitRejected, err: report.Err()}
	default:
		return report.Err()
	}
}

func printReport(out io.Writer, r *agent.RunReport) {
	fmt.Fprintf(out, "run %s: %s\n", r.RunID, r.Summary())
	for _, att := range r.History {
		status := "rejected"
		if att.Accepted {
			status = "accepted"
		}
		fmt.Fprintf(out, "  attempt %d  %-9s %-8s %6s", att.Ordinal, att.State, status, att.Duration.Round(time.Millisecond))
		if att.Reason != "" {
			fmt.Fprintf(out, "  %s", att.Reason)
		}
		fmt.Fprintln(out)
	}
	if r.Accepted() {
		fmt.Fprintf(out, "program: %s\n", r.ProgramPath)
		for _, p := range r.Artifacts {
			fmt.Fprintf(out, "artifact: %s\n", p)
		}
	}
}

// =============================================================================
// ▶️ exec 命令
// =============================================================================

func newExecCmd(c *cli) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Generate, sanitize and execute once without pixel validation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.apply(c)
			// 单次调用方：非零退出直接作为错误返回
			c.cfg.Engine.Mode = execution.ModeFailFast
			a, err := buildApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer closeApp(a, c.logger)

			att, err := a.orchestrator.Once(cmd.Context())
			out := cmd.OutOrStdout()
			if att != nil {
				if flags.jsonOutput {
					if jerr := writeJSON(out, att); jerr != nil {
						return jerr
					}
				} else if att.Diagnostics != "" && err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), att.Diagnostics)
				}
			}
			if err != nil {
				return err
			}
			if !flags.jsonOutput {
				fmt.Fprintf(out, "executed %s (exit code %d)\n", c.cfg.Loop.ProgramPath, att.ExitCode)
			}
			return nil
		},
	}
	flags.register(cmd, false)
	return cmd
}

func closeApp(a *app, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		logger.Warn("shutdown failed", zap.Error(err))
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
