package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/BaSui01/sceneforge/agent/persistence"
	"github.com/BaSui01/sceneforge/agent/sanitizer"
	"github.com/BaSui01/sceneforge/agent/validation"
)

// =============================================================================
// 🧹 sanitize 命令
// =============================================================================

func newSanitizeCmd(c *cli) *cobra.Command {
	var showRules bool
	cmd := &cobra.Command{
		Use:   "sanitize [file]",
		Short: "Sanitize raw model output into a runnable program (reads stdin without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			spec, err := c.cfg.Scene.Spec()
			if err != nil {
				return err
			}
			san, err := sanitizer.New(sanitizer.Options{
				Layout:         spec.Layout,
				DefensiveNames: c.cfg.Sanitizer.DefensiveNames,
				Disabled:       c.cfg.Sanitizer.Disabled,
			}, c.logger)
			if err != nil {
				return err
			}
			if showRules {
				for _, name := range san.Rules() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			res := san.Apply(raw)
			fmt.Fprint(cmd.OutOrStdout(), res.Program)
			for _, name := range res.Applied {
				fmt.Fprintf(cmd.ErrOrStderr(), "applied: %s\n", name)
			}
			for _, name := range res.Failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showRules, "rules", false, "list the enabled rules in order and exit")
	return cmd
}

func readInput(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// 🖼️ validate 命令
// =============================================================================

func newValidateCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate [render...]",
		Short: "Validate rendered images (defaults to the configured output layout)",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				spec, err := c.cfg.Scene.Spec()
				if err != nil {
					return err
				}
				abs, err := filepath.Abs(c.cfg.Loop.ProgramPath)
				if err != nil {
					return err
				}
				paths = spec.Layout.Paths(filepath.Dir(abs))
			}

			v, err := validation.NewValidator(c.cfg.Validation, c.logger)
			if err != nil {
				return err
			}
			verdict, err := v.Validate(cmd.Context(), paths)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, verdict); err != nil {
					return err
				}
			} else {
				printVerdict(out, verdict)
			}
			if !verdict.Accepted {
				return &exitCodeError{code: exitRejected, err: errors.New(verdict.Reason())}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verdict as JSON")
	return cmd
}

func printVerdict(out io.Writer, v *validation.Verdict) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ARTIFACT\tSIZE\tSTDDEV\tRESULT")
	for _, a := range v.Artifacts {
		result := "ok"
		if a.Failure != nil {
			result = a.Failure.String()
		}
		fmt.Fprintf(tw, "%s\t%dx%d\t%.2f\t%s\n", filepath.Base(a.Path), a.Width, a.Height, a.StdDev, result)
	}
	_ = tw.Flush()
	if v.Accepted {
		fmt.Fprintln(out, "accepted")
	} else {
		fmt.Fprintf(out, "rejected: %s\n", v.Reason())
	}
}

// =============================================================================
// 📜 history 命令
// =============================================================================

func newHistoryCmd(c *cli) *cobra.Command {
	var (
		state string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or the attempts of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.cfg.Journal.Enabled {
				return errors.New("journal is disabled: set journal.enabled to record and inspect runs")
			}
			j, err := persistence.NewJournal(c.cfg.Journal, c.logger)
			if err != nil {
				return err
			}
			defer j.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return printAttempts(cmd, j, args[0], out)
			}

			runs, err := j.ListRuns(cmd.Context(), persistence.RunFilter{State: state, Limit: limit})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tSTATE\tATTEMPTS\tREASON")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%s\n",
					r.ID, r.StartedAt.Format(time.DateTime), r.State, r.Attempts, r.MaxAttempts, r.Reason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "only runs in this terminal state (ACCEPTED, EXHAUSTED, ABORTED)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	return cmd
}

func printAttempts(cmd *cobra.Command, j persistence.Journal, runID string, out io.Writer) error {
	run, err := j.GetRun(cmd.Context(), runID)
	if err != nil {
		return err
	}
	attempts, err := j.ListAttempts(cmd.Context(), runID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "run %s  %s  %d/%d attempts\n", run.ID, run.State, run.Attempts, run.MaxAttempts)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTATE\tEXIT\tGEN\tEXEC\tVALIDATE\tREASON")
	for _, a := range attempts {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%dms\t%dms\t%dms\t%s\n",
			a.Ordinal, a.State, a.ExitCode, a.GenerateMillis, a.ExecuteMillis, a.ValidateMillis, a.Reason)
	}
	return tw.Flush()
}
