package agent

import (
	"fmt"
	"time"

	"github.com/BaSui01/sceneforge/agent/validation"
	"github.com/BaSui01/sceneforge/llm"
	"github.com/BaSui01/sceneforge/types"
)

// AttemptReport 一次 generate→patch→execute→validate 的结果
type AttemptReport struct {
	Ordinal int `json:"ordinal"`
	// State attempt 结束时到达的状态；通过时为 ACCEPTED
	State    State  `json:"state"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`

	Diagnostics  string              `json:"diagnostics,omitempty"`
	ExitCode     int                 `json:"exit_code"`
	TimedOut     bool                `json:"timed_out,omitempty"`
	RateLimited  int                 `json:"rate_limited,omitempty"`
	AppliedRules []string            `json:"applied_rules,omitempty"`
	Verdict      *validation.Verdict `json:"verdict,omitempty"`
	Program      string              `json:"-"`

	GenerateDuration time.Duration `json:"generate_duration"`
	ExecuteDuration  time.Duration `json:"execute_duration"`
	ValidateDuration time.Duration `json:"validate_duration"`
	Duration         time.Duration `json:"duration"`

	err   error
	fatal bool
}

// Err 失败 attempt 的底层错误
func (a *AttemptReport) Err() error { return a.err }

func (a *AttemptReport) reject(reason string, err error) {
	a.Accepted = false
	a.Reason = reason
	a.err = err
}

func (a *AttemptReport) abort(reason string, err error) {
	a.reject(reason, err)
	a.fatal = true
}

func (a *AttemptReport) outcome() string {
	switch {
	case a.Accepted:
		return "accepted"
	case a.fatal:
		return "aborted"
	default:
		return "rejected"
	}
}

// RunReport 一次运行的最终报告
type RunReport struct {
	RunID string `json:"run_id"`
	Scene string `json:"scene"`
	State State  `json:"state"`
	// Attempts 消耗的 attempt 数
	Attempts int `json:"attempts"`
	// Reason 最后一次拒绝的原因，原样保留
	Reason string `json:"reason,omitempty"`

	ProgramPath  string          `json:"program_path"`
	Artifacts    []string        `json:"artifacts,omitempty"`
	Conversation []llm.Message   `json:"-"`
	History      []AttemptReport `json:"history"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	cause error
}

// Accepted 是否通过
func (r *RunReport) Accepted() bool { return r.State == StateAccepted }

// Err 把终态映射为错误：ACCEPTED 为 nil，EXHAUSTED 为 BUDGET_EXHAUSTED，
// ABORTED 为导致终止的错误（CANCELLED）。
func (r *RunReport) Err() error {
	switch r.State {
	case StateAccepted:
		return nil
	case StateExhausted:
		return types.NewError(types.ErrBudgetExhausted,
			fmt.Sprintf("exhausted after %d attempts: %s", r.Attempts, r.Reason))
	default:
		if r.cause != nil {
			return r.cause
		}
		return types.NewError(types.ErrInternalError, r.Reason)
	}
}

// Summary 一行可读结论
func (r *RunReport) Summary() string {
	switch r.State {
	case StateAccepted:
		return fmt.Sprintf("accepted on attempt %d", r.Attempts)
	case StateExhausted:
		return fmt.Sprintf("exhausted after %d attempts: %s", r.Attempts, r.Reason)
	default:
		return fmt.Sprintf("aborted on attempt %d: %s", r.Attempts, r.Reason)
	}
}
