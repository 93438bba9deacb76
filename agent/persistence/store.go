package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of journal backend
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypePostgres StoreType = "postgres"
)

// StoreConfig 运行日志存储配置
type StoreConfig struct {
	// Enabled 为 false 时不记录任何运行
	Enabled bool `yaml:"enabled" json:"enabled" env:"ENABLED"`

	// Type 后端类型：memory / sqlite / postgres
	Type StoreType `yaml:"type" json:"type" env:"TYPE"`

	// DSN sqlite 为文件路径（或 :memory:），postgres 为连接串
	DSN string `yaml:"dsn" json:"dsn" env:"DSN"`
}

// DefaultStoreConfig returns a disabled sqlite journal next to the working dir.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Enabled: false,
		Type:    StoreTypeSQLite,
		DSN:     "sceneforge.db",
	}
}

// Validate checks the configuration.
func (c StoreConfig) Validate() error {
	switch c.Type {
	case StoreTypeMemory:
		return nil
	case StoreTypeSQLite, StoreTypePostgres:
		if c.DSN == "" {
			return fmt.Errorf("journal dsn is required for %s", c.Type)
		}
		return nil
	default:
		return fmt.Errorf("unsupported journal type: %s", c.Type)
	}
}

// RunRecord 一次完整运行（多个 attempt）的记录
type RunRecord struct {
	ID          string     `gorm:"primaryKey;size:64" json:"id"`
	Description string     `gorm:"type:text" json:"description"`
	Provider    string     `gorm:"size:50" json:"provider"`
	Model       string     `gorm:"size:100" json:"model"`
	MaxAttempts int        `gorm:"default:0" json:"max_attempts"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	State       string     `gorm:"size:20;index:idx_run_state" json:"state"`
	Reason      string     `gorm:"type:text" json:"reason"`
	StartedAt   time.Time  `gorm:"index:idx_run_started" json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

func (RunRecord) TableName() string {
	return "sceneforge_runs"
}

// Finished reports whether the run reached a terminal state.
func (r *RunRecord) Finished() bool {
	return r.FinishedAt != nil
}

// AttemptRecord 单个 attempt 的结果
type AttemptRecord struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	RunID   string `gorm:"size:64;not null;uniqueIndex:idx_run_ordinal" json:"run_id"`
	Ordinal int    `gorm:"not null;uniqueIndex:idx_run_ordinal" json:"ordinal"`

	// State 该 attempt 到达的最后状态（EXECUTE / VALIDATE / ACCEPTED ...）
	State       string `gorm:"size:20" json:"state"`
	Accepted    bool   `gorm:"default:false" json:"accepted"`
	Reason      string `gorm:"type:text" json:"reason"`
	Diagnostics string `gorm:"type:text" json:"diagnostics,omitempty"`
	ExitCode    int    `gorm:"default:0" json:"exit_code"`
	TimedOut    bool   `gorm:"default:false" json:"timed_out"`
	Program     string `gorm:"type:text" json:"program,omitempty"`

	GenerateMillis int64 `gorm:"default:0" json:"generate_ms"`
	ExecuteMillis  int64 `gorm:"default:0" json:"execute_ms"`
	ValidateMillis int64 `gorm:"default:0" json:"validate_ms"`

	CreatedAt time.Time `json:"created_at"`
}

func (AttemptRecord) TableName() string {
	return "sceneforge_attempts"
}

// RunFilter defines criteria for listing runs
type RunFilter struct {
	State string
	Limit int
}

// RunUpdate 结束运行时写入的终态
type RunUpdate struct {
	State    string
	Reason   string
	Attempts int
}

// Journal 运行日志接口。实现必须并发安全。
type Journal interface {
	StartRun(ctx context.Context, run *RunRecord) error
	RecordAttempt(ctx context.Context, attempt *AttemptRecord) error
	FinishRun(ctx context.Context, runID string, update RunUpdate) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)
	// ListRuns 按开始时间倒序
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	// ListAttempts 按 ordinal 升序
	ListAttempts(ctx context.Context, runID string) ([]*AttemptRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

func validateRun(run *RunRecord) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}
	return nil
}

func validateAttempt(a *AttemptRecord) error {
	if a == nil || a.RunID == "" {
		return fmt.Errorf("%w: attempt run id is required", ErrInvalidInput)
	}
	if a.Ordinal < 1 {
		return fmt.Errorf("%w: attempt ordinal must be >= 1, got %d", ErrInvalidInput, a.Ordinal)
	}
	return nil
}
