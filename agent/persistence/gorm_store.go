package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// GormJournal 基于 GORM 的运行日志，sqlite 与 postgres 共用。
type GormJournal struct {
	db     *gorm.DB
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewGormJournal 包装一个已打开的连接并迁移表结构。
func NewGormJournal(db *gorm.DB, logger *zap.Logger) (*GormJournal, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&RunRecord{}, &AttemptRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate journal tables: %w", err)
	}
	return &GormJournal{
		db:     db,
		logger: logger.With(zap.String("component", "journal")),
	}, nil
}

// DB 返回底层 GORM 实例
func (s *GormJournal) DB() *gorm.DB {
	return s.db
}

func (s *GormJournal) conn(ctx context.Context) (*gorm.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.db.WithContext(ctx), nil
}

func (s *GormJournal) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

func (s *GormJournal) Ping(ctx context.Context) error {
	if _, err := s.conn(ctx); err != nil {
		return err
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormJournal) StartRun(ctx context.Context, run *RunRecord) error {
	if err := validateRun(run); err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if err := db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}
	s.logger.Debug("run started", zap.String("run_id", run.ID))
	return nil
}

func (s *GormJournal) RecordAttempt(ctx context.Context, attempt *AttemptRecord) error {
	if err := validateAttempt(attempt); err != nil {
		return err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now()
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var run RunRecord
		if err := tx.Where("id = ?", attempt.RunID).First(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load run %s: %w", attempt.RunID, err)
		}
		if err := tx.Create(attempt).Error; err != nil {
			return fmt.Errorf("failed to record attempt %d: %w", attempt.Ordinal, err)
		}
		var count int64
		if err := tx.Model(&AttemptRecord{}).Where("run_id = ?", attempt.RunID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count attempts: %w", err)
		}
		return tx.Model(&RunRecord{}).Where("id = ?", attempt.RunID).Update("attempts", count).Error
	})
}

func (s *GormJournal) FinishRun(ctx context.Context, runID string, update RunUpdate) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	res := db.Model(&RunRecord{}).Where("id = ?", runID).Updates(map[string]any{
		"state":       update.State,
		"reason":      update.Reason,
		"attempts":    update.Attempts,
		"finished_at": &now,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.logger.Debug("run finished",
		zap.String("run_id", runID),
		zap.String("state", update.State),
		zap.Int("attempts", update.Attempts),
	)
	return nil
}

func (s *GormJournal) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var run RunRecord
	if err := db.Where("id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &run, nil
}

func (s *GormJournal) ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Model(&RunRecord{}).Order("started_at DESC").Order("id DESC")
	if filter.State != "" {
		q = q.Where("state = ?", filter.State)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var runs []*RunRecord
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

func (s *GormJournal) ListAttempts(ctx context.Context, runID string) ([]*AttemptRecord, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var attempts []*AttemptRecord
	if err := db.Where("run_id = ?", runID).Order("ordinal ASC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}
