package persistence

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewJournal creates a Journal based on the configuration
func NewJournal(config StoreConfig, logger *zap.Logger) (Journal, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch config.Type {
	case StoreTypeMemory:
		return NewMemoryJournal(), nil
	case StoreTypeSQLite:
		dialector = sqlite.Open(config.DSN)
	case StoreTypePostgres:
		dialector = postgres.Open(config.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect journal database: %w", err)
	}

	if config.Type == StoreTypeSQLite {
		// sqlite 单写者；:memory: 每个连接是独立的库
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	journal, err := NewGormJournal(db, logger)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("journal opened", zap.String("type", string(config.Type)))
	}
	return journal, nil
}

// MustNewJournal creates a Journal or panics on error.
//
// WARNING: only use during application initialization.
func MustNewJournal(config StoreConfig, logger *zap.Logger) Journal {
	journal, err := NewJournal(config, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to create journal: %v", err))
	}
	return journal
}
