package common

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"inkwell/config"
)

const sqliteBusyTimeout = "_busy_timeout=5000"

// ConnectDb opens the configured store. SQLite gets a single connection so
// write transactions never interleave.
func ConnectDb(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   NewGormLogger(log),
	}

	switch cfg.DBDriver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("%w: open postgres: %v", ErrStorageUnavailable, err)
		}
		log.Info("opened postgres db")
		return db, nil

	case "sqlite":
		db, err := OpenSqlite(cfg.SqliteDB, gormCfg)
		if err != nil {
			return nil, err
		}
		log.Info("opened sqlite db", "path", cfg.SqliteDB)
		return db, nil
	}

	return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
}

// OpenSqlite opens a sqlite file (or ":memory:") limited to one connection.
func OpenSqlite(path string, gormCfg *gorm.Config) (*gorm.DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("%w: create db dir: %v", ErrStorageUnavailable, err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?" + sqliteBusyTimeout
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite: %v", ErrStorageUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// NewGormLogger routes gorm's SQL logging through slog. Only slow queries and
// errors are reported unless the logger is at debug level.
func NewGormLogger(log *slog.Logger) logger.Interface {
	level := logger.Warn
	if log.Enabled(context.Background(), slog.LevelDebug) {
		level = logger.Info
	}
	return logger.New(
		slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
