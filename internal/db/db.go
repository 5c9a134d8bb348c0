package db

import (
	"fmt"
	"time"

	"discussable/internal/logger"
	"discussable/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect 连接 PostgreSQL 并执行迁移
func Connect(dsn string, log *logger.Logger, debug bool) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty database dsn")
	}
	conn, err := Open(postgres.Open(dsn), log, debug)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established")

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("Database migration completed")
	return conn, nil
}

// Open wraps gorm.Open with the settings every caller needs. Tests pass a
// sqlite dialector here.
func Open(dialector gorm.Dialector, log *logger.Logger, debug bool) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		// 唯一索引冲突统一转换为 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         NewGormLogger(log, debug),
	})
}

// NewGormLogger SQL 日志写入 zap；debug 时记录所有语句
func NewGormLogger(log *logger.Logger, debug bool) gormlogger.Interface {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(log.With("component", "gorm"), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.User{},
		&models.Discussion{},
		&models.Comment{},
		&models.Vote{},
		&models.UserContentPreference{},
	)
}
