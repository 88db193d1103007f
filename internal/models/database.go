package models

import (
	"fmt"
	"time"

	"github.com/Riddhimaan-Senapati/vantage-bench/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to the configured database without touching the global handle.
func Open(cfg *config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	gormLevel := gormlogger.Warn
	if logLevel == "debug" {
		gormLevel = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if cfg.Driver == "sqlite" || cfg.Driver == "" {
		// sqlite serializes writers; one connection avoids "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return db, nil
}

func InitDB(cfg *config.DatabaseConfig, logLevel string) error {
	db, err := Open(cfg, logLevel)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Member{},
		&Task{},
		&Suggestion{},
		&SystemLog{},
		&AIUsageLog{},
		&SchedulerLock{},
	)
}

func GetDB() *gorm.DB {
	return DB
}
