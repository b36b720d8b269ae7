package config

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"guest-intake/logging"
	"guest-intake/models"
)

// ConnectDatabase opens MySQL and migrates the registration tables.
func ConnectDatabase(cfg DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Verbose {
		level = logger.Info
	}
	gormLogger := logger.New(logging.NewPrintf(log.Named("gorm")), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database ready", zap.String("database", cfg.Name))
	return db, nil
}

// Migrate creates or updates tables in parent to child order.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Registration{},
		&models.Guest{},
	)
}
