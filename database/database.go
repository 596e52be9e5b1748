package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/redirect10-prog/siteForge-ai/internal/domain/site"
	"github.com/redirect10-prog/siteForge-ai/internal/domain/users"
)

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{
		&users.User{},
		&users.Subscription{},
		&site.Website{},
		&site.Revision{},
		&site.Asset{},
	}
}

// Open connects to postgres and migrates the schema.
func Open(dsn string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("database: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database connected and migrated")
	return db, nil
}

// Migrate enables the uuid extension and auto-migrates Models.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("database: enable pgcrypto: %w", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("database: automigrate: %w", err)
	}
	return nil
}
