package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"agentplane/internal/logger"
)

// Open connects to Postgres via dsn and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("store: failed to auto-migrate: %w", err)
	}
	if err := db.SetupJoinTable(&Plan{}, "VpsConfigs", &PlanVpsConfig{}); err != nil {
		return nil, fmt.Errorf("store: failed to set up plan_vps_configs join table: %w", err)
	}

	logger.Info("store: database schema migrated")
	return db, nil
}

// PlanVpsConfig is the many2many join row between plans and vps_configs —
// a plan's operator-selectable menu of provisioning templates.
type PlanVpsConfig struct {
	PlanID      string `gorm:"type:uuid;primaryKey"`
	VpsConfigID string `gorm:"type:uuid;primaryKey"`
}

func (PlanVpsConfig) TableName() string { return "plan_vps_configs" }
