package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/opsdeck/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
// Membership rows must exist before the tenant tables reference teams.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Membership{},
		&models.TeamInvitation{},
		&models.ServerProvider{},
		&models.Server{},
		&models.Site{},
		&models.Database{},
		&models.CronJob{},
		&models.Daemon{},
		&models.SshKey{},
		&models.SourceControl{},
		&models.ActivityLog{},
		&models.CacheEntry{},
	)
}
