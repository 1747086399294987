package bootstrap

import (
	"github.com/choretide/gamification/internal/model"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the engine owns. Definitions live
// in the JSON catalog, not the database, so only per-user state migrates.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.PointTransaction{},
		&model.UserProgress{},
		&model.UserAchievement{},
		&model.UserBadge{},
		&model.UserChallenge{},
	)
}
