package db

import (
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/types"
)

// AutoMigrateAll migrates every model this core owns.
func (s *Service) AutoMigrateAll() error {
	return AutoMigrate(s.db)
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&types.User{},
		&types.Activity{},
		&types.Track{},
		&types.Segment{},
		&types.SegmentEffort{},
		&types.Achievement{},
	)
}
