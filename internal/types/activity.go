package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActivityStatusUploaded   = "uploaded"
	ActivityStatusProcessing = "processing"
	ActivityStatusReady      = "ready"
	ActivityStatusFailed     = "failed"
)

type Activity struct {
	ID     uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`

	Name   string `gorm:"not null" json:"name"`
	Sport  string `gorm:"not null;default:'ride';index" json:"sport"`
	Status string `gorm:"not null;default:'uploaded';index" json:"status"`

	StartedAt *time.Time `gorm:"index" json:"started_at,omitempty"`

	// Whole-activity metrics, filled by the processing pipeline.
	DistanceM      float64 `gorm:"column:distance_m;not null;default:0" json:"distance_m"`
	DurationS      float64 `gorm:"column:duration_s;not null;default:0" json:"duration_s"`
	ElevationGainM float64 `gorm:"column:elevation_gain_m;not null;default:0" json:"elevation_gain_m"`
	MovingTimeS    float64 `gorm:"column:moving_time_s;not null;default:0" json:"moving_time_s"`
	AvgSpeedMps    float64 `gorm:"column:avg_speed_mps;not null;default:0" json:"avg_speed_mps"`
	MaxSpeedMps    float64 `gorm:"column:max_speed_mps;not null;default:0" json:"max_speed_mps"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Activity) TableName() string { return "activities" }
