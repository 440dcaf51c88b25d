package types

import (
	"time"

	"github.com/google/uuid"
)

// SegmentEffort is one timed traversal of a segment by one activity. Rows are
// written by the matcher and never mutated afterwards except for the PR flag.
// The (segment_id, activity_id) unique index backs matcher idempotency.
type SegmentEffort struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SegmentID  uuid.UUID `gorm:"type:uuid;not null;index:idx_segment_activity,unique,priority:1;index:idx_segment_elapsed,priority:1;index:uq_user_segment_pr,unique,priority:2" json:"segment_id"`
	Segment    *Segment  `gorm:"constraint:OnDelete:CASCADE;foreignKey:SegmentID;references:ID" json:"segment,omitempty"`
	ActivityID uuid.UUID `gorm:"type:uuid;not null;index:idx_segment_activity,unique,priority:2" json:"activity_id"`
	Activity   *Activity `gorm:"constraint:OnDelete:CASCADE;foreignKey:ActivityID;references:ID" json:"activity,omitempty"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index:idx_user_segment,priority:1;index:uq_user_segment_pr,unique,priority:1,where:is_personal_record" json:"user_id"`
	User       *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`

	StartedAt   time.Time `gorm:"not null;index" json:"started_at"`
	ElapsedS    float64   `gorm:"column:elapsed_s;not null;index:idx_segment_elapsed,priority:2" json:"elapsed_s"`
	MovingTimeS float64   `gorm:"column:moving_time_s;not null;default:0" json:"moving_time_s"`
	AvgSpeedMps float64   `gorm:"column:avg_speed_mps;not null;default:0" json:"avg_speed_mps"`
	MaxSpeedMps float64   `gorm:"column:max_speed_mps;not null;default:0" json:"max_speed_mps"`

	// Fractional positions of the traversal along the source track; the
	// matcher guarantees StartFraction < EndFraction.
	StartFraction float64 `gorm:"column:start_fraction;not null" json:"start_fraction"`
	EndFraction   float64 `gorm:"column:end_fraction;not null" json:"end_fraction"`

	// uq_user_segment_pr is partial over rows with the flag set, so the
	// schema rejects a second PR row per (user, segment).
	IsPersonalRecord bool `gorm:"not null;default:false;index:idx_user_segment,priority:2" json:"is_personal_record"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (SegmentEffort) TableName() string { return "segment_efforts" }
