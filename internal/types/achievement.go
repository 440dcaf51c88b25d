package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	CrownFastestFemale = "fastest_female"
	CrownFastestMale   = "fastest_male"
	CrownCourseRecord  = "course_record"
)

// EligibleCrowns returns the crowns an effort by a user with the given gender
// competes for. Course record is unconditional.
func EligibleCrowns(gender string) []string {
	switch gender {
	case GenderFemale:
		return []string{CrownFastestFemale, CrownCourseRecord}
	case GenderMale:
		return []string{CrownFastestMale, CrownCourseRecord}
	default:
		return []string{CrownCourseRecord}
	}
}

// Achievement records a crown being held. The current holder for a
// (segment, crown type) pair is the single row with lost_at IS NULL;
// uq_segment_crown_open is partial over open rows and enforces that.
type Achievement struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	SegmentID uuid.UUID `gorm:"type:uuid;not null;index:idx_segment_crown,priority:1;index:uq_segment_crown_open,unique,priority:1,where:lost_at IS NULL" json:"segment_id"`
	Segment   *Segment  `gorm:"constraint:OnDelete:CASCADE;foreignKey:SegmentID;references:ID" json:"segment,omitempty"`
	EffortID  uuid.UUID `gorm:"type:uuid;not null" json:"effort_id"`

	CrownType string     `gorm:"not null;index:idx_segment_crown,priority:2;index:uq_segment_crown_open,unique,priority:2" json:"crown_type"`
	EarnedAt  time.Time  `gorm:"not null" json:"earned_at"`
	LostAt    *time.Time `gorm:"index" json:"lost_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Achievement) TableName() string { return "achievements" }
