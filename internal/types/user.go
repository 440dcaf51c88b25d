package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	GenderFemale      = "female"
	GenderMale        = "male"
	GenderUnspecified = "unspecified"
)

// User carries the demographic attributes synced from the profile
// collaborator. This core reads them for crown eligibility and leaderboard
// filters.
type User struct {
	ID          uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email       string    `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string    `gorm:"not null" json:"display_name"`

	Gender    string   `gorm:"not null;default:'unspecified';index" json:"gender"`
	BirthYear *int     `gorm:"column:birth_year" json:"birth_year,omitempty"`
	WeightKg  *float64 `gorm:"column:weight_kg" json:"weight_kg,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "users" }

// AgeGroup buckets a birth year for leaderboard filtering. Empty when the
// user has no birth year on file.
func (u *User) AgeGroup(now time.Time) string {
	if u.BirthYear == nil {
		return ""
	}
	return AgeGroupForYear(*u.BirthYear, now)
}

func AgeGroupForYear(birthYear int, now time.Time) string {
	age := now.Year() - birthYear
	switch {
	case age < 20:
		return "0-19"
	case age < 25:
		return "20-24"
	case age < 35:
		return "25-34"
	case age < 45:
		return "35-44"
	case age < 55:
		return "45-54"
	case age < 65:
		return "55-64"
	default:
		return "65+"
	}
}
