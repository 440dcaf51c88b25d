package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/geo"
)

const (
	SegmentVisibilityPublic  = "public"
	SegmentVisibilityPrivate = "private"
)

// Segment is a user-defined stretch of trail cut from an existing track.
// Geometry is immutable after creation; rows are soft-deleted.
type Segment struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	CreatorID uuid.UUID `gorm:"type:uuid;not null;index" json:"creator_id"`
	Creator   *User     `gorm:"constraint:OnDelete:SET NULL;foreignKey:CreatorID;references:ID" json:"creator,omitempty"`

	Name       string `gorm:"not null" json:"name"`
	Sport      string `gorm:"not null;default:'ride';index" json:"sport"`
	Visibility string `gorm:"not null;default:'public';index" json:"visibility"`

	Points datatypes.JSON `gorm:"not null" json:"points"`

	StartLon float64 `gorm:"column:start_lon;not null" json:"start_lon"`
	StartLat float64 `gorm:"column:start_lat;not null" json:"start_lat"`
	EndLon   float64 `gorm:"column:end_lon;not null" json:"end_lon"`
	EndLat   float64 `gorm:"column:end_lat;not null" json:"end_lat"`

	MinLon float64 `gorm:"column:min_lon;not null;default:0" json:"min_lon"`
	MinLat float64 `gorm:"column:min_lat;not null;default:0" json:"min_lat"`
	MaxLon float64 `gorm:"column:max_lon;not null;default:0" json:"max_lon"`
	MaxLat float64 `gorm:"column:max_lat;not null;default:0" json:"max_lat"`

	DistanceM      float64 `gorm:"column:distance_m;not null;default:0" json:"distance_m"`
	ElevationGainM float64 `gorm:"column:elevation_gain_m;not null;default:0" json:"elevation_gain_m"`
	ElevationLossM float64 `gorm:"column:elevation_loss_m;not null;default:0" json:"elevation_loss_m"`
	AvgGrade       float64 `gorm:"column:avg_grade;not null;default:0" json:"avg_grade"`
	MaxGrade       float64 `gorm:"column:max_grade;not null;default:0" json:"max_grade"`
	ClimbCategory  string  `gorm:"column:climb_category;not null;default:'NC'" json:"climb_category"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Segment) TableName() string { return "segments" }

// DecodePoints unmarshals the segment geometry.
func (s *Segment) DecodePoints() ([]geo.Point, error) {
	var pts []geo.Point
	if err := json.Unmarshal(s.Points, &pts); err != nil {
		return nil, err
	}
	return pts, nil
}

// Bounds returns the stored geometry bounding box.
func (s *Segment) Bounds() geo.BoundingBox {
	return geo.BoundingBox{MinLon: s.MinLon, MinLat: s.MinLat, MaxLon: s.MaxLon, MaxLat: s.MaxLat}
}

// StartPoint and EndPoint are the projection anchors used by the matcher.
func (s *Segment) StartPoint() geo.Point { return geo.Point{Lon: s.StartLon, Lat: s.StartLat} }
func (s *Segment) EndPoint() geo.Point   { return geo.Point{Lon: s.EndLon, Lat: s.EndLat} }
