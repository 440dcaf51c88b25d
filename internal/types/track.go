package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/openridge/trailforge-backend/internal/geo"
)

// Track is the stored point sequence of exactly one activity. It is written
// once when ingestion completes and replaced wholesale on re-ingestion.
type Track struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ActivityID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"activity_id"`
	Activity   *Activity `gorm:"constraint:OnDelete:CASCADE;foreignKey:ActivityID;references:ID" json:"activity,omitempty"`

	Points     datatypes.JSON `gorm:"not null" json:"points"`
	PointCount int            `gorm:"not null;default:0" json:"point_count"`

	MinLon float64 `gorm:"column:min_lon;not null;default:0" json:"min_lon"`
	MinLat float64 `gorm:"column:min_lat;not null;default:0" json:"min_lat"`
	MaxLon float64 `gorm:"column:max_lon;not null;default:0" json:"max_lon"`
	MaxLat float64 `gorm:"column:max_lat;not null;default:0" json:"max_lat"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Track) TableName() string { return "tracks" }

// NewTrack builds a Track row from a point stream, capturing the bounding box
// used by the spatial candidate queries.
func NewTrack(activityID uuid.UUID, pts []geo.Point) (*Track, error) {
	raw, err := json.Marshal(pts)
	if err != nil {
		return nil, err
	}
	bb := geo.Bounds(pts)
	return &Track{
		ActivityID: activityID,
		Points:     datatypes.JSON(raw),
		PointCount: len(pts),
		MinLon:     bb.MinLon,
		MinLat:     bb.MinLat,
		MaxLon:     bb.MaxLon,
		MaxLat:     bb.MaxLat,
	}, nil
}

// DecodePoints unmarshals the stored point stream.
func (t *Track) DecodePoints() ([]geo.Point, error) {
	var pts []geo.Point
	if err := json.Unmarshal(t.Points, &pts); err != nil {
		return nil, err
	}
	return pts, nil
}

// Bounds returns the stored bounding box without decoding the points.
func (t *Track) Bounds() geo.BoundingBox {
	return geo.BoundingBox{MinLon: t.MinLon, MinLat: t.MinLat, MaxLon: t.MaxLon, MaxLat: t.MaxLat}
}
