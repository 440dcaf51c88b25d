package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

type TrackRepo interface {
	// Replace stores the track for its activity, dropping any previous track
	// first. Re-ingestion replaces the geometry wholesale.
	Replace(ctx context.Context, tx *gorm.DB, row *types.Track) (*types.Track, error)
	GetByActivityID(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) (*types.Track, error)
	// ListByBounds returns tracks whose stored bounding box intersects bb,
	// used for retroactive matching of a new segment.
	ListByBounds(ctx context.Context, tx *gorm.DB, bb geo.BoundingBox) ([]*types.Track, error)
}

type trackRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTrackRepo(db *gorm.DB, baseLog *logger.Logger) TrackRepo {
	return &trackRepo{db: db, log: baseLog.With("repo", "TrackRepo")}
}

func (r *trackRepo) Replace(ctx context.Context, tx *gorm.DB, row *types.Track) (*types.Track, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil, nil
	}
	if err := t.WithContext(ctx).
		Where("activity_id = ?", row.ActivityID).
		Delete(&types.Track{}).Error; err != nil {
		return nil, err
	}
	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *trackRepo) GetByActivityID(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) (*types.Track, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if activityID == uuid.Nil {
		return nil, nil
	}
	var out []*types.Track
	if err := t.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *trackRepo) ListByBounds(ctx context.Context, tx *gorm.DB, bb geo.BoundingBox) ([]*types.Track, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Track
	if err := t.WithContext(ctx).
		Where("min_lon <= ? AND max_lon >= ? AND min_lat <= ? AND max_lat >= ?",
			bb.MaxLon, bb.MinLon, bb.MaxLat, bb.MinLat).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
