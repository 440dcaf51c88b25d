package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

type SegmentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.Segment) ([]*types.Segment, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Segment, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Segment, error)
	ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Segment, error)
	ListByCreator(ctx context.Context, tx *gorm.DB, creatorID uuid.UUID) ([]*types.Segment, error)
	// ListByBounds is the spatial candidate query behind the matcher.
	ListByBounds(ctx context.Context, tx *gorm.DB, bb geo.BoundingBox) ([]*types.Segment, error)
	SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error
}

type segmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSegmentRepo(db *gorm.DB, baseLog *logger.Logger) SegmentRepo {
	return &segmentRepo{db: db, log: baseLog.With("repo", "SegmentRepo")}
}

func (r *segmentRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.Segment) ([]*types.Segment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Segment{}, nil
	}
	if err := t.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *segmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Segment, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(ctx, tx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *segmentRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Segment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Segment
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Segment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Segment
	if err := t.WithContext(ctx).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentRepo) ListByCreator(ctx context.Context, tx *gorm.DB, creatorID uuid.UUID) ([]*types.Segment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Segment
	if creatorID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentRepo) ListByBounds(ctx context.Context, tx *gorm.DB, bb geo.BoundingBox) ([]*types.Segment, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Segment
	if err := t.WithContext(ctx).
		Where("min_lon <= ? AND max_lon >= ? AND min_lat <= ? AND max_lat >= ?",
			bb.MaxLon, bb.MinLon, bb.MaxLat, bb.MinLat).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentRepo) SoftDeleteByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(ctx).Where("id IN ?", ids).Delete(&types.Segment{}).Error
}
