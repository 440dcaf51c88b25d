package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

type AchievementRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.Achievement) (*types.Achievement, error)
	// LockSegmentCrown serializes crown transitions for one (segment, crown
	// type) pair. Held until the surrounding transaction finishes.
	LockSegmentCrown(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, crownType string) error
	// CurrentHolder returns the open Achievement (lost_at IS NULL) for a
	// (segment, crown type) pair, or nil.
	CurrentHolder(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, crownType string) (*types.Achievement, error)
	MarkLost(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
	ListBySegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) ([]*types.Achievement, error)
	ListOpenByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Achievement, error)
}

type achievementRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAchievementRepo(db *gorm.DB, baseLog *logger.Logger) AchievementRepo {
	return &achievementRepo{db: db, log: baseLog.With("repo", "AchievementRepo")}
}

func (r *achievementRepo) Create(ctx context.Context, tx *gorm.DB, row *types.Achievement) (*types.Achievement, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil, nil
	}
	if err := t.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// LockSegmentCrown takes a transaction-scoped advisory lock so two concurrent
// efforts cannot both read the same holder and both insert an open row. An
// unclaimed crown has no row to lock, so a plain FOR UPDATE would not do.
func (r *achievementRepo) LockSegmentCrown(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, crownType string) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if t.Dialector.Name() != "postgres" {
		// sqlite serializes writers on its own.
		return nil
	}
	key := "crown:" + segmentID.String() + ":" + crownType
	return t.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", key).Error
}

func (r *achievementRepo) CurrentHolder(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, crownType string) (*types.Achievement, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if segmentID == uuid.Nil || crownType == "" {
		return nil, nil
	}
	var out []*types.Achievement
	if err := t.WithContext(ctx).
		Where("segment_id = ? AND crown_type = ? AND lost_at IS NULL", segmentID, crownType).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *achievementRepo) MarkLost(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(ctx).
		Model(&types.Achievement{}).
		Where("id = ? AND lost_at IS NULL", id).
		Updates(map[string]interface{}{
			"lost_at":    at,
			"updated_at": at,
		}).Error
}

func (r *achievementRepo) ListBySegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) ([]*types.Achievement, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Achievement
	if segmentID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("segment_id = ?", segmentID).
		Order("earned_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *achievementRepo) ListOpenByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Achievement, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.Achievement
	if userID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("user_id = ? AND lost_at IS NULL", userID).
		Order("earned_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
