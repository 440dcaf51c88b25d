package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

// EffortFilter scopes a leaderboard computation. Zero-value fields mean "no
// filter"; birth-year bounds are inclusive.
type EffortFilter struct {
	SegmentID    uuid.UUID
	Since        *time.Time
	Until        *time.Time
	Gender       string
	MinBirthYear *int
	MaxBirthYear *int
}

// LeaderboardRow is one user's best qualifying effort.
type LeaderboardRow struct {
	UserID     uuid.UUID `json:"user_id"`
	ActivityID uuid.UUID `json:"activity_id"`
	EffortID   uuid.UUID `json:"effort_id"`
	ElapsedS   float64   `json:"elapsed_s"`
	StartedAt  time.Time `json:"started_at"`
}

type EffortRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.SegmentEffort) (*types.SegmentEffort, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SegmentEffort, error)
	// LockUserSegment serializes PR evaluation for one (user, segment) pair.
	// Held until the surrounding transaction commits or rolls back.
	LockUserSegment(ctx context.Context, tx *gorm.DB, userID, segmentID uuid.UUID) error
	// ExistsForSegmentActivity backs matcher idempotency.
	ExistsForSegmentActivity(ctx context.Context, tx *gorm.DB, segmentID, activityID uuid.UUID) (bool, error)
	// BestForUserSegment returns the user's fastest effort on a segment,
	// earlier started_at breaking ties. Nil when the user has none.
	BestForUserSegment(ctx context.Context, tx *gorm.DB, userID, segmentID uuid.UUID) (*types.SegmentEffort, error)
	// CurrentPR returns the effort flagged as the user's personal record.
	CurrentPR(ctx context.Context, tx *gorm.DB, userID, segmentID uuid.UUID) (*types.SegmentEffort, error)
	SetPersonalRecord(ctx context.Context, tx *gorm.DB, id uuid.UUID, flag bool) error
	ListByActivity(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) ([]*types.SegmentEffort, error)
	ListBySegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) ([]*types.SegmentEffort, error)
	// BestEffortsPerUser is the leaderboard source query: the fastest effort
	// of each user matching the filter, joined against user demographics.
	BestEffortsPerUser(ctx context.Context, tx *gorm.DB, f EffortFilter) ([]LeaderboardRow, error)
	// ListSegmentIDsByUser supports cache invalidation on demographic edits.
	ListSegmentIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
}

type effortRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEffortRepo(db *gorm.DB, baseLog *logger.Logger) EffortRepo {
	return &effortRepo{db: db, log: baseLog.With("repo", "EffortRepo")}
}

func (r *effortRepo) Create(ctx context.Context, tx *gorm.DB, row *types.SegmentEffort) (*types.SegmentEffort, error) {
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

func (r *effortRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.SegmentEffort, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out []*types.SegmentEffort
	if err := t.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

// LockUserSegment takes a transaction-scoped advisory lock so two activities
// of the same user on the same segment cannot both read "no prior best" and
// both flag a personal record. Row locks cannot cover this: with no prior
// efforts there is no row to lock.
func (r *effortRepo) LockUserSegment(ctx context.Context, tx *gorm.DB, userID, segmentID uuid.UUID) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if t.Dialector.Name() != "postgres" {
		// sqlite serializes writers on its own.
		return nil
	}
	key := "effort_pr:" + userID.String() + ":" + segmentID.String()
	return t.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", key).Error
}

func (r *effortRepo) ExistsForSegmentActivity(ctx context.Context, tx *gorm.DB, segmentID, activityID uuid.UUID) (bool, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var count int64
	if err := t.WithContext(ctx).
		Model(&types.SegmentEffort{}).
		Where("segment_id = ? AND activity_id = ?", segmentID, activityID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *effortRepo) BestForUserSegment(ctx context.Context, tx *gorm.DB, userID, segmentID uuid.UUID) (*types.SegmentEffort, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.SegmentEffort
	if err := t.WithContext(ctx).
		Where("user_id = ? AND segment_id = ?", userID, segmentID).
		Order("elapsed_s ASC, started_at ASC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *effortRepo) CurrentPR(ctx context.Context, tx *gorm.DB, userID, segmentID uuid.UUID) (*types.SegmentEffort, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.SegmentEffort
	if err := t.WithContext(ctx).
		Where("user_id = ? AND segment_id = ? AND is_personal_record = ?", userID, segmentID, true).
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *effortRepo) SetPersonalRecord(ctx context.Context, tx *gorm.DB, id uuid.UUID, flag bool) error {
	t := tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return t.WithContext(ctx).
		Model(&types.SegmentEffort{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_personal_record": flag,
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *effortRepo) ListByActivity(ctx context.Context, tx *gorm.DB, activityID uuid.UUID) ([]*types.SegmentEffort, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.SegmentEffort
	if activityID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("started_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *effortRepo) ListBySegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) ([]*types.SegmentEffort, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var out []*types.SegmentEffort
	if segmentID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(ctx).
		Where("segment_id = ?", segmentID).
		Order("elapsed_s ASC, started_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *effortRepo) BestEffortsPerUser(ctx context.Context, tx *gorm.DB, f EffortFilter) ([]LeaderboardRow, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	if f.SegmentID == uuid.Nil {
		return nil, nil
	}

	q := t.WithContext(ctx).
		Model(&types.SegmentEffort{}).
		Select("segment_efforts.user_id, segment_efforts.activity_id, segment_efforts.id AS effort_id, segment_efforts.elapsed_s, segment_efforts.started_at").
		Joins("JOIN users ON users.id = segment_efforts.user_id AND users.deleted_at IS NULL").
		Where("segment_efforts.segment_id = ?", f.SegmentID)

	if f.Since != nil {
		q = q.Where("segment_efforts.started_at >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("segment_efforts.started_at < ?", *f.Until)
	}
	if f.Gender != "" {
		q = q.Where("users.gender = ?", f.Gender)
	}
	if f.MinBirthYear != nil {
		q = q.Where("users.birth_year >= ?", *f.MinBirthYear)
	}
	if f.MaxBirthYear != nil {
		q = q.Where("users.birth_year <= ?", *f.MaxBirthYear)
	}

	var rows []LeaderboardRow
	if err := q.Order("segment_efforts.elapsed_s ASC, segment_efforts.started_at ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	// Keep each user's first (fastest) row; the ORDER BY makes this the
	// per-user best with earlier started_at breaking ties.
	seen := make(map[uuid.UUID]struct{}, len(rows))
	best := rows[:0]
	for _, row := range rows {
		if _, ok := seen[row.UserID]; ok {
			continue
		}
		seen[row.UserID] = struct{}{}
		best = append(best, row)
	}
	return best, nil
}

func (r *effortRepo) ListSegmentIDsByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	t := tx
	if t == nil {
		t = r.db
	}
	var ids []uuid.UUID
	if userID == uuid.Nil {
		return ids, nil
	}
	if err := t.WithContext(ctx).
		Model(&types.SegmentEffort{}).
		Distinct("segment_id").
		Where("user_id = ?", userID).
		Pluck("segment_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
