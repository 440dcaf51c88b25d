package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/data/repos"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New("development")
	if err != nil {
		tb.Fatalf("logger: %v", err)
	}
	return log
}

// fakeEffortRepo keeps efforts in memory and answers the same queries the SQL
// repo does. The tx argument is ignored.
type fakeEffortRepo struct {
	efforts []*types.SegmentEffort
	users   map[uuid.UUID]*types.User
}

func newFakeEffortRepo() *fakeEffortRepo {
	return &fakeEffortRepo{users: map[uuid.UUID]*types.User{}}
}

func (r *fakeEffortRepo) addUser(u *types.User) { r.users[u.ID] = u }

func (r *fakeEffortRepo) Create(_ context.Context, _ *gorm.DB, row *types.SegmentEffort) (*types.SegmentEffort, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	r.efforts = append(r.efforts, row)
	return row, nil
}

func (r *fakeEffortRepo) GetByID(_ context.Context, _ *gorm.DB, id uuid.UUID) (*types.SegmentEffort, error) {
	for _, e := range r.efforts {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEffortRepo) LockUserSegment(_ context.Context, _ *gorm.DB, _, _ uuid.UUID) error {
	return nil
}

func (r *fakeEffortRepo) ExistsForSegmentActivity(_ context.Context, _ *gorm.DB, segmentID, activityID uuid.UUID) (bool, error) {
	for _, e := range r.efforts {
		if e.SegmentID == segmentID && e.ActivityID == activityID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeEffortRepo) BestForUserSegment(_ context.Context, _ *gorm.DB, userID, segmentID uuid.UUID) (*types.SegmentEffort, error) {
	var best *types.SegmentEffort
	for _, e := range r.efforts {
		if e.UserID != userID || e.SegmentID != segmentID {
			continue
		}
		if best == nil || e.ElapsedS < best.ElapsedS ||
			(e.ElapsedS == best.ElapsedS && e.StartedAt.Before(best.StartedAt)) {
			best = e
		}
	}
	return best, nil
}

func (r *fakeEffortRepo) CurrentPR(_ context.Context, _ *gorm.DB, userID, segmentID uuid.UUID) (*types.SegmentEffort, error) {
	for _, e := range r.efforts {
		if e.UserID == userID && e.SegmentID == segmentID && e.IsPersonalRecord {
			return e, nil
		}
	}
	return nil, nil
}

func (r *fakeEffortRepo) SetPersonalRecord(_ context.Context, _ *gorm.DB, id uuid.UUID, flag bool) error {
	for _, e := range r.efforts {
		if e.ID == id {
			e.IsPersonalRecord = flag
		}
	}
	return nil
}

func (r *fakeEffortRepo) ListByActivity(_ context.Context, _ *gorm.DB, activityID uuid.UUID) ([]*types.SegmentEffort, error) {
	var out []*types.SegmentEffort
	for _, e := range r.efforts {
		if e.ActivityID == activityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEffortRepo) ListBySegment(_ context.Context, _ *gorm.DB, segmentID uuid.UUID) ([]*types.SegmentEffort, error) {
	var out []*types.SegmentEffort
	for _, e := range r.efforts {
		if e.SegmentID == segmentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEffortRepo) BestEffortsPerUser(_ context.Context, _ *gorm.DB, f repos.EffortFilter) ([]repos.LeaderboardRow, error) {
	var matched []*types.SegmentEffort
	for _, e := range r.efforts {
		if e.SegmentID != f.SegmentID {
			continue
		}
		if f.Since != nil && e.StartedAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && !e.StartedAt.Before(*f.Until) {
			continue
		}
		u := r.users[e.UserID]
		if u == nil {
			continue
		}
		if f.Gender != "" && u.Gender != f.Gender {
			continue
		}
		if f.MinBirthYear != nil && (u.BirthYear == nil || *u.BirthYear < *f.MinBirthYear) {
			continue
		}
		if f.MaxBirthYear != nil && (u.BirthYear == nil || *u.BirthYear > *f.MaxBirthYear) {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ElapsedS != matched[j].ElapsedS {
			return matched[i].ElapsedS < matched[j].ElapsedS
		}
		return matched[i].StartedAt.Before(matched[j].StartedAt)
	})

	seen := map[uuid.UUID]struct{}{}
	var rows []repos.LeaderboardRow
	for _, e := range matched {
		if _, ok := seen[e.UserID]; ok {
			continue
		}
		seen[e.UserID] = struct{}{}
		rows = append(rows, repos.LeaderboardRow{
			UserID:     e.UserID,
			ActivityID: e.ActivityID,
			EffortID:   e.ID,
			ElapsedS:   e.ElapsedS,
			StartedAt:  e.StartedAt,
		})
	}
	return rows, nil
}

func (r *fakeEffortRepo) ListSegmentIDsByUser(_ context.Context, _ *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]struct{}{}
	var out []uuid.UUID
	for _, e := range r.efforts {
		if e.UserID != userID {
			continue
		}
		if _, ok := seen[e.SegmentID]; ok {
			continue
		}
		seen[e.SegmentID] = struct{}{}
		out = append(out, e.SegmentID)
	}
	return out, nil
}

// fakeAchievementRepo keeps crown rows in memory. The tx argument is ignored.
type fakeAchievementRepo struct {
	rows []*types.Achievement
}

func (r *fakeAchievementRepo) Create(_ context.Context, _ *gorm.DB, row *types.Achievement) (*types.Achievement, error) {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	r.rows = append(r.rows, row)
	return row, nil
}

func (r *fakeAchievementRepo) LockSegmentCrown(_ context.Context, _ *gorm.DB, _ uuid.UUID, _ string) error {
	return nil
}

func (r *fakeAchievementRepo) CurrentHolder(_ context.Context, _ *gorm.DB, segmentID uuid.UUID, crownType string) (*types.Achievement, error) {
	for _, a := range r.rows {
		if a.SegmentID == segmentID && a.CrownType == crownType && a.LostAt == nil {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAchievementRepo) MarkLost(_ context.Context, _ *gorm.DB, id uuid.UUID, at time.Time) error {
	for _, a := range r.rows {
		if a.ID == id && a.LostAt == nil {
			lost := at
			a.LostAt = &lost
		}
	}
	return nil
}

func (r *fakeAchievementRepo) ListBySegment(_ context.Context, _ *gorm.DB, segmentID uuid.UUID) ([]*types.Achievement, error) {
	var out []*types.Achievement
	for _, a := range r.rows {
		if a.SegmentID == segmentID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAchievementRepo) ListOpenByUser(_ context.Context, _ *gorm.DB, userID uuid.UUID) ([]*types.Achievement, error) {
	var out []*types.Achievement
	for _, a := range r.rows {
		if a.UserID == userID && a.LostAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeAchievementRepo) openFor(segmentID uuid.UUID, crownType string) *types.Achievement {
	a, _ := r.CurrentHolder(context.Background(), nil, segmentID, crownType)
	return a
}
