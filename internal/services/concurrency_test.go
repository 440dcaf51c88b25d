package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/data/repos"
	"github.com/openridge/trailforge-backend/internal/data/repos/testutil"
	"github.com/openridge/trailforge-backend/internal/types"
)

// These tests need committed, overlapping transactions, so they run against
// the real database and clean up after themselves instead of using the
// rollback helper.

func seedConcurrencyUser(t *testing.T, gdb *gorm.DB, gender string) *types.User {
	t.Helper()
	u := &types.User{
		Email:       uuid.NewString() + "@example.com",
		DisplayName: "concurrent rider",
		Gender:      gender,
	}
	if err := gdb.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() { gdb.Unscoped().Delete(&types.User{}, "id = ?", u.ID) })
	return u
}

func seedConcurrencyActivity(t *testing.T, gdb *gorm.DB, userID uuid.UUID) *types.Activity {
	t.Helper()
	a := &types.Activity{UserID: userID, Name: "ride", Sport: "ride", Status: types.ActivityStatusProcessing}
	if err := gdb.Create(a).Error; err != nil {
		t.Fatalf("create activity: %v", err)
	}
	t.Cleanup(func() { gdb.Unscoped().Delete(&types.Activity{}, "id = ?", a.ID) })
	return a
}

func seedConcurrencySegment(t *testing.T, gdb *gorm.DB, creatorID uuid.UUID) *types.Segment {
	t.Helper()
	s := &types.Segment{
		CreatorID:  creatorID,
		Name:       "contested climb",
		Sport:      "ride",
		Visibility: types.SegmentVisibilityPublic,
		Points:     datatypes.JSON([]byte(`[]`)),
		DistanceM:  500,
	}
	if err := gdb.Create(s).Error; err != nil {
		t.Fatalf("create segment: %v", err)
	}
	t.Cleanup(func() {
		gdb.Unscoped().Delete(&types.Achievement{}, "segment_id = ?", s.ID)
		gdb.Unscoped().Delete(&types.SegmentEffort{}, "segment_id = ?", s.ID)
		gdb.Unscoped().Delete(&types.Segment{}, "id = ?", s.ID)
	})
	return s
}

func TestRecordEffortConcurrentActivitiesSinglePR(t *testing.T) {
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	effortRepo := repos.NewEffortRepo(gdb, log)
	svc := NewEffortService(log, effortRepo)

	user := seedConcurrencyUser(t, gdb, types.GenderUnspecified)
	seg := seedConcurrencySegment(t, gdb, user.ID)
	actA := seedConcurrencyActivity(t, gdb, user.ID)
	actB := seedConcurrencyActivity(t, gdb, user.ID)

	started := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	ctx := context.Background()

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, in := range []struct {
		activityID uuid.UUID
		elapsed    float64
	}{
		{actA.ID, 100},
		{actB.ID, 120},
	} {
		i, in := i, in
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = gdb.Transaction(func(tx *gorm.DB) error {
				_, _, err := svc.RecordEffort(ctx, tx, &types.SegmentEffort{
					SegmentID:     seg.ID,
					ActivityID:    in.activityID,
					UserID:        user.ID,
					StartedAt:     started,
					ElapsedS:      in.elapsed,
					StartFraction: 0.1,
					EndFraction:   0.9,
				})
				return err
			})
		}()
	}
	close(start)
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("transaction %d: %v", i, err)
		}
	}

	var prs []*types.SegmentEffort
	if err := gdb.Where("user_id = ? AND segment_id = ? AND is_personal_record", user.ID, seg.ID).
		Find(&prs).Error; err != nil {
		t.Fatalf("load PR rows: %v", err)
	}
	if len(prs) != 1 {
		t.Fatalf("got %d PR rows, want exactly 1", len(prs))
	}
	if prs[0].ElapsedS != 100 {
		t.Fatalf("PR elapsed = %.0f, want the faster 100", prs[0].ElapsedS)
	}
}

func TestProcessEffortConcurrentCrownClaims(t *testing.T) {
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	effortRepo := repos.NewEffortRepo(gdb, log)
	achievementRepo := repos.NewAchievementRepo(gdb, log)
	svc := NewAchievementService(log, achievementRepo, effortRepo, nil)

	fast := seedConcurrencyUser(t, gdb, types.GenderUnspecified)
	slow := seedConcurrencyUser(t, gdb, types.GenderUnspecified)
	seg := seedConcurrencySegment(t, gdb, fast.ID)
	started := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	ctx := context.Background()
	var efforts []*types.SegmentEffort
	for _, in := range []struct {
		user    *types.User
		elapsed float64
	}{
		{fast, 90},
		{slow, 130},
	} {
		act := seedConcurrencyActivity(t, gdb, in.user.ID)
		e := &types.SegmentEffort{
			SegmentID:     seg.ID,
			ActivityID:    act.ID,
			UserID:        in.user.ID,
			StartedAt:     started,
			ElapsedS:      in.elapsed,
			StartFraction: 0.1,
			EndFraction:   0.9,
		}
		if _, err := effortRepo.Create(ctx, nil, e); err != nil {
			t.Fatalf("seed effort: %v", err)
		}
		efforts = append(efforts, e)
	}
	owners := []*types.User{fast, slow}

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range efforts {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = gdb.Transaction(func(tx *gorm.DB) error {
				return svc.ProcessEffort(ctx, tx, efforts[i], owners[i])
			})
		}()
	}
	close(start)
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("transaction %d: %v", i, err)
		}
	}

	var open []*types.Achievement
	if err := gdb.Where("segment_id = ? AND crown_type = ? AND lost_at IS NULL", seg.ID, types.CrownCourseRecord).
		Find(&open).Error; err != nil {
		t.Fatalf("load open crowns: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("got %d open course_record rows, want exactly 1", len(open))
	}
	if open[0].UserID != fast.ID {
		t.Fatalf("crown held by %s, want the faster rider %s", open[0].UserID, fast.ID)
	}
}
