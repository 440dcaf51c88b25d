package repos

import (
	"context"
	"testing"
	"time"

	"github.com/openridge/trailforge-backend/internal/data/repos/testutil"
	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/types"
)

func TestEffortRepoBestAndPR(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewEffortRepo(db, testutil.Logger(t))

	bb := geo.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.01, MaxLat: 0.01}
	rider := createUser(t, tx, types.GenderFemale, 1992)
	seg := createSegment(t, tx, rider.ID, bb)

	slow := createEffort(t, tx, rider.ID, seg.ID, createActivity(t, tx, rider.ID).ID, 150, effortStart)
	fast := createEffort(t, tx, rider.ID, seg.ID, createActivity(t, tx, rider.ID).ID, 110, effortStart.Add(time.Hour))
	createEffort(t, tx, rider.ID, seg.ID, createActivity(t, tx, rider.ID).ID, 130, effortStart.Add(2*time.Hour))

	best, err := repo.BestForUserSegment(ctx, tx, rider.ID, seg.ID)
	if err != nil {
		t.Fatalf("BestForUserSegment: %v", err)
	}
	if best == nil || best.ID != fast.ID {
		t.Fatalf("expected the 110s effort, got %+v", best)
	}

	if err := repo.SetPersonalRecord(ctx, tx, fast.ID, true); err != nil {
		t.Fatalf("SetPersonalRecord: %v", err)
	}
	pr, err := repo.CurrentPR(ctx, tx, rider.ID, seg.ID)
	if err != nil {
		t.Fatalf("CurrentPR: %v", err)
	}
	if pr == nil || pr.ID != fast.ID {
		t.Fatalf("expected PR on the fast effort, got %+v", pr)
	}

	if err := repo.SetPersonalRecord(ctx, tx, fast.ID, false); err != nil {
		t.Fatalf("clear PR: %v", err)
	}
	if pr, _ := repo.CurrentPR(ctx, tx, rider.ID, seg.ID); pr != nil {
		t.Fatalf("PR flag must clear, got %+v", pr)
	}

	exists, err := repo.ExistsForSegmentActivity(ctx, tx, seg.ID, slow.ActivityID)
	if err != nil {
		t.Fatalf("ExistsForSegmentActivity: %v", err)
	}
	if !exists {
		t.Fatalf("recorded (segment, activity) pair must exist")
	}
	other := createActivity(t, tx, rider.ID)
	if exists, _ := repo.ExistsForSegmentActivity(ctx, tx, seg.ID, other.ID); exists {
		t.Fatalf("unprocessed activity must not report an effort")
	}
}

func TestEffortRepoBestEffortsPerUser(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewEffortRepo(db, testutil.Logger(t))

	bb := geo.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.01, MaxLat: 0.01}
	creator := createUser(t, tx, types.GenderMale, 1985)
	seg := createSegment(t, tx, creator.ID, bb)

	alice := createUser(t, tx, types.GenderFemale, 1992) // age 34
	bob := createUser(t, tx, types.GenderMale, 1970)     // age 56

	// Alice rides twice; only her best may appear.
	createEffort(t, tx, alice.ID, seg.ID, createActivity(t, tx, alice.ID).ID, 140, effortStart)
	aliceBest := createEffort(t, tx, alice.ID, seg.ID, createActivity(t, tx, alice.ID).ID, 100, effortStart.Add(time.Hour))
	bobEffort := createEffort(t, tx, bob.ID, seg.ID, createActivity(t, tx, bob.ID).ID, 120, effortStart.Add(30*time.Minute))

	rows, err := repo.BestEffortsPerUser(ctx, tx, EffortFilter{SegmentID: seg.ID})
	if err != nil {
		t.Fatalf("BestEffortsPerUser: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected one row per user, got %d", len(rows))
	}
	if rows[0].EffortID != aliceBest.ID || rows[1].EffortID != bobEffort.ID {
		t.Fatalf("expected fastest-first per-user bests, got %+v", rows)
	}

	// Gender filter.
	women, err := repo.BestEffortsPerUser(ctx, tx, EffortFilter{SegmentID: seg.ID, Gender: types.GenderFemale})
	if err != nil {
		t.Fatalf("gender filter: %v", err)
	}
	if len(women) != 1 || women[0].UserID != alice.ID {
		t.Fatalf("expected only alice, got %+v", women)
	}

	// Birth-year window catches only bob.
	rows, err = repo.BestEffortsPerUser(ctx, tx, EffortFilter{
		SegmentID:    seg.ID,
		MinBirthYear: testutil.PtrInt(1962),
		MaxBirthYear: testutil.PtrInt(1971),
	})
	if err != nil {
		t.Fatalf("birth-year filter: %v", err)
	}
	if len(rows) != 1 || rows[0].UserID != bob.ID {
		t.Fatalf("expected only bob, got %+v", rows)
	}

	// Time window around alice's first effort only.
	until := effortStart.Add(15 * time.Minute)
	rows, err = repo.BestEffortsPerUser(ctx, tx, EffortFilter{
		SegmentID: seg.ID,
		Since:     &effortStart,
		Until:     &until,
	})
	if err != nil {
		t.Fatalf("window filter: %v", err)
	}
	if len(rows) != 1 || rows[0].ElapsedS != 140 {
		t.Fatalf("window must catch only the early effort, got %+v", rows)
	}
}

func TestEffortRepoListSegmentIDsByUser(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	repo := NewEffortRepo(db, testutil.Logger(t))

	bb := geo.BoundingBox{MinLon: 0, MinLat: 0, MaxLon: 0.01, MaxLat: 0.01}
	rider := createUser(t, tx, types.GenderMale, 1990)
	segA := createSegment(t, tx, rider.ID, bb)
	segB := createSegment(t, tx, rider.ID, bb)

	createEffort(t, tx, rider.ID, segA.ID, createActivity(t, tx, rider.ID).ID, 100, effortStart)
	createEffort(t, tx, rider.ID, segA.ID, createActivity(t, tx, rider.ID).ID, 110, effortStart.Add(time.Hour))
	createEffort(t, tx, rider.ID, segB.ID, createActivity(t, tx, rider.ID).ID, 120, effortStart)

	ids, err := repo.ListSegmentIDsByUser(ctx, tx, rider.ID)
	if err != nil {
		t.Fatalf("ListSegmentIDsByUser: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 distinct segments, got %v", ids)
	}
}
