package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/data/repos/testutil"
	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/types"
)

var effortStart = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func createUser(t *testing.T, tx *gorm.DB, gender string, birthYear int) *types.User {
	t.Helper()
	repo := NewUserRepo(nil, testutil.Logger(t))
	rows, err := repo.Create(context.Background(), tx, []*types.User{{
		Email:       fmt.Sprintf("%s@example.com", uuid.NewString()),
		DisplayName: "Test Rider",
		Gender:      gender,
		BirthYear:   testutil.PtrInt(birthYear),
	}})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return rows[0]
}

func createActivity(t *testing.T, tx *gorm.DB, userID uuid.UUID) *types.Activity {
	t.Helper()
	repo := NewActivityRepo(nil, testutil.Logger(t))
	rows, err := repo.Create(context.Background(), tx, []*types.Activity{{
		UserID: userID,
		Name:   "Morning ride",
		Sport:  "ride",
		Status: types.ActivityStatusUploaded,
	}})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	return rows[0]
}

func createSegment(t *testing.T, tx *gorm.DB, creatorID uuid.UUID, bb geo.BoundingBox) *types.Segment {
	t.Helper()
	pts := []geo.Point{
		{Lon: bb.MinLon, Lat: bb.MinLat},
		{Lon: bb.MaxLon, Lat: bb.MaxLat},
	}
	raw, err := json.Marshal(pts)
	if err != nil {
		t.Fatalf("marshal points: %v", err)
	}
	repo := NewSegmentRepo(nil, testutil.Logger(t))
	rows, err := repo.Create(context.Background(), tx, []*types.Segment{{
		CreatorID:  creatorID,
		Name:       "Test segment",
		Sport:      "ride",
		Visibility: types.SegmentVisibilityPublic,
		Points:     raw,
		StartLon:   bb.MinLon, StartLat: bb.MinLat,
		EndLon: bb.MaxLon, EndLat: bb.MaxLat,
		MinLon: bb.MinLon, MinLat: bb.MinLat,
		MaxLon: bb.MaxLon, MaxLat: bb.MaxLat,
		DistanceM:     geo.Haversine(pts[0], pts[1]),
		ClimbCategory: "NC",
	}})
	if err != nil {
		t.Fatalf("create segment: %v", err)
	}
	return rows[0]
}

func createEffort(t *testing.T, tx *gorm.DB, userID, segmentID, activityID uuid.UUID, elapsedS float64, startedAt time.Time) *types.SegmentEffort {
	t.Helper()
	repo := NewEffortRepo(nil, testutil.Logger(t))
	row, err := repo.Create(context.Background(), tx, &types.SegmentEffort{
		SegmentID:     segmentID,
		ActivityID:    activityID,
		UserID:        userID,
		StartedAt:     startedAt,
		ElapsedS:      elapsedS,
		MovingTimeS:   elapsedS,
		StartFraction: 0.1,
		EndFraction:   0.9,
	})
	if err != nil {
		t.Fatalf("create effort: %v", err)
	}
	return row
}
