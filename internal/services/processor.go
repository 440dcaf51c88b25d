package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/data/repos"
	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/matcher"
	"github.com/openridge/trailforge-backend/internal/metrics"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

// ProcessorConfig carries the tuning knobs the pipeline needs.
type ProcessorConfig struct {
	MatchToleranceM     float64
	ElevationNoiseM     float64
	StopSpeedMps        float64
	SpatialQueryTimeout time.Duration
	RetryBackoff        time.Duration
}

// ProcessorService runs the per-activity pipeline: metrics, track storage,
// segment matching, effort/PR/achievement ledger updates, then cache
// invalidation. All database mutation for one activity commits in a single
// transaction; the inverse direction (new segment against stored tracks)
// commits one transaction per affected activity.
type ProcessorService interface {
	ProcessActivity(ctx context.Context, activityID uuid.UUID, pts []geo.Point) error
	ProcessSegment(ctx context.Context, segmentID uuid.UUID) error
	MarkFailed(ctx context.Context, activityID uuid.UUID)

	// Spatial index maintenance.
	SeedIndex(ctx context.Context) error
	IndexSegment(seg *types.Segment)
	UnindexSegment(id uuid.UUID)
}

type processorService struct {
	log *logger.Logger
	db  *gorm.DB
	cfg ProcessorConfig

	activityRepo repos.ActivityRepo
	trackRepo    repos.TrackRepo
	segmentRepo  repos.SegmentRepo
	userRepo     repos.UserRepo

	efforts      EffortService
	achievements AchievementService
	leaderboards LeaderboardService

	match *matcher.Matcher
	grid  *geo.SpatialGrid
}

func NewProcessorService(
	baseLog *logger.Logger,
	db *gorm.DB,
	cfg ProcessorConfig,
	activityRepo repos.ActivityRepo,
	trackRepo repos.TrackRepo,
	segmentRepo repos.SegmentRepo,
	userRepo repos.UserRepo,
	efforts EffortService,
	achievements AchievementService,
	leaderboards LeaderboardService,
	match *matcher.Matcher,
	grid *geo.SpatialGrid,
) ProcessorService {
	return &processorService{
		log:          baseLog.With("service", "ProcessorService"),
		db:           db,
		cfg:          cfg,
		activityRepo: activityRepo,
		trackRepo:    trackRepo,
		segmentRepo:  segmentRepo,
		userRepo:     userRepo,
		efforts:      efforts,
		achievements: achievements,
		leaderboards: leaderboards,
		match:        match,
		grid:         grid,
	}
}

func (s *processorService) SeedIndex(ctx context.Context) error {
	segs, err := s.segmentRepo.ListAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed spatial index: %w", err)
	}
	for _, seg := range segs {
		s.grid.Insert(seg.ID, seg.Bounds())
	}
	s.log.Info("Spatial index seeded", "segments", len(segs))
	return nil
}

func (s *processorService) IndexSegment(seg *types.Segment) {
	s.grid.Insert(seg.ID, seg.Bounds())
}

func (s *processorService) UnindexSegment(id uuid.UUID) {
	s.grid.Remove(id)
}

func (s *processorService) ProcessActivity(ctx context.Context, activityID uuid.UUID, pts []geo.Point) error {
	activity, err := s.activityRepo.GetByID(ctx, nil, activityID)
	if err != nil {
		return fmt.Errorf("load activity: %w", err)
	}
	if activity == nil {
		return fmt.Errorf("activity %s not found", activityID)
	}

	owner, err := s.userRepo.GetByID(ctx, nil, activity.UserID)
	if err != nil {
		return fmt.Errorf("load activity owner: %w", err)
	}
	if owner == nil {
		return fmt.Errorf("owner %s of activity %s not found", activity.UserID, activityID)
	}

	results := metrics.Compute(pts,
		metrics.NewDistance(),
		metrics.NewDuration(),
		metrics.NewElevationGain(s.cfg.ElevationNoiseM),
		metrics.NewMovingTime(s.cfg.StopSpeedMps),
		metrics.NewMaxSpeed(),
	)

	track, err := types.NewTrack(activityID, pts)
	if err != nil {
		return fmt.Errorf("encode track: %w", err)
	}

	candidates, err := s.candidateSegments(ctx, track.Bounds())
	if err != nil {
		return err
	}

	var recorded []*types.SegmentEffort
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.trackRepo.Replace(ctx, tx, track); err != nil {
			return fmt.Errorf("store track: %w", err)
		}

		updates := map[string]interface{}{
			"status":           types.ActivityStatusReady,
			"distance_m":       results[metrics.MetricDistance],
			"duration_s":       results[metrics.MetricDuration],
			"elevation_gain_m": results[metrics.MetricElevationGain],
			"moving_time_s":    results[metrics.MetricMovingTime],
			"max_speed_mps":    results[metrics.MetricMaxSpeed],
		}
		if mt := results[metrics.MetricMovingTime]; mt > 0 {
			updates["avg_speed_mps"] = results[metrics.MetricDistance] / mt
		}
		if len(pts) > 0 && pts[0].Time != nil {
			updates["started_at"] = pts[0].Time.UTC()
		}
		if err := s.activityRepo.UpdateFields(ctx, tx, activityID, updates); err != nil {
			return fmt.Errorf("update activity: %w", err)
		}

		for _, seg := range candidates {
			if !s.segmentVisibleTo(seg, activity.UserID) {
				continue
			}
			m, ok := s.match.MatchTrack(pts, seg)
			if !ok {
				continue
			}
			effort, inserted, err := s.recordMatch(ctx, tx, seg, activity, owner, m)
			if err != nil {
				return err
			}
			if inserted {
				recorded = append(recorded, effort)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, effort := range recorded {
		s.leaderboards.InvalidateForEffort(ctx, effort.SegmentID, effort.StartedAt)
	}
	s.log.Info("Activity processed",
		"activity_id", activityID, "candidates", len(candidates), "efforts", len(recorded))
	return nil
}

// ProcessSegment runs the same matching routine in the inverse direction: a
// freshly created segment against every stored track near it.
func (s *processorService) ProcessSegment(ctx context.Context, segmentID uuid.UUID) error {
	seg, err := s.segmentRepo.GetByID(ctx, nil, segmentID)
	if err != nil {
		return fmt.Errorf("load segment: %w", err)
	}
	if seg == nil {
		return fmt.Errorf("segment %s not found", segmentID)
	}

	var tracks []*types.Track
	err = s.withSpatialRetry(ctx, func(qctx context.Context) error {
		var qerr error
		tracks, qerr = s.trackRepo.ListByBounds(qctx, nil, seg.Bounds().Expand(s.cfg.MatchToleranceM))
		return qerr
	})
	if err != nil {
		return fmt.Errorf("candidate tracks for segment %s: %w", segmentID, err)
	}

	var recorded int
	for _, track := range tracks {
		pts, err := track.DecodePoints()
		if err != nil {
			s.log.Warn("Skipping undecodable track", "track_id", track.ID, "error", err)
			continue
		}
		m, ok := s.match.MatchTrack(pts, seg)
		if !ok {
			continue
		}

		activity, err := s.activityRepo.GetByID(ctx, nil, track.ActivityID)
		if err != nil || activity == nil {
			s.log.Warn("Skipping track with missing activity", "track_id", track.ID, "error", err)
			continue
		}
		if !s.segmentVisibleTo(seg, activity.UserID) {
			continue
		}
		owner, err := s.userRepo.GetByID(ctx, nil, activity.UserID)
		if err != nil || owner == nil {
			s.log.Warn("Skipping activity with missing owner", "activity_id", activity.ID, "error", err)
			continue
		}

		var effort *types.SegmentEffort
		var inserted bool
		err = s.db.Transaction(func(tx *gorm.DB) error {
			var terr error
			effort, inserted, terr = s.recordMatch(ctx, tx, seg, activity, owner, m)
			return terr
		})
		if err != nil {
			return fmt.Errorf("record retroactive effort: %w", err)
		}
		if inserted {
			recorded++
			s.leaderboards.InvalidateForEffort(ctx, effort.SegmentID, effort.StartedAt)
		}
	}
	s.log.Info("Segment matched retroactively",
		"segment_id", segmentID, "tracks", len(tracks), "efforts", recorded)
	return nil
}

func (s *processorService) MarkFailed(ctx context.Context, activityID uuid.UUID) {
	if err := s.activityRepo.SetStatus(ctx, nil, activityID, types.ActivityStatusFailed); err != nil {
		s.log.Error("Failed to mark activity as failed", "activity_id", activityID, "error", err)
	}
}

func (s *processorService) recordMatch(ctx context.Context, tx *gorm.DB, seg *types.Segment, activity *types.Activity, owner *types.User, m *matcher.Match) (*types.SegmentEffort, bool, error) {
	effort := &types.SegmentEffort{
		SegmentID:     seg.ID,
		ActivityID:    activity.ID,
		UserID:        activity.UserID,
		StartedAt:     m.StartedAt.UTC(),
		ElapsedS:      m.ElapsedS,
		MovingTimeS:   m.MovingTimeS,
		AvgSpeedMps:   m.AvgSpeedMps,
		MaxSpeedMps:   m.MaxSpeedMps,
		StartFraction: m.StartFraction,
		EndFraction:   m.EndFraction,
	}
	effort, inserted, err := s.efforts.RecordEffort(ctx, tx, effort)
	if err != nil {
		return nil, false, fmt.Errorf("record effort on segment %s: %w", seg.ID, err)
	}
	if !inserted {
		return nil, false, nil
	}
	if err := s.achievements.ProcessEffort(ctx, tx, effort, owner); err != nil {
		return nil, false, fmt.Errorf("process achievements on segment %s: %w", seg.ID, err)
	}
	return effort, true, nil
}

// candidateSegments consults the in-memory spatial index and hydrates the
// hits from storage under the spatial-query timeout, with one retry.
func (s *processorService) candidateSegments(ctx context.Context, bb geo.BoundingBox) ([]*types.Segment, error) {
	ids := s.grid.Query(bb.Expand(s.cfg.MatchToleranceM))
	if len(ids) == 0 {
		return nil, nil
	}
	var segs []*types.Segment
	err := s.withSpatialRetry(ctx, func(qctx context.Context) error {
		var qerr error
		segs, qerr = s.segmentRepo.GetByIDs(qctx, nil, ids)
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("hydrate candidate segments: %w", err)
	}
	return segs, nil
}

func (s *processorService) withSpatialRetry(ctx context.Context, fn func(context.Context) error) error {
	run := func() error {
		qctx, cancel := context.WithTimeout(ctx, s.cfg.SpatialQueryTimeout)
		defer cancel()
		return fn(qctx)
	}
	err := run()
	if err == nil {
		return nil
	}
	s.log.Warn("Spatial query failed, retrying once", "error", err)
	time.Sleep(s.cfg.RetryBackoff)
	return run()
}

func (s *processorService) segmentVisibleTo(seg *types.Segment, userID uuid.UUID) bool {
	return seg.Visibility != types.SegmentVisibilityPrivate || seg.CreatorID == userID
}
