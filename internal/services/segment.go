package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/openridge/trailforge-backend/internal/data/repos"
	"github.com/openridge/trailforge-backend/internal/geo"
	apperrors "github.com/openridge/trailforge-backend/internal/pkg/errors"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

type CreateSegmentInput struct {
	CreatorID  uuid.UUID
	ActivityID uuid.UUID
	Name       string
	Visibility string
	// Point index range [StartIndex, EndIndex] on the source track.
	StartIndex int
	EndIndex   int
}

// SegmentService creates segments from slices of existing tracks and kicks
// off retroactive matching against stored activities.
type SegmentService interface {
	CreateFromTrack(ctx context.Context, in CreateSegmentInput) (*types.Segment, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Segment, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*types.Segment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type segmentService struct {
	log         *logger.Logger
	segmentRepo repos.SegmentRepo
	trackRepo   repos.TrackRepo
	processor   ProcessorService
	scoring     ClimbScoring
	noiseM      float64
}

func NewSegmentService(baseLog *logger.Logger, segmentRepo repos.SegmentRepo, trackRepo repos.TrackRepo, processor ProcessorService, scoring ClimbScoring, elevationNoiseM float64) SegmentService {
	return &segmentService{
		log:         baseLog.With("service", "SegmentService"),
		segmentRepo: segmentRepo,
		trackRepo:   trackRepo,
		processor:   processor,
		scoring:     scoring,
		noiseM:      elevationNoiseM,
	}
}

func (s *segmentService) CreateFromTrack(ctx context.Context, in CreateSegmentInput) (*types.Segment, error) {
	if in.CreatorID == uuid.Nil || in.ActivityID == uuid.Nil {
		return nil, fmt.Errorf("%w: creator and activity ids required", apperrors.ErrInvalidArgument)
	}
	if in.Name == "" {
		return nil, fmt.Errorf("%w: segment name required", apperrors.ErrInvalidArgument)
	}

	track, err := s.trackRepo.GetByActivityID(ctx, nil, in.ActivityID)
	if err != nil {
		return nil, fmt.Errorf("load track: %w", err)
	}
	if track == nil {
		return nil, fmt.Errorf("%w: no track for activity %s", apperrors.ErrNotFound, in.ActivityID)
	}
	pts, err := track.DecodePoints()
	if err != nil {
		return nil, fmt.Errorf("decode track: %w", err)
	}
	if in.StartIndex < 0 || in.EndIndex >= len(pts) || in.EndIndex-in.StartIndex < 1 {
		return nil, fmt.Errorf("%w: point range [%d,%d] out of bounds for %d points",
			apperrors.ErrInvalidArgument, in.StartIndex, in.EndIndex, len(pts))
	}

	slice := pts[in.StartIndex : in.EndIndex+1]
	if err := validatePoints(slice); err != nil {
		return nil, err
	}

	seg, err := s.buildSegment(in, slice)
	if err != nil {
		return nil, err
	}
	if _, err := s.segmentRepo.Create(ctx, nil, []*types.Segment{seg}); err != nil {
		return nil, fmt.Errorf("create segment: %w", err)
	}
	s.processor.IndexSegment(seg)

	// Retroactive matching runs off the request path; a failure leaves the
	// segment live with an empty leaderboard, safe to re-run.
	go func() {
		if err := s.processor.ProcessSegment(context.Background(), seg.ID); err != nil {
			s.log.Error("Retroactive segment matching failed", "segment_id", seg.ID, "error", err)
		}
	}()

	return seg, nil
}

func (s *segmentService) buildSegment(in CreateSegmentInput, slice []geo.Point) (*types.Segment, error) {
	raw, err := json.Marshal(slice)
	if err != nil {
		return nil, fmt.Errorf("encode geometry: %w", err)
	}

	distance := geo.PathLength(slice)
	gain, loss := elevationProfile(slice, s.noiseM)
	avgGrade, maxGrade := grades(slice, distance)

	bb := geo.Bounds(slice)
	visibility := in.Visibility
	if visibility == "" {
		visibility = types.SegmentVisibilityPublic
	}

	first, last := slice[0], slice[len(slice)-1]
	return &types.Segment{
		CreatorID:  in.CreatorID,
		Name:       in.Name,
		Visibility: visibility,
		Points:     datatypes.JSON(raw),

		StartLon: first.Lon, StartLat: first.Lat,
		EndLon: last.Lon, EndLat: last.Lat,
		MinLon: bb.MinLon, MinLat: bb.MinLat,
		MaxLon: bb.MaxLon, MaxLat: bb.MaxLat,

		DistanceM:      distance,
		ElevationGainM: gain,
		ElevationLossM: loss,
		AvgGrade:       avgGrade,
		MaxGrade:       maxGrade,
		ClimbCategory:  s.scoring.Category(distance, avgGrade),
	}, nil
}

func (s *segmentService) Get(ctx context.Context, id uuid.UUID) (*types.Segment, error) {
	seg, err := s.segmentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if seg == nil {
		return nil, fmt.Errorf("%w: segment %s", apperrors.ErrNotFound, id)
	}
	return seg, nil
}

func (s *segmentService) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*types.Segment, error) {
	return s.segmentRepo.ListByCreator(ctx, nil, creatorID)
}

func (s *segmentService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.segmentRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{id}); err != nil {
		return fmt.Errorf("delete segment: %w", err)
	}
	s.processor.UnindexSegment(id)
	return nil
}

func elevationProfile(pts []geo.Point, noiseM float64) (gain, loss float64) {
	var prev *float64
	for _, p := range pts {
		if p.Elevation == nil {
			continue
		}
		if prev != nil {
			delta := *p.Elevation - *prev
			switch {
			case delta > noiseM:
				gain += delta
				prev = p.Elevation
			case delta < -noiseM:
				loss += -delta
				prev = p.Elevation
			}
			continue
		}
		prev = p.Elevation
	}
	return gain, loss
}

// grades returns average grade (net elevation over distance, percent) and
// the steepest inter-point grade.
func grades(pts []geo.Point, distance float64) (avg, max float64) {
	if distance <= 0 {
		return 0, 0
	}
	var first, last *float64
	for i := range pts {
		if pts[i].Elevation != nil {
			if first == nil {
				first = pts[i].Elevation
			}
			last = pts[i].Elevation
		}
	}
	if first == nil || last == nil {
		return 0, 0
	}
	avg = (*last - *first) / distance * 100

	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		if a.Elevation == nil || b.Elevation == nil {
			continue
		}
		d := geo.Haversine(a, b)
		if d <= 0 {
			continue
		}
		if g := (*b.Elevation - *a.Elevation) / d * 100; g > max {
			max = g
		}
	}
	return avg, max
}
