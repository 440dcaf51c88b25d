package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openridge/trailforge-backend/internal/data/repos"
	"github.com/openridge/trailforge-backend/internal/geo"
	apperrors "github.com/openridge/trailforge-backend/internal/pkg/errors"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

// Enqueuer hands an activity's compute-heavy work to the background queue.
// Submit reports false when the activity is already in flight.
type Enqueuer interface {
	Submit(activityID uuid.UUID, pts []geo.Point) bool
}

type CreateActivityInput struct {
	UserID uuid.UUID
	Name   string
	Sport  string
	Points []geo.Point
}

// ActivityService is the ingestion front door: validate, persist the shell
// row, enqueue, return. The request path never runs the pipeline.
type ActivityService interface {
	CreateAndEnqueue(ctx context.Context, in CreateActivityInput) (*types.Activity, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Activity, error)
	ListEfforts(ctx context.Context, activityID uuid.UUID) ([]*types.SegmentEffort, error)
}

type activityService struct {
	log          *logger.Logger
	activityRepo repos.ActivityRepo
	effortRepo   repos.EffortRepo
	userRepo     repos.UserRepo
	queue        Enqueuer
}

func NewActivityService(baseLog *logger.Logger, activityRepo repos.ActivityRepo, effortRepo repos.EffortRepo, userRepo repos.UserRepo, queue Enqueuer) ActivityService {
	return &activityService{
		log:          baseLog.With("service", "ActivityService"),
		activityRepo: activityRepo,
		effortRepo:   effortRepo,
		userRepo:     userRepo,
		queue:        queue,
	}
}

func (s *activityService) CreateAndEnqueue(ctx context.Context, in CreateActivityInput) (*types.Activity, error) {
	if in.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: user id required", apperrors.ErrInvalidArgument)
	}
	if err := validatePoints(in.Points); err != nil {
		return nil, err
	}
	owner, err := s.userRepo.GetByID(ctx, nil, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if owner == nil {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, in.UserID)
	}

	name := in.Name
	if name == "" {
		name = "Untitled activity"
	}
	sport := in.Sport
	if sport == "" {
		sport = "ride"
	}
	activity := &types.Activity{
		UserID: in.UserID,
		Name:   name,
		Sport:  sport,
		Status: types.ActivityStatusUploaded,
	}
	if _, err := s.activityRepo.Create(ctx, nil, []*types.Activity{activity}); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}

	// Mark processing before handing off: a fast worker may commit "ready"
	// at any point after Submit, and a late status write would clobber it.
	activity.Status = types.ActivityStatusProcessing
	if err := s.activityRepo.SetStatus(ctx, nil, activity.ID, types.ActivityStatusProcessing); err != nil {
		return nil, fmt.Errorf("mark activity processing: %w", err)
	}
	if !s.queue.Submit(activity.ID, in.Points) {
		// Only a shut-down queue rejects a freshly created id.
		activity.Status = types.ActivityStatusFailed
		if err := s.activityRepo.SetStatus(ctx, nil, activity.ID, types.ActivityStatusFailed); err != nil {
			s.log.Warn("Failed to mark activity failed", "activity_id", activity.ID, "error", err)
		}
		return nil, fmt.Errorf("%w: queue not accepting work", apperrors.ErrProcessingFailed)
	}
	return activity, nil
}

func (s *activityService) Get(ctx context.Context, id uuid.UUID) (*types.Activity, error) {
	activity, err := s.activityRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, fmt.Errorf("%w: activity %s", apperrors.ErrNotFound, id)
	}
	return activity, nil
}

func (s *activityService) ListEfforts(ctx context.Context, activityID uuid.UUID) ([]*types.SegmentEffort, error) {
	return s.effortRepo.ListByActivity(ctx, nil, activityID)
}

// validatePoints rejects degenerate geometry before anything is enqueued.
func validatePoints(pts []geo.Point) error {
	if len(pts) < 2 {
		return fmt.Errorf("%w: at least two points required", apperrors.ErrDegenerateTrack)
	}
	if geo.PathLength(pts) <= 0 {
		return fmt.Errorf("%w: zero-length track", apperrors.ErrDegenerateTrack)
	}
	return nil
}
