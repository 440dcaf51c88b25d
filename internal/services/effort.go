package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/data/repos"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

// EffortService owns the effort ledger: inserting traversal records and
// keeping the single-PR-per-(user,segment) invariant. All mutation happens
// inside the transaction the caller passes, so PR flag movement commits
// atomically with the insert.
type EffortService interface {
	// RecordEffort persists an effort and maintains the PR flag. Returns
	// (nil, false, nil) when an effort for the same (segment, activity)
	// already exists: reprocessing must not duplicate rows.
	RecordEffort(ctx context.Context, tx *gorm.DB, effort *types.SegmentEffort) (*types.SegmentEffort, bool, error)
}

type effortService struct {
	log        *logger.Logger
	effortRepo repos.EffortRepo
}

func NewEffortService(baseLog *logger.Logger, effortRepo repos.EffortRepo) EffortService {
	return &effortService{
		log:        baseLog.With("service", "EffortService"),
		effortRepo: effortRepo,
	}
}

func (s *effortService) RecordEffort(ctx context.Context, tx *gorm.DB, effort *types.SegmentEffort) (*types.SegmentEffort, bool, error) {
	if effort == nil {
		return nil, false, fmt.Errorf("nil effort")
	}
	if effort.StartFraction >= effort.EndFraction {
		return nil, false, fmt.Errorf("effort start fraction %.4f not before end fraction %.4f", effort.StartFraction, effort.EndFraction)
	}

	// Two activities of the same user on one segment can process on
	// different workers at once; without this both would read "no prior
	// best" and both claim the PR.
	if err := s.effortRepo.LockUserSegment(ctx, tx, effort.UserID, effort.SegmentID); err != nil {
		return nil, false, fmt.Errorf("lock user/segment: %w", err)
	}

	exists, err := s.effortRepo.ExistsForSegmentActivity(ctx, tx, effort.SegmentID, effort.ActivityID)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency check: %w", err)
	}
	if exists {
		s.log.Debug("Effort already recorded for segment/activity, skipping",
			"segment_id", effort.SegmentID, "activity_id", effort.ActivityID)
		return nil, false, nil
	}

	prior, err := s.effortRepo.BestForUserSegment(ctx, tx, effort.UserID, effort.SegmentID)
	if err != nil {
		return nil, false, fmt.Errorf("load prior best: %w", err)
	}

	effort.IsPersonalRecord = prior == nil || effort.ElapsedS < prior.ElapsedS
	if _, err := s.effortRepo.Create(ctx, tx, effort); err != nil {
		return nil, false, fmt.Errorf("insert effort: %w", err)
	}

	if effort.IsPersonalRecord && prior != nil {
		// The prior best is the previous PR holder; clear its flag in the
		// same transaction so at most one PR row is ever visible.
		holder, err := s.effortRepo.CurrentPR(ctx, tx, effort.UserID, effort.SegmentID)
		if err != nil {
			return nil, false, fmt.Errorf("load prior PR: %w", err)
		}
		if holder != nil && holder.ID != effort.ID {
			if err := s.effortRepo.SetPersonalRecord(ctx, tx, holder.ID, false); err != nil {
				return nil, false, fmt.Errorf("clear prior PR: %w", err)
			}
		}
	}
	return effort, true, nil
}
