package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openridge/trailforge-backend/internal/data/repos"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

// AchievementService maintains the single current crown holder per
// (segment, crown type) and emits earn/dethrone events. Crown transitions run
// inside the caller's transaction, alongside the effort insert they follow.
type AchievementService interface {
	ProcessEffort(ctx context.Context, tx *gorm.DB, effort *types.SegmentEffort, owner *types.User) error
}

type achievementService struct {
	log             *logger.Logger
	achievementRepo repos.AchievementRepo
	effortRepo      repos.EffortRepo
	notifier        AchievementNotifier
	now             func() time.Time
}

func NewAchievementService(baseLog *logger.Logger, achievementRepo repos.AchievementRepo, effortRepo repos.EffortRepo, notifier AchievementNotifier) AchievementService {
	return &achievementService{
		log:             baseLog.With("service", "AchievementService"),
		achievementRepo: achievementRepo,
		effortRepo:      effortRepo,
		notifier:        notifier,
		now:             time.Now,
	}
}

func (s *achievementService) ProcessEffort(ctx context.Context, tx *gorm.DB, effort *types.SegmentEffort, owner *types.User) error {
	if effort == nil || owner == nil {
		return fmt.Errorf("effort and owner required")
	}

	for _, crown := range types.EligibleCrowns(owner.Gender) {
		// Serialize the holder read with the transition write, or two
		// concurrent efforts could both insert an open row.
		if err := s.achievementRepo.LockSegmentCrown(ctx, tx, effort.SegmentID, crown); err != nil {
			return fmt.Errorf("lock %s crown: %w", crown, err)
		}
		holder, err := s.achievementRepo.CurrentHolder(ctx, tx, effort.SegmentID, crown)
		if err != nil {
			return fmt.Errorf("load %s holder: %w", crown, err)
		}
		if holder != nil {
			held, err := s.effortRepo.GetByID(ctx, tx, holder.EffortID)
			if err != nil {
				return fmt.Errorf("load holder effort: %w", err)
			}
			if held != nil && effort.ElapsedS >= held.ElapsedS {
				continue
			}
		}

		now := s.now().UTC()
		if _, err := s.achievementRepo.Create(ctx, tx, &types.Achievement{
			UserID:    effort.UserID,
			SegmentID: effort.SegmentID,
			EffortID:  effort.ID,
			CrownType: crown,
			EarnedAt:  now,
		}); err != nil {
			return fmt.Errorf("create %s achievement: %w", crown, err)
		}
		if holder != nil {
			if err := s.achievementRepo.MarkLost(ctx, tx, holder.ID, now); err != nil {
				return fmt.Errorf("dethrone %s holder: %w", crown, err)
			}
		}

		s.emit(ctx, AchievementEvent{
			Type:      AchievementEventEarned,
			UserID:    effort.UserID,
			SegmentID: effort.SegmentID,
			CrownType: crown,
			EffortID:  effort.ID,
			At:        now,
		})
		if holder != nil {
			s.emit(ctx, AchievementEvent{
				Type:      AchievementEventDethroned,
				UserID:    holder.UserID,
				SegmentID: effort.SegmentID,
				CrownType: crown,
				EffortID:  holder.EffortID,
				At:        now,
			})
		}
	}
	return nil
}

// emit never fails the crown transition: delivery is the notification
// collaborator's concern, not part of the ledger transaction.
func (s *achievementService) emit(ctx context.Context, ev AchievementEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish achievement event",
			"type", ev.Type, "segment_id", ev.SegmentID, "crown", ev.CrownType, "error", err)
	}
}
