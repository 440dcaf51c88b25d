package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/openridge/trailforge-backend/internal/data/repos"
	apperrors "github.com/openridge/trailforge-backend/internal/pkg/errors"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/types"
)

// UserSyncInput mirrors the profile payload pushed by the upstream profile
// collaborator. Nil demographic fields mean "unchanged" on update.
type UserSyncInput struct {
	ID          uuid.UUID
	Email       string
	DisplayName string
	Gender      *string
	BirthYear   *int
	WeightKg    *float64
}

// UserService ingests profile pushes. Demographic changes (gender, birth
// year) move the user between leaderboard filter buckets, so they drop every
// cached board the user appears on.
type UserService interface {
	Sync(ctx context.Context, in UserSyncInput) (*types.User, error)
	Get(ctx context.Context, id uuid.UUID) (*types.User, error)
}

type userService struct {
	log          *logger.Logger
	userRepo     repos.UserRepo
	leaderboards LeaderboardService
}

func NewUserService(baseLog *logger.Logger, userRepo repos.UserRepo, leaderboards LeaderboardService) UserService {
	return &userService{
		log:          baseLog.With("service", "UserService"),
		userRepo:     userRepo,
		leaderboards: leaderboards,
	}
}

func (s *userService) Sync(ctx context.Context, in UserSyncInput) (*types.User, error) {
	if in.Email == "" && in.ID == uuid.Nil {
		return nil, fmt.Errorf("%w: profile sync needs an id or email", apperrors.ErrInvalidArgument)
	}
	if in.Gender != nil {
		switch *in.Gender {
		case types.GenderFemale, types.GenderMale, types.GenderUnspecified:
		default:
			return nil, fmt.Errorf("%w: unknown gender %q", apperrors.ErrInvalidArgument, *in.Gender)
		}
	}

	existing, err := s.userRepo.GetByID(ctx, nil, in.ID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if existing == nil {
		return s.create(ctx, in)
	}
	return s.update(ctx, existing, in)
}

func (s *userService) Get(ctx context.Context, id uuid.UUID) (*types.User, error) {
	user, err := s.userRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", apperrors.ErrNotFound, id)
	}
	return user, nil
}

func (s *userService) create(ctx context.Context, in UserSyncInput) (*types.User, error) {
	user := &types.User{
		ID:          in.ID,
		Email:       in.Email,
		DisplayName: in.DisplayName,
		Gender:      types.GenderUnspecified,
		BirthYear:   in.BirthYear,
		WeightKg:    in.WeightKg,
	}
	if in.Gender != nil {
		user.Gender = *in.Gender
	}
	rows, err := s.userRepo.Create(ctx, nil, []*types.User{user})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	s.log.Info("profile created", "user_id", rows[0].ID)
	return rows[0], nil
}

func (s *userService) update(ctx context.Context, existing *types.User, in UserSyncInput) (*types.User, error) {
	updates := map[string]interface{}{}
	if in.Email != "" && in.Email != existing.Email {
		updates["email"] = in.Email
	}
	if in.DisplayName != "" && in.DisplayName != existing.DisplayName {
		updates["display_name"] = in.DisplayName
	}
	if in.WeightKg != nil {
		updates["weight_kg"] = *in.WeightKg
	}

	demographicChange := false
	if in.Gender != nil && *in.Gender != existing.Gender {
		updates["gender"] = *in.Gender
		demographicChange = true
	}
	if in.BirthYear != nil && (existing.BirthYear == nil || *existing.BirthYear != *in.BirthYear) {
		updates["birth_year"] = *in.BirthYear
		demographicChange = true
	}

	if len(updates) > 0 {
		if err := s.userRepo.UpdateFields(ctx, nil, existing.ID, updates); err != nil {
			return nil, fmt.Errorf("updating user: %w", err)
		}
	}
	if demographicChange {
		// The user may now belong to a different gender or age bucket in
		// any period, so every board they appear on is suspect.
		s.leaderboards.InvalidateForUser(ctx, existing.ID)
	}

	user, err := s.userRepo.GetByID(ctx, nil, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading user: %w", err)
	}
	return user, nil
}
