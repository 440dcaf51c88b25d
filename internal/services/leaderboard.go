package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openridge/trailforge-backend/internal/cache"
	"github.com/openridge/trailforge-backend/internal/data/repos"
	apperrors "github.com/openridge/trailforge-backend/internal/pkg/errors"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
)

// LeaderboardQuery scopes a ranked read. Empty Period means the period
// containing now; empty Gender/AgeGroup mean no filter.
type LeaderboardQuery struct {
	SegmentID uuid.UUID
	Scope     string
	Period    string
	Gender    string
	AgeGroup  string
	Limit     int
	Offset    int
}

// LeaderboardPage is a windowed slice of one ranked board.
type LeaderboardPage struct {
	Entries    []cache.Entry `json:"entries"`
	Total      int           `json:"total"`
	ComputedAt time.Time     `json:"computed_at"`
}

// LeaderboardTTLs carries the per-scope cache lifetimes.
type LeaderboardTTLs struct {
	Week    time.Duration
	Month   time.Duration
	Year    time.Duration
	AllTime time.Duration
}

// LeaderboardService serves demographic/time-scoped boards from the cache,
// recomputing synchronously on miss or expiry. Writers only invalidate; the
// next read pays for the recompute.
type LeaderboardService interface {
	Query(ctx context.Context, q LeaderboardQuery) (*LeaderboardPage, error)
	// InvalidateForEffort drops every cached board whose scope period
	// contains the effort's start time, across all filter combinations.
	InvalidateForEffort(ctx context.Context, segmentID uuid.UUID, startedAt time.Time)
	// InvalidateForUser drops every cached board of every segment the user
	// has efforts on; demographic edits can move the user between filters
	// in any period.
	InvalidateForUser(ctx context.Context, userID uuid.UUID)
}

type leaderboardService struct {
	log        *logger.Logger
	effortRepo repos.EffortRepo
	store      cache.Store
	ttls       LeaderboardTTLs
	now        func() time.Time
}

func NewLeaderboardService(baseLog *logger.Logger, effortRepo repos.EffortRepo, store cache.Store, ttls LeaderboardTTLs) LeaderboardService {
	return &leaderboardService{
		log:        baseLog.With("service", "LeaderboardService"),
		effortRepo: effortRepo,
		store:      store,
		ttls:       ttls,
		now:        time.Now,
	}
}

func (s *leaderboardService) Query(ctx context.Context, q LeaderboardQuery) (*LeaderboardPage, error) {
	if q.SegmentID == uuid.Nil {
		return nil, fmt.Errorf("%w: segment id required", apperrors.ErrInvalidArgument)
	}
	scope := q.Scope
	if scope == "" {
		scope = cache.ScopeAllTime
	}
	if !validScope(scope) {
		return nil, fmt.Errorf("%w: unknown scope %q", apperrors.ErrInvalidArgument, scope)
	}
	period := q.Period
	if period == "" {
		period = cache.PeriodKey(scope, s.now().UTC())
	}

	key := cache.Key{
		SegmentID: q.SegmentID,
		Scope:     scope,
		Period:    period,
		Gender:    q.Gender,
		AgeGroup:  q.AgeGroup,
	}

	board, hit, err := s.store.Get(ctx, key)
	if err != nil {
		// A broken cache degrades to recompute-per-read, not an outage.
		s.log.Warn("Leaderboard cache read failed", "key", key.String(), "error", err)
	}
	if !hit {
		board, err = s.recompute(ctx, key)
		if err != nil {
			return nil, err
		}
		if setErr := s.store.Set(ctx, key, board, s.ttl(scope)); setErr != nil {
			s.log.Warn("Leaderboard cache write failed", "key", key.String(), "error", setErr)
		}
	}

	return page(board, q.Limit, q.Offset), nil
}

func (s *leaderboardService) recompute(ctx context.Context, key cache.Key) (*cache.Board, error) {
	since, until, err := cache.ParsePeriodWindow(key.Scope, key.Period)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
	}

	f := repos.EffortFilter{
		SegmentID: key.SegmentID,
		Since:     since,
		Until:     until,
		Gender:    key.Gender,
	}
	if key.AgeGroup != "" {
		minYear, maxYear, err := birthYearBounds(key.AgeGroup, s.now().UTC())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err)
		}
		f.MinBirthYear = minYear
		f.MaxBirthYear = maxYear
	}

	rows, err := s.effortRepo.BestEffortsPerUser(ctx, nil, f)
	if err != nil {
		return nil, fmt.Errorf("compute leaderboard: %w", err)
	}

	entries := make([]cache.Entry, len(rows))
	for i, row := range rows {
		entries[i] = cache.Entry{
			Rank:       i + 1,
			UserID:     row.UserID,
			ActivityID: row.ActivityID,
			EffortID:   row.EffortID,
			ElapsedS:   row.ElapsedS,
			AchievedAt: row.StartedAt,
		}
	}
	return &cache.Board{Entries: entries, ComputedAt: s.now().UTC()}, nil
}

func (s *leaderboardService) InvalidateForEffort(ctx context.Context, segmentID uuid.UUID, startedAt time.Time) {
	for _, scope := range cache.Scopes {
		prefix := cache.SegmentScopePrefix(segmentID, scope, cache.PeriodKey(scope, startedAt.UTC()))
		if err := s.store.DeleteByPrefix(ctx, prefix); err != nil {
			s.log.Warn("Leaderboard invalidation failed", "prefix", prefix, "error", err)
		}
	}
}

func (s *leaderboardService) InvalidateForUser(ctx context.Context, userID uuid.UUID) {
	segIDs, err := s.effortRepo.ListSegmentIDsByUser(ctx, nil, userID)
	if err != nil {
		s.log.Warn("Failed to list segments for user invalidation", "user_id", userID, "error", err)
		return
	}
	for _, segID := range segIDs {
		if err := s.store.DeleteByPrefix(ctx, cache.SegmentPrefix(segID)); err != nil {
			s.log.Warn("Leaderboard invalidation failed", "segment_id", segID, "error", err)
		}
	}
}

func (s *leaderboardService) ttl(scope string) time.Duration {
	switch scope {
	case cache.ScopeWeek:
		return s.ttls.Week
	case cache.ScopeMonth:
		return s.ttls.Month
	case cache.ScopeYear:
		return s.ttls.Year
	default:
		return s.ttls.AllTime
	}
}

func validScope(scope string) bool {
	for _, s := range cache.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func page(board *cache.Board, limit, offset int) *LeaderboardPage {
	total := len(board.Entries)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	out := make([]cache.Entry, end-offset)
	copy(out, board.Entries[offset:end])
	return &LeaderboardPage{Entries: out, Total: total, ComputedAt: board.ComputedAt}
}

// birthYearBounds converts an age-group label ("25-34", "65+") to inclusive
// birth-year bounds relative to now.
func birthYearBounds(group string, now time.Time) (*int, *int, error) {
	year := now.Year()
	if strings.HasSuffix(group, "+") {
		lo, err := strconv.Atoi(strings.TrimSuffix(group, "+"))
		if err != nil {
			return nil, nil, fmt.Errorf("bad age group %q", group)
		}
		maxYear := year - lo
		return nil, &maxYear, nil
	}
	parts := strings.SplitN(group, "-", 2)
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("bad age group %q", group)
	}
	lo, err1 := strconv.Atoi(parts[0])
	hi, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || lo > hi {
		return nil, nil, fmt.Errorf("bad age group %q", group)
	}
	minYear := year - hi
	maxYear := year - lo
	return &minYear, &maxYear, nil
}
