package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ScopeAllTime = "all_time"
	ScopeYear    = "year"
	ScopeMonth   = "month"
	ScopeWeek    = "week"
)

// Scopes lists every supported time scope.
var Scopes = []string{ScopeAllTime, ScopeYear, ScopeMonth, ScopeWeek}

// Entry is one ranked leaderboard line. Entries stay typed in memory and are
// serialized only at the store boundary.
type Entry struct {
	Rank       int       `json:"rank"`
	UserID     uuid.UUID `json:"user_id"`
	ActivityID uuid.UUID `json:"activity_id"`
	EffortID   uuid.UUID `json:"effort_id"`
	ElapsedS   float64   `json:"elapsed_s"`
	AchievedAt time.Time `json:"achieved_at"`
}

// Board is a materialized leaderboard for one cache key.
type Board struct {
	Entries    []Entry   `json:"entries"`
	ComputedAt time.Time `json:"computed_at"`
}

// Key identifies a materialized leaderboard: segment, time scope, scope
// period value, and the demographic filters.
type Key struct {
	SegmentID uuid.UUID
	Scope     string
	Period    string
	Gender    string
	AgeGroup  string
}

func (k Key) String() string {
	gender := k.Gender
	if gender == "" {
		gender = "all"
	}
	age := k.AgeGroup
	if age == "" {
		age = "all"
	}
	period := k.Period
	if period == "" {
		period = "-"
	}
	return fmt.Sprintf("leaderboard:%s:%s:%s:%s:%s", k.SegmentID, k.Scope, period, gender, age)
}

// SegmentScopePrefix addresses every filter combination of one
// (segment, scope, period), for write invalidation.
func SegmentScopePrefix(segmentID uuid.UUID, scope, period string) string {
	if period == "" {
		period = "-"
	}
	return fmt.Sprintf("leaderboard:%s:%s:%s:", segmentID, scope, period)
}

// PeriodKey formats the scope period containing t: year "2026", month
// "2026-08", ISO week "2026-W35", empty for all-time.
func PeriodKey(scope string, t time.Time) string {
	switch scope {
	case ScopeYear:
		return fmt.Sprintf("%04d", t.Year())
	case ScopeMonth:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	case ScopeWeek:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", y, w)
	default:
		return ""
	}
}

// PeriodWindow returns the half-open [since, until) window of a scope period
// containing t. Both bounds are nil for all-time.
func PeriodWindow(scope string, t time.Time) (*time.Time, *time.Time) {
	switch scope {
	case ScopeYear:
		since := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		until := since.AddDate(1, 0, 0)
		return &since, &until
	case ScopeMonth:
		since := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		until := since.AddDate(0, 1, 0)
		return &since, &until
	case ScopeWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// Back up to Monday.
		wd := (int(day.Weekday()) + 6) % 7
		since := day.AddDate(0, 0, -wd)
		until := since.AddDate(0, 0, 7)
		return &since, &until
	default:
		return nil, nil
	}
}

// SegmentPrefix addresses every cached board of one segment, across scopes
// and filters.
func SegmentPrefix(segmentID uuid.UUID) string {
	return fmt.Sprintf("leaderboard:%s:", segmentID)
}

// ParsePeriodWindow resolves a period value (as produced by PeriodKey) to its
// half-open [since, until) window. All-time returns nil bounds.
func ParsePeriodWindow(scope, period string) (*time.Time, *time.Time, error) {
	switch scope {
	case ScopeAllTime:
		return nil, nil, nil
	case ScopeYear:
		t, err := time.ParseInLocation("2006", period, time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("bad year period %q: %w", period, err)
		}
		until := t.AddDate(1, 0, 0)
		return &t, &until, nil
	case ScopeMonth:
		t, err := time.ParseInLocation("2006-01", period, time.UTC)
		if err != nil {
			return nil, nil, fmt.Errorf("bad month period %q: %w", period, err)
		}
		until := t.AddDate(0, 1, 0)
		return &t, &until, nil
	case ScopeWeek:
		var y, w int
		if _, err := fmt.Sscanf(period, "%04d-W%02d", &y, &w); err != nil || w < 1 || w > 53 {
			return nil, nil, fmt.Errorf("bad week period %q", period)
		}
		// Jan 4 is always inside ISO week 1.
		jan4 := time.Date(y, 1, 4, 0, 0, 0, 0, time.UTC)
		wd := (int(jan4.Weekday()) + 6) % 7
		week1 := jan4.AddDate(0, 0, -wd)
		since := week1.AddDate(0, 0, (w-1)*7)
		until := since.AddDate(0, 0, 7)
		return &since, &until, nil
	default:
		return nil, nil, fmt.Errorf("unknown scope %q", scope)
	}
}

// Store is the leaderboard cache. Get must not return expired boards;
// concurrent Sets for the same key are last-writer-wins.
type Store interface {
	Get(ctx context.Context, key Key) (*Board, bool, error)
	Set(ctx context.Context, key Key, board *Board, ttl time.Duration) error
	// DeleteByPrefix drops every key under prefix; used by write-path
	// invalidation across all filter combinations.
	DeleteByPrefix(ctx context.Context, prefix string) error
}
