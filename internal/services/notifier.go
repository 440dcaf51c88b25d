package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/openridge/trailforge-backend/internal/pkg/logger"
)

const (
	AchievementEventEarned    = "achievement_earned"
	AchievementEventDethroned = "achievement_lost"
)

// AchievementEvent is handed to the notification collaborator; delivery to
// end users happens outside this core.
type AchievementEvent struct {
	Type      string    `json:"type"`
	UserID    uuid.UUID `json:"user_id"`
	SegmentID uuid.UUID `json:"segment_id"`
	CrownType string    `json:"crown_type"`
	EffortID  uuid.UUID `json:"effort_id"`
	At        time.Time `json:"at"`
}

type AchievementNotifier interface {
	Publish(ctx context.Context, ev AchievementEvent) error
}

type redisNotifier struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisNotifier publishes achievement events on a Redis channel the
// notification collaborator subscribes to.
func NewRedisNotifier(log *logger.Logger) (AchievementNotifier, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_ACHIEVEMENT_CHANNEL"))
	if ch == "" {
		ch = "achievements"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisNotifier{
		log:     log.With("service", "RedisAchievementNotifier"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (n *redisNotifier) Publish(ctx context.Context, ev AchievementEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, n.channel, raw).Err()
}

// LogNotifier writes events to the log; used when Redis is not configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("service", "LogAchievementNotifier")}
}

func (n *LogNotifier) Publish(_ context.Context, ev AchievementEvent) error {
	n.log.Info("Achievement event",
		"type", ev.Type,
		"user_id", ev.UserID,
		"segment_id", ev.SegmentID,
		"crown_type", ev.CrownType,
	)
	return nil
}

// RecordingNotifier collects events in memory; used by tests.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []AchievementEvent
}

func NewRecordingNotifier() *RecordingNotifier { return &RecordingNotifier{} }

func (n *RecordingNotifier) Publish(_ context.Context, ev AchievementEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *RecordingNotifier) Events() []AchievementEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]AchievementEvent, len(n.events))
	copy(out, n.events)
	return out
}
