package app

import (
	"runtime"
	"time"

	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/utils"
)

type Config struct {
	// Matching
	MatchToleranceM float64
	OverlapFraction float64
	GridCellDeg     float64
	ElevationNoiseM float64
	StopSpeedMps    float64

	// Queue
	WorkerCount         int
	RetryBackoff        time.Duration
	SpatialQueryTimeout time.Duration

	// Leaderboard cache TTLs
	TTLWeek    time.Duration
	TTLMonth   time.Duration
	TTLYear    time.Duration
	TTLAllTime time.Duration

	// Climb-category scoring table (YAML); empty uses defaults.
	ClimbScoringPath string

	HTTPPort string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		MatchToleranceM: utils.GetEnvAsFloat("MATCH_TOLERANCE_M", 50, log),
		OverlapFraction: utils.GetEnvAsFloat("MATCH_OVERLAP_FRACTION", 0.8, log),
		GridCellDeg:     utils.GetEnvAsFloat("SPATIAL_GRID_CELL_DEG", 0.01, log),
		ElevationNoiseM: utils.GetEnvAsFloat("ELEVATION_NOISE_M", 2.0, log),
		StopSpeedMps:    utils.GetEnvAsFloat("STOP_SPEED_MPS", 0.7, log),

		WorkerCount:         utils.GetEnvAsInt("PROCESSING_WORKERS", runtime.GOMAXPROCS(0), log),
		RetryBackoff:        utils.GetEnvAsDuration("PROCESSING_RETRY_BACKOFF", 2*time.Second, log),
		SpatialQueryTimeout: utils.GetEnvAsDuration("SPATIAL_QUERY_TIMEOUT", 5*time.Second, log),

		TTLWeek:    utils.GetEnvAsDuration("LEADERBOARD_TTL_WEEK", 5*time.Minute, log),
		TTLMonth:   utils.GetEnvAsDuration("LEADERBOARD_TTL_MONTH", 15*time.Minute, log),
		TTLYear:    utils.GetEnvAsDuration("LEADERBOARD_TTL_YEAR", time.Hour, log),
		TTLAllTime: utils.GetEnvAsDuration("LEADERBOARD_TTL_ALL_TIME", time.Hour, log),

		ClimbScoringPath: utils.GetEnv("CLIMB_SCORING_PATH", "", log),

		HTTPPort: utils.GetEnv("HTTP_PORT", "8080", log),
	}
}
