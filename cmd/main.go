package main

import (
	"context"
	"fmt"
	"os"

	"github.com/openridge/trailforge-backend/internal/app"
	"github.com/openridge/trailforge-backend/internal/cache"
	"github.com/openridge/trailforge-backend/internal/data/db"
	"github.com/openridge/trailforge-backend/internal/data/repos"
	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/handlers"
	"github.com/openridge/trailforge-backend/internal/jobs"
	"github.com/openridge/trailforge-backend/internal/matcher"
	"github.com/openridge/trailforge-backend/internal/pkg/logger"
	"github.com/openridge/trailforge-backend/internal/server"
	"github.com/openridge/trailforge-backend/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	cfg := app.LoadConfig(log)

	// Database
	dbService, err := db.New(log)
	if err != nil {
		log.Error("Database init failed", "error", err)
		os.Exit(1)
	}
	if err = dbService.AutoMigrateAll(); err != nil {
		log.Error("Auto migration failed", "error", err)
		os.Exit(1)
	}
	theDB := dbService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(theDB, log)
	activityRepo := repos.NewActivityRepo(theDB, log)
	trackRepo := repos.NewTrackRepo(theDB, log)
	segmentRepo := repos.NewSegmentRepo(theDB, log)
	effortRepo := repos.NewEffortRepo(theDB, log)
	achievementRepo := repos.NewAchievementRepo(theDB, log)

	// Leaderboard cache
	var store cache.Store
	store, err = cache.NewRedisStore(log)
	if err != nil {
		log.Warn("Redis cache init failed, boards recompute on every read", "error", err)
		store = cache.NewMemoryStore()
	}

	// Achievement events
	var notifier services.AchievementNotifier
	notifier, err = services.NewRedisNotifier(log)
	if err != nil {
		log.Warn("Redis notifier init failed, logging achievement events instead", "error", err)
		notifier = services.NewLogNotifier(log)
	}

	// Climb-category scoring
	scoring, err := services.LoadClimbScoring(cfg.ClimbScoringPath)
	if err != nil {
		log.Error("Could not load climb scoring table", "error", err)
		os.Exit(1)
	}

	// Services
	log.Info("Setting up Services from main...")
	effortService := services.NewEffortService(log, effortRepo)
	achievementService := services.NewAchievementService(log, achievementRepo, effortRepo, notifier)
	leaderboardService := services.NewLeaderboardService(log, effortRepo, store, services.LeaderboardTTLs{
		Week:    cfg.TTLWeek,
		Month:   cfg.TTLMonth,
		Year:    cfg.TTLYear,
		AllTime: cfg.TTLAllTime,
	})

	match := matcher.New(log, cfg.MatchToleranceM, cfg.OverlapFraction, cfg.StopSpeedMps)
	grid := geo.NewSpatialGrid(cfg.GridCellDeg)

	processor := services.NewProcessorService(
		log,
		theDB,
		services.ProcessorConfig{
			MatchToleranceM:     cfg.MatchToleranceM,
			ElevationNoiseM:     cfg.ElevationNoiseM,
			StopSpeedMps:        cfg.StopSpeedMps,
			SpatialQueryTimeout: cfg.SpatialQueryTimeout,
			RetryBackoff:        cfg.RetryBackoff,
		},
		activityRepo,
		trackRepo,
		segmentRepo,
		userRepo,
		effortService,
		achievementService,
		leaderboardService,
		match,
		grid,
	)
	if err := processor.SeedIndex(context.Background()); err != nil {
		log.Error("Could not seed spatial index", "error", err)
		os.Exit(1)
	}

	// Processing queue
	queue := jobs.NewQueue(log, processor, cfg.WorkerCount, cfg.RetryBackoff)
	defer queue.Close()
	go func() {
		for res := range queue.Results() {
			if res.Err != nil {
				log.Warn("Activity processing failed", "activity_id", res.ActivityID, "error", res.Err)
			} else {
				log.Info("Activity processed", "activity_id", res.ActivityID)
			}
		}
	}()

	activityService := services.NewActivityService(log, activityRepo, effortRepo, userRepo, queue)
	segmentService := services.NewSegmentService(log, segmentRepo, trackRepo, processor, scoring, cfg.ElevationNoiseM)
	userService := services.NewUserService(log, userRepo, leaderboardService)

	// Handlers
	log.Info("Setting up handlers from main...")
	activityHandler := handlers.NewActivityHandler(activityService)
	segmentHandler := handlers.NewSegmentHandler(segmentService, leaderboardService)
	userHandler := handlers.NewUserHandler(userService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ActivityHandler: activityHandler,
		SegmentHandler:  segmentHandler,
		UserHandler:     userHandler,
	})

	fmt.Printf("Server listening on :%s\n", cfg.HTTPPort)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
