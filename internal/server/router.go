package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openridge/trailforge-backend/internal/handlers"
)

type RouterConfig struct {
	ActivityHandler *handlers.ActivityHandler
	SegmentHandler  *handlers.SegmentHandler
	UserHandler     *handlers.UserHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		// Activities
		api.POST("/activities", cfg.ActivityHandler.Create)
		api.GET("/activities/:id", cfg.ActivityHandler.Get)
		api.GET("/activities/:id/efforts", cfg.ActivityHandler.ListEfforts)
		// Segments
		api.POST("/segments", cfg.SegmentHandler.Create)
		api.GET("/segments", cfg.SegmentHandler.List)
		api.GET("/segments/:id", cfg.SegmentHandler.Get)
		api.DELETE("/segments/:id", cfg.SegmentHandler.Delete)
		api.GET("/segments/:id/leaderboard", cfg.SegmentHandler.Leaderboard)
		// Profile sync from the upstream profile service
		api.PUT("/users", cfg.UserHandler.Sync)
		api.GET("/users/:id", cfg.UserHandler.Get)
	}

	return router
}
