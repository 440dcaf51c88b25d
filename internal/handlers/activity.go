package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openridge/trailforge-backend/internal/geo"
	"github.com/openridge/trailforge-backend/internal/services"
)

type ActivityHandler struct {
	activityService services.ActivityService
}

func NewActivityHandler(activityService services.ActivityService) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

type createActivityRequest struct {
	UserID uuid.UUID   `json:"user_id" binding:"required"`
	Name   string      `json:"name"`
	Sport  string      `json:"sport"`
	Points []geo.Point `json:"points" binding:"required"`
}

// Create accepts an ingested point stream and returns immediately with a
// processing status; the pipeline runs on the background queue.
func (h *ActivityHandler) Create(c *gin.Context) {
	var req createActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	activity, err := h.activityService.CreateAndEnqueue(c.Request.Context(), services.CreateActivityInput{
		UserID: req.UserID,
		Name:   req.Name,
		Sport:  req.Sport,
		Points: req.Points,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"activity_id": activity.ID,
		"status":      activity.Status,
	})
}

func (h *ActivityHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	activity, err := h.activityService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"activity": activity})
}

func (h *ActivityHandler) ListEfforts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	efforts, err := h.activityService.ListEfforts(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"efforts": efforts})
}
