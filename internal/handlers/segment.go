package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openridge/trailforge-backend/internal/services"
)

type SegmentHandler struct {
	segmentService     services.SegmentService
	leaderboardService services.LeaderboardService
}

func NewSegmentHandler(segmentService services.SegmentService, leaderboardService services.LeaderboardService) *SegmentHandler {
	return &SegmentHandler{segmentService: segmentService, leaderboardService: leaderboardService}
}

type createSegmentRequest struct {
	CreatorID  uuid.UUID `json:"creator_id" binding:"required"`
	ActivityID uuid.UUID `json:"activity_id" binding:"required"`
	Name       string    `json:"name" binding:"required"`
	Visibility string    `json:"visibility"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index" binding:"required"`
}

func (h *SegmentHandler) Create(c *gin.Context) {
	var req createSegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	seg, err := h.segmentService.CreateFromTrack(c.Request.Context(), services.CreateSegmentInput{
		CreatorID:  req.CreatorID,
		ActivityID: req.ActivityID,
		Name:       req.Name,
		Visibility: req.Visibility,
		StartIndex: req.StartIndex,
		EndIndex:   req.EndIndex,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"segment": seg})
}

func (h *SegmentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	seg, err := h.segmentService.Get(c.Request.Context(), id)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"segment": seg})
}

// List returns the segments created by one user.
func (h *SegmentHandler) List(c *gin.Context) {
	creatorID, err := uuid.Parse(c.Query("creator_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	segs, err := h.segmentService.ListByCreator(c.Request.Context(), creatorID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"segments": segs})
}

func (h *SegmentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.segmentService.Delete(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Leaderboard serves the ranked board for a segment. Scope defaults to
// all_time and period to the window containing now; gender and age_group
// narrow the field.
func (h *SegmentHandler) Leaderboard(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	limit := intQuery(c, "limit", 10)
	offset := intQuery(c, "offset", 0)
	page, err := h.leaderboardService.Query(c.Request.Context(), services.LeaderboardQuery{
		SegmentID: id,
		Scope:     c.Query("scope"),
		Period:    c.Query("period"),
		Gender:    c.Query("gender"),
		AgeGroup:  c.Query("age_group"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"leaderboard": page})
}

func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
