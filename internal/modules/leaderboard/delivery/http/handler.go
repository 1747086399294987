package http

import (
	"net/http"
	"strconv"

	leaderboardRepo "github.com/choretide/gamification/internal/modules/leaderboard/repository"
	leaderboardService "github.com/choretide/gamification/internal/modules/leaderboard/service"
	"github.com/choretide/gamification/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type LeaderboardHandler struct {
	service leaderboardService.LeaderboardService
}

func NewLeaderboardHandler(service leaderboardService.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	metric := c.DefaultQuery("metric", leaderboardRepo.MetricCurrentPoints)
	scope := c.DefaultQuery("scope", leaderboardService.ScopeGlobal)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	var familyID *uuid.UUID
	if raw := c.Query("family_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "family_id must be a valid UUID"})
			return
		}
		familyID = &id
	}

	snapshot, err := h.service.Rank(c.Request.Context(), metric, scope, familyID, page, limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}
