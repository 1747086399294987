package http

import (
	"net/http"

	unlockRepo "github.com/choretide/gamification/internal/modules/achievement/repository"
	achievementService "github.com/choretide/gamification/internal/modules/achievement/service"
	"github.com/choretide/gamification/pkg/response"
	"github.com/gin-gonic/gin"
)

type AchievementHandler struct {
	evaluator *achievementService.Evaluator
	unlocks   unlockRepo.UnlockRepository
}

func NewAchievementHandler(evaluator *achievementService.Evaluator, unlocks unlockRepo.UnlockRepository) *AchievementHandler {
	return &AchievementHandler{evaluator: evaluator, unlocks: unlocks}
}

func (h *AchievementHandler) GetUserAchievements(c *gin.Context) {
	userID, err := response.ParseUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	achievements, err := h.evaluator.ListUnlocked(c.Request.Context(), h.unlocks, userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	badges, err := h.unlocks.ListBadges(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"achievements": achievements,
			"badges":       badges,
		},
	})
}
