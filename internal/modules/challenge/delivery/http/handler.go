package http

import (
	"net/http"

	challengeService "github.com/choretide/gamification/internal/modules/challenge/service"
	"github.com/choretide/gamification/pkg/apperror"
	"github.com/choretide/gamification/pkg/response"
	"github.com/gin-gonic/gin"
)

type ChallengeHandler struct {
	tracker *challengeService.Tracker
}

func NewChallengeHandler(tracker *challengeService.Tracker) *ChallengeHandler {
	return &ChallengeHandler{tracker: tracker}
}

func (h *ChallengeHandler) GetUserChallenges(c *gin.Context) {
	userID, err := response.ParseUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	challenges, err := h.tracker.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": challenges})
}

// ClaimReward is the explicit claim step; completion alone never claims.
func (h *ChallengeHandler) ClaimReward(c *gin.Context) {
	userID, err := response.ParseUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	challengeID := c.Param("challenge_id")
	if challengeID == "" {
		response.ResponseError(c, apperror.ErrBadRequest)
		return
	}

	if err := h.tracker.Claim(c.Request.Context(), userID, challengeID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reward claimed"})
}
