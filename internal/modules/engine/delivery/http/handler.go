package http

import (
	"net/http"

	engineDto "github.com/choretide/gamification/internal/modules/engine/dto"
	engineService "github.com/choretide/gamification/internal/modules/engine/service"
	"github.com/choretide/gamification/pkg/response"
	"github.com/choretide/gamification/pkg/validator"
	"github.com/gin-gonic/gin"
)

// EngineHandler is the collaborator-facing ingest edge. A failed
// gamification step returns an error body the caller logs as "points
// pending"; it must never roll back the business action that produced the
// event.
type EngineHandler struct {
	service engineService.EngineService
}

func NewEngineHandler(service engineService.EngineService) *EngineHandler {
	return &EngineHandler{service: service}
}

func (h *EngineHandler) ActionCompleted(c *gin.Context) {
	var event engineDto.ActionCompleted
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	result, err := h.service.HandleAction(c.Request.Context(), event)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (h *EngineHandler) RewardRedemption(c *gin.Context) {
	var event engineDto.RewardRedemption
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validator.FormatValidationError(err)})
		return
	}

	result, err := h.service.HandleRedemption(c.Request.Context(), event)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// Reconcile re-runs unlock evaluation for one user on demand.
func (h *EngineHandler) Reconcile(c *gin.Context) {
	userID, err := response.ParseUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.ReEvaluate(c.Request.Context(), userID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reconciliation complete"})
}
