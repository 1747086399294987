package http

import (
	"net/http"
	"strconv"

	ledgerRepo "github.com/choretide/gamification/internal/modules/ledger/repository"
	progressService "github.com/choretide/gamification/internal/modules/progress/service"
	"github.com/choretide/gamification/pkg/dto"
	"github.com/choretide/gamification/pkg/response"
	"github.com/gin-gonic/gin"
)

type ProgressHandler struct {
	service progressService.ProgressService
	ledger  ledgerRepo.LedgerRepository
}

func NewProgressHandler(service progressService.ProgressService, ledger ledgerRepo.LedgerRepository) *ProgressHandler {
	return &ProgressHandler{service: service, ledger: ledger}
}

func (h *ProgressHandler) GetProgress(c *gin.Context) {
	userID, err := response.ParseUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	p, err := h.service.GetOrInit(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   p,
		"status": h.service.StatusFor(p),
	})
}

// GetHistory pages through the user's ledger entries, newest first.
func (h *ProgressHandler) GetHistory(c *gin.Context) {
	userID, err := response.ParseUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	entries, total, err := h.ledger.ListByUser(c.Request.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": entries,
		"meta": dto.PaginationMeta{
			CurrentPage: page,
			TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
			TotalItems:  total,
			Limit:       limit,
		},
	})
}
