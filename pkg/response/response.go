package response

import (
	"log"
	"net/http"

	"github.com/choretide/gamification/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ParseUserID parses the :user_id path param shared by the read endpoints.
func ParseUserID(c *gin.Context) (uuid.UUID, error) {
	userID, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		return uuid.Nil, apperror.ErrBadRequest
	}

	return userID, nil
}

// ResponseError standardized error response
func ResponseError(c *gin.Context, err error) {
	code := apperror.MapErrorToStatus(err)

	// Log internal errors
	if code == http.StatusInternalServerError {
		log.Printf("[Internal Error]: %v", err)
	}

	c.JSON(code, gin.H{"error": err.Error()})
}
