package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/statement-saas/internal/api/middleware"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/models"
	"github.com/Marga-Ghale/statement-saas/internal/service"
	"github.com/gin-gonic/gin"
)

// ActivityHandler handles activity-related HTTP requests
type ActivityHandler struct {
	activityService service.ActivityService
	log             *logger.Logger
}

// GetMyActivities gets the current user's recent activities
func (h *ActivityHandler) GetMyActivities(c *gin.Context) {
	userID := middleware.GetUserID(c)

	logs, err := h.activityService.Recent(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response := make([]models.ActivityResponse, len(logs))
	for i, l := range logs {
		response[i] = toActivityResponse(l)
	}
	c.JSON(http.StatusOK, response)
}
