package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/service"
	"github.com/gin-gonic/gin"
)

// TeamHandler handles team-related HTTP requests
type TeamHandler struct {
	teamService service.TeamService
	log         *logger.Logger
}

// GetTeam returns the caller's team with its members
func (h *TeamHandler) GetTeam(c *gin.Context) {
	details, err := h.teamService.GetTeam(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toTeamResponse(details))
}

// InviteMember invites someone to the caller's team
func (h *TeamHandler) InviteMember(c *gin.Context) {
	runAction(c, h.teamService.InviteTeamMember)
}

// RemoveMember removes a membership from the caller's team
func (h *TeamHandler) RemoveMember(c *gin.Context) {
	runAction(c, h.teamService.RemoveTeamMember)
}
