package handlers

import (
	"net/http"

	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Account Handler
// ============================================

type AccountHandler struct {
	accountService service.AccountService
	log            *logger.Logger
}

func (h *AccountHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.accountService.CurrentUser(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	c.JSON(http.StatusOK, toUserResponse(user))
}

func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	runAction(c, h.accountService.UpdateAccount)
}

func (h *AccountHandler) UpdatePassword(c *gin.Context) {
	runAction(c, h.accountService.UpdatePassword)
}

func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	runAction(c, h.accountService.DeleteAccount)
}
