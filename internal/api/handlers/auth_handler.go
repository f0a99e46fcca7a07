package handlers

import (
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/service"
	"github.com/gin-gonic/gin"
)

// ============================================
// Auth Handler
// ============================================

type AuthHandler struct {
	accountService service.AccountService
	log            *logger.Logger
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	runAction(c, h.accountService.SignIn)
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	runAction(c, h.accountService.SignUp)
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	res, err := h.accountService.SignOut(c.Request.Context())
	respondAction(c, res, err)
}
