package handlers

import (
	"io"
	"net/http"

	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/service"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 65536

// ============================================
// Billing Handler
// ============================================

type BillingHandler struct {
	billingService service.BillingService
	log            *logger.Logger
}

// Pricing returns the plan catalog.
func (h *BillingHandler) Pricing(c *gin.Context) {
	catalog, err := h.billingService.Catalog(c.Request.Context())
	if err != nil {
		h.log.Error("[Billing] failed to load pricing", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Pricing is temporarily unavailable"})
		return
	}
	c.JSON(http.StatusOK, catalog)
}

func (h *BillingHandler) Checkout(c *gin.Context) {
	runAction(c, h.billingService.Checkout)
}

func (h *BillingHandler) Portal(c *gin.Context) {
	runAction(c, h.billingService.CustomerPortal)
}

// CheckoutCallback finishes a hosted checkout. Any failure sends the
// browser to the error page.
func (h *BillingHandler) CheckoutCallback(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.Redirect(http.StatusSeeOther, "/pricing")
		return
	}

	res, err := h.billingService.CompleteCheckout(c.Request.Context(), sessionID)
	if err != nil {
		h.log.Error("[Billing] checkout completion failed", "session", sessionID, "error", err)
		c.Redirect(http.StatusSeeOther, "/error")
		return
	}

	auth.SetSessionCookie(c.Writer, res.Session)
	c.Redirect(http.StatusSeeOther, res.Redirect)
}

// Webhook receives provider events.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}
	if len(payload) > maxWebhookBody {
		h.log.Warn("[Billing] webhook body too large", "limit", maxWebhookBody)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Webhook payload too large."})
		return
	}

	err = h.billingService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if service.IsBillingInputError(err) {
			h.log.Warn("[Billing] webhook rejected", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Webhook signature verification failed."})
			return
		}
		h.log.Error("[Billing] webhook processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Webhook processing failed."})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
