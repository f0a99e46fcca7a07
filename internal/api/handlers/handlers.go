package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Marga-Ghale/statement-saas/internal/action"
	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/converter"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/Marga-Ghale/statement-saas/internal/models"
	"github.com/Marga-Ghale/statement-saas/internal/repository"
	"github.com/Marga-Ghale/statement-saas/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	Auth      *AuthHandler
	Account   *AccountHandler
	Team      *TeamHandler
	Activity  *ActivityHandler
	Billing   *BillingHandler
	Converter *ConverterHandler
	Health    *HealthHandler
}

// HandlerDeps contains everything the handlers need
type HandlerDeps struct {
	Services *service.Services
	Store    *converter.Store
	Health   HealthChecks
	Log      *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps HandlerDeps) *Handlers {
	log := deps.Log.Named("http")
	return &Handlers{
		Auth:      &AuthHandler{accountService: deps.Services.Account, log: log},
		Account:   &AccountHandler{accountService: deps.Services.Account, log: log},
		Team:      &TeamHandler{teamService: deps.Services.Team, log: log},
		Activity:  &ActivityHandler{activityService: deps.Services.Activity, log: log},
		Billing:   &BillingHandler{billingService: deps.Services.Billing, log: log},
		Converter: &ConverterHandler{store: deps.Store, log: log},
		Health:    &HealthHandler{checks: deps.Health},
	}
}

// ============================================
// Action responses
// ============================================

// respondAction renders the outcome of a form action. Redirects become 303
// responses, user-facing errors 422, and everything else 200. Session
// changes are applied in every case.
func respondAction(c *gin.Context, res *action.Result, err error) {
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if res == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}

	if res.ClearSession {
		auth.ClearSessionCookie(c.Writer)
	}
	if res.Session != nil {
		auth.SetSessionCookie(c.Writer, res.Session)
	}

	if res.Redirect != "" {
		c.Redirect(http.StatusSeeOther, res.Redirect)
		return
	}

	body := gin.H{}
	for k, v := range res.Fields {
		body[k] = v
	}
	if res.Failed() {
		body["error"] = res.Error
		c.JSON(http.StatusUnprocessableEntity, body)
		return
	}
	body["success"] = res.Success
	c.JSON(http.StatusOK, body)
}

func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, action.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, service.ErrTeamNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Team not found"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// formFromRequest reads the submitted fields from a JSON, urlencoded or
// multipart body.
func formFromRequest(c *gin.Context) (action.Form, error) {
	switch c.ContentType() {
	case binding.MIMEJSON:
		raw := map[string]interface{}{}
		if c.Request.ContentLength != 0 {
			// Numbers stay json.Number so large ids keep their digits.
			dec := json.NewDecoder(c.Request.Body)
			dec.UseNumber()
			if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
				return nil, err
			}
		}
		values := action.Values{}
		for k, v := range raw {
			if v == nil {
				continue
			}
			values[k] = fmt.Sprint(v)
		}
		return values, nil
	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
			return nil, err
		}
	default:
		if err := c.Request.ParseForm(); err != nil {
			return nil, err
		}
	}
	return c.Request.PostForm, nil
}

// runAction parses the form, runs fn and renders its result.
func runAction(c *gin.Context, fn action.Func) {
	form, err := formFromRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	res, err := fn(c.Request.Context(), form)
	respondAction(c, res, err)
}

// ============================================
// Response Mappers
// ============================================

func toUserResponse(u *repository.User) models.UserResponse {
	return models.UserResponse{
		ID:        u.ID,
		UUID:      u.UUID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func toTeamResponse(d *service.TeamDetails) models.TeamResponse {
	t := d.Team
	resp := models.TeamResponse{
		ID:                   t.ID,
		Name:                 t.Name,
		CreatedAt:            t.CreatedAt,
		StripeCustomerID:     t.StripeCustomerID,
		StripeSubscriptionID: t.StripeSubscriptionID,
		StripeProductID:      t.StripeProductID,
		PlanName:             t.PlanName,
		SubscriptionStatus:   t.SubscriptionStatus,
		Members:              make([]models.TeamMemberResponse, len(d.Members)),
	}
	for i, m := range d.Members {
		resp.Members[i] = models.TeamMemberResponse{
			ID:       m.ID,
			UserID:   m.UserID,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
			Name:     m.UserName,
			Email:    m.UserEmail,
		}
	}
	return resp
}

func toActivityResponse(l *repository.ActivityLog) models.ActivityResponse {
	return models.ActivityResponse{
		ID:        l.ID,
		Action:    l.Action,
		Timestamp: l.Timestamp,
		IPAddress: l.IPAddress,
		UserName:  l.UserName,
	}
}
