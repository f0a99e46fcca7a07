// Package api wires the HTTP routes.
package api

import (
	"time"

	"github.com/Marga-Ghale/statement-saas/internal/api/handlers"
	"github.com/Marga-Ghale/statement-saas/internal/api/middleware"
	"github.com/Marga-Ghale/statement-saas/internal/auth"
	"github.com/Marga-Ghale/statement-saas/internal/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Handlers       *handlers.Handlers
	Codec          *auth.SessionCodec
	AllowedOrigins []string
	MaxUploadSize  int64
	Log            *logger.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	h := cfg.Handlers
	log := cfg.Log.Named("http")

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.ErrorLogger(log))
	if cfg.MaxUploadSize > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadSize
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Session-Id", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", h.Health.Health)

	// Webhooks authenticate by signature, not by cookie.
	r.POST("/api/stripe/webhook", h.Billing.Webhook)

	api := r.Group("/api")
	api.Use(middleware.SessionMiddleware(cfg.Codec, log))
	{
		// ============================================
		// Public routes
		// ============================================
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/sign-in", h.Auth.SignIn)
			authRoutes.POST("/sign-up", h.Auth.SignUp)
			authRoutes.POST("/sign-out", h.Auth.SignOut)
		}

		api.GET("/pricing", h.Billing.Pricing)
		api.GET("/stripe/checkout", h.Billing.CheckoutCallback)

		api.POST("/upload", h.Converter.Upload)
		api.GET("/files", h.Converter.Files)
		api.GET("/download", h.Converter.Download)

		// ============================================
		// Protected routes
		// ============================================
		protected := api.Group("")
		protected.Use(middleware.RequireUser())
		{
			protected.GET("/user", h.Account.GetCurrentUser)

			account := protected.Group("/account")
			{
				account.PUT("", h.Account.UpdateAccount)
				account.PUT("/password", h.Account.UpdatePassword)
				account.POST("/delete", h.Account.DeleteAccount)
			}

			team := protected.Group("/team")
			{
				team.GET("", h.Team.GetTeam)
				team.POST("/invitations", h.Team.InviteMember)
				team.POST("/members/remove", h.Team.RemoveMember)
			}

			protected.GET("/activity", h.Activity.GetMyActivities)

			billingRoutes := protected.Group("/billing")
			{
				billingRoutes.POST("/checkout", h.Billing.Checkout)
				billingRoutes.POST("/portal", h.Billing.Portal)
			}
		}
	}

	return r
}
