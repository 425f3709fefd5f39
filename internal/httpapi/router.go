package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/anantara-app/backend/internal/ai"
	"github.com/anantara-app/backend/internal/chat"
	"github.com/anantara-app/backend/internal/common"
	"github.com/anantara-app/backend/internal/config"
	"github.com/anantara-app/backend/internal/email"
	"github.com/anantara-app/backend/internal/httpapi/handlers"
	"github.com/anantara-app/backend/internal/httpapi/middleware"
)

func NewRouter(db *gorm.DB, cfg config.Config, reg *ai.Registry, usage chat.Usage, limiter handlers.ResetLimiter, mailer email.Sender) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, reg, usage, limiter, mailer)

	api := r.Group("/api")

	api.GET("/health", h.Health)
	api.GET("/plans", h.ListPlans)

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/forgot-password", h.ForgotPassword)
	api.POST("/auth/reset-password", h.ResetPassword)

	// gateway callback, shared-secret auth
	api.POST("/subscription/webhook", h.CheckoutWebhook)

	// bootstrap path; authorizes via setup key until an admin exists
	api.POST("/admin/create-admin", h.CreateAdmin)

	authed := api.Group("/")
	authed.Use(middleware.AuthRequired(cfg.JWTSecret))

	authed.GET("/auth/me", h.Me)
	authed.PUT("/auth/profile", h.UpdateProfile)

	authed.POST("/session", h.CreateSession)
	authed.GET("/sessions", h.ListSessions)
	authed.GET("/session/:id", h.GetSession)
	authed.GET("/session/:id/messages", h.ListSessionMessages)
	authed.GET("/session/:id/history", h.ListSessionMessages)
	authed.POST("/session/:id/summary", h.SummarizeSession)

	authed.POST("/chat", h.SendChat)
	authed.POST("/chat/suggestions", h.ChatSuggestions)

	authed.POST("/subscription/checkout", h.Checkout)
	authed.GET("/subscription/payments", h.ListPayments)
	authed.POST("/subscription/cancel", h.CancelSubscription)

	admin := authed.Group("/admin")
	admin.Use(middleware.AdminRequired(db))

	admin.GET("/prompts", h.AdminListPrompts)
	admin.PUT("/prompts", h.AdminUpsertPrompt)
	admin.GET("/documents", h.AdminListDocuments)
	admin.GET("/documents/:kind", h.AdminGetDocument)
	admin.PUT("/documents/:kind", h.AdminUpsertDocument)
	admin.GET("/users", h.AdminListUsers)
	admin.GET("/user/:id", h.AdminGetUser)
	admin.PUT("/user/:id/plan", h.AdminSetUserPlan)

	return r
}
