package handlers

import (
	"context"

	"gorm.io/gorm"

	"github.com/anantara-app/backend/internal/ai"
	"github.com/anantara-app/backend/internal/billing"
	"github.com/anantara-app/backend/internal/chat"
	"github.com/anantara-app/backend/internal/config"
	"github.com/anantara-app/backend/internal/content"
	"github.com/anantara-app/backend/internal/email"
	"github.com/anantara-app/backend/internal/reset"
)

// ResetLimiter caps password recovery mails per address. Nil disables
// the limit (tests, redis-less development).
type ResetLimiter interface {
	AllowPasswordReset(ctx context.Context, email string) (bool, error)
}

type Handler struct {
	DB  *gorm.DB
	Cfg config.Config

	ChatSvc    *chat.Service
	ResetSvc   *reset.Service
	BillingSvc *billing.Service
	Content    *content.Repo

	Mailer  email.Sender
	Usage   chat.Usage
	Limiter ResetLimiter
}

func NewHandler(db *gorm.DB, cfg config.Config, reg *ai.Registry, usage chat.Usage, limiter ResetLimiter, mailer email.Sender) *Handler {
	contentRepo := content.NewRepo(db)
	chatSvc := chat.NewService(chat.NewRepo(db), reg, cfg.AIProvider, cfg.AIModel, usage, contentRepo, cfg.ChatContextWindowSize)
	resetSvc := reset.NewService(reset.NewRepo(db), cfg.ResetTokenTTL)
	billingSvc := billing.NewService(db, billing.NewCheckoutClient(cfg.CheckoutBaseURL, cfg.CheckoutAPIKey), cfg.FrontendOrigin)

	return &Handler{
		DB:         db,
		Cfg:        cfg,
		ChatSvc:    chatSvc,
		ResetSvc:   resetSvc,
		BillingSvc: billingSvc,
		Content:    contentRepo,
		Mailer:     mailer,
		Usage:      usage,
		Limiter:    limiter,
	}
}
