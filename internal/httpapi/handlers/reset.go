package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anantara-app/backend/internal/auth"
	"github.com/anantara-app/backend/internal/common"
	"github.com/anantara-app/backend/internal/email"
	"github.com/anantara-app/backend/internal/models"
)

// forgotPasswordMsg is returned for every forgot-password request,
// known address or not, so the endpoint cannot be used to probe which
// emails are registered.
const forgotPasswordMsg = "Se o email existir em nossa base, você receberá as instruções de recuperação."

type forgotPasswordReq struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusUnprocessableEntity, 10002, "email inválido")
		return
	}
	addr := strings.ToLower(strings.TrimSpace(req.Email))

	if h.Limiter != nil {
		if allowed, err := h.Limiter.AllowPasswordReset(c.Request.Context(), addr); err == nil && !allowed {
			// same body as the success path
			common.OK(c, gin.H{"message": forgotPasswordMsg})
			return
		}
	}

	var user models.User
	if err := h.DB.Where("email = ?", addr).First(&user).Error; err != nil {
		common.OK(c, gin.H{"message": forgotPasswordMsg})
		return
	}

	raw, err := h.ResetSvc.Issue(c.Request.Context(), user.ID)
	if err != nil {
		log.Printf("reset: token issue failed user_id=%d err=%v", user.ID, err)
		common.OK(c, gin.H{"message": forgotPasswordMsg})
		return
	}

	if h.Mailer != nil {
		ttlMinutes := int(h.Cfg.ResetTokenTTL.Minutes())
		subject, body := email.ResetMail(h.Cfg.FrontendOrigin, raw, ttlMinutes)
		go func(to string) {
			if err := h.Mailer.Send(context.Background(), to, subject, body); err != nil {
				log.Printf("reset: mail failed to=%s err=%v", to, err)
			}
		}(user.Email)
	}

	common.OK(c, gin.H{"message": forgotPasswordMsg})
}

type resetPasswordReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword validates the token, writes the new password, then
// consumes the token. Consumption comes last so a failed password
// write leaves the token usable for a retry. Every token problem maps
// to the same generic 400.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Token == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "token required")
		return
	}
	if len(req.NewPassword) < 6 {
		common.Fail(c, http.StatusBadRequest, 10003, "a senha deve ter pelo menos 6 caracteres")
		return
	}

	userID, err := h.ResetSvc.Validate(c.Request.Context(), req.Token)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10030, "token inválido ou expirado")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}
	if err := h.DB.Model(&models.User{}).Where("id = ?", userID).
		Update("password_hash", hash).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	if err := h.ResetSvc.Consume(c.Request.Context(), req.Token); err != nil {
		// lost the race to a concurrent reset with the same token
		common.Fail(c, http.StatusBadRequest, 10030, "token inválido ou expirado")
		return
	}

	common.OK(c, gin.H{"message": "Senha redefinida com sucesso."})
}
