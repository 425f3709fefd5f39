package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anantara-app/backend/internal/auth"
	"github.com/anantara-app/backend/internal/billing"
	"github.com/anantara-app/backend/internal/common"
	"github.com/anantara-app/backend/internal/email"
	"github.com/anantara-app/backend/internal/httpapi/middleware"
	"github.com/anantara-app/backend/internal/models"
)

const tokenTTL = 24 * time.Hour

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "name, email and password required")
		return
	}
	if len(req.Password) < 6 {
		common.Fail(c, http.StatusBadRequest, 10003, "a senha deve ter pelo menos 6 caracteres")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(req.Phone),
		Plan:         billing.FreePlan,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "email já cadastrado")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	if h.Mailer != nil {
		subject, body := email.WelcomeMail(user.Name)
		go func(to string) {
			// outlives the request on purpose
			if err := h.Mailer.Send(context.Background(), to, subject, body); err != nil {
				log.Printf("auth: welcome mail failed to=%s err=%v", to, err)
			}
		}(user.Email)
	}

	common.OK(c, gin.H{
		"token": token,
		"user":  user,
	})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	var user models.User
	err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&user).Error
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40102, "email ou senha inválidos")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"token": token,
		"user":  user,
	})
}

func (h *Handler) Me(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusNotFound, 40401, "user not found")
		return
	}

	var usedToday, usedMonth int64
	if h.Usage != nil {
		if n, err := h.Usage.UsedToday(c.Request.Context(), uid); err == nil {
			usedToday = n
		}
		if monthly, ok := h.Usage.(interface {
			UsedThisMonth(ctx context.Context, userID uint64) (int64, error)
		}); ok {
			if n, err := monthly.UsedThisMonth(c.Request.Context(), uid); err == nil {
				usedMonth = n
			}
		}
	}

	limit := billing.DailyLimit(user.Plan)
	remaining := int64(limit)
	if limit >= 0 {
		remaining = int64(limit) - usedToday
		if remaining < 0 {
			remaining = 0
		}
	}

	common.OK(c, gin.H{
		"user":                     user,
		"messages_used_today":      usedToday,
		"messages_used_this_month": usedMonth,
		"messages_remaining_today": remaining,
	})
}

type profileReq struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req profileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			common.Fail(c, http.StatusBadRequest, 10005, "name must not be empty")
			return
		}
		updates["name"] = name
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if len(updates) == 0 {
		common.Fail(c, http.StatusBadRequest, 10006, "nothing to update")
		return
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", uid).Updates(updates).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"user": user})
}

type createAdminReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	SetupKey string `json:"setup_key"`
}

// CreateAdmin bootstraps the first admin with the setup key; once an
// admin exists only admins can mint more.
func (h *Handler) CreateAdmin(c *gin.Context) {
	var req createAdminReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	var admins int64
	if err := h.DB.Model(&models.User{}).Where("is_admin = ?", true).Count(&admins).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	// Bootstrap with the setup key while no admin exists; afterwards
	// only an authenticated admin may mint another.
	authorized := false
	if admins == 0 {
		authorized = h.Cfg.AdminSetupKey != "" && req.SetupKey == h.Cfg.AdminSetupKey
	} else if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if uid, err := auth.ParseJWT(tokenStr, h.Cfg.JWTSecret); err == nil {
			var caller models.User
			if err := h.DB.First(&caller, uid).Error; err == nil {
				authorized = caller.IsAdmin
			}
		}
	}
	if !authorized {
		common.Fail(c, http.StatusForbidden, 40302, "not allowed")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if strings.TrimSpace(req.Name) == "" || req.Email == "" || len(req.Password) < 6 {
		common.Fail(c, http.StatusBadRequest, 10002, "name, email and password (min 6) required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	user := models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: hash,
		Plan:         billing.FreePlan,
		IsAdmin:      true,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "email já cadastrado")
		return
	}

	common.OK(c, gin.H{"user": user})
}
