package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/anantara-app/backend/internal/billing"
	"github.com/anantara-app/backend/internal/common"
	"github.com/anantara-app/backend/internal/content"
	"github.com/anantara-app/backend/internal/models"
)

func (h *Handler) AdminListPrompts(c *gin.Context) {
	prompts, err := h.Content.ListPrompts(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"prompts": prompts})
}

type upsertPromptReq struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *Handler) AdminUpsertPrompt(c *gin.Context) {
	var req upsertPromptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	switch req.Name {
	case content.PromptSystem, content.PromptSummary, content.PromptSuggestions:
	default:
		common.Fail(c, http.StatusBadRequest, 10050, "unknown prompt name")
		return
	}

	if err := h.Content.UpsertPrompt(c.Request.Context(), req.Name, req.Content); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"name": req.Name})
}

func (h *Handler) AdminListDocuments(c *gin.Context) {
	docs, err := h.Content.ListDocuments(c.Request.Context())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"documents": docs})
}

func (h *Handler) AdminGetDocument(c *gin.Context) {
	doc, err := h.Content.GetDocument(c.Request.Context(), c.Param("kind"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40406, "document not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, doc)
}

type upsertDocumentReq struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *Handler) AdminUpsertDocument(c *gin.Context) {
	var req upsertDocumentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	doc, err := h.Content.UpsertDocument(c.Request.Context(), c.Param("kind"), req.Title, req.Content)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, doc)
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	q := h.DB.WithContext(c.Request.Context()).Model(&models.User{})
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + search + "%"
		q = q.Where("email LIKE ? OR name LIKE ?", like, like)
	}

	var users []models.User
	if err := q.Order("id ASC").Limit(100).Find(&users).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"users": users})
}

func (h *Handler) AdminGetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	payments, err := h.BillingSvc.ListPayments(c.Request.Context(), user.ID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	common.OK(c, gin.H{
		"user":     user,
		"payments": payments,
	})
}

type setPlanReq struct {
	Plan string `json:"plan" binding:"required"`
}

func (h *Handler) AdminSetUserPlan(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		common.Fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var req setPlanReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if !billing.PlanExists(req.Plan) {
		common.Fail(c, http.StatusBadRequest, 10040, "plano inválido")
		return
	}

	res := h.DB.Model(&models.User{}).Where("id = ?", id).Update("plan", req.Plan)
	if res.Error != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if res.RowsAffected == 0 {
		common.Fail(c, http.StatusNotFound, 40401, "user not found")
		return
	}

	common.OK(c, gin.H{"id": id, "subscription_plan": req.Plan})
}
