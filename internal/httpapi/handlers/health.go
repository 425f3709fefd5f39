package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anantara-app/backend/internal/common"
)

func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "database unavailable")
		return
	}
	common.OK(c, gin.H{"status": "healthy", "service": "anantara"})
}
