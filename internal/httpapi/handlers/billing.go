package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anantara-app/backend/internal/billing"
	"github.com/anantara-app/backend/internal/common"
	"github.com/anantara-app/backend/internal/email"
	"github.com/anantara-app/backend/internal/models"
)

func (h *Handler) ListPlans(c *gin.Context) {
	common.OK(c, gin.H{"plans": billing.Plans})
}

type checkoutReq struct {
	PlanID string `json:"plan_id" binding:"required"`
}

func (h *Handler) Checkout(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	payment, url, err := h.BillingSvc.Checkout(c.Request.Context(), &user, req.PlanID)
	if err != nil {
		if errors.Is(err, billing.ErrUnknownPlan) {
			common.Fail(c, http.StatusBadRequest, 10040, "plano inválido")
			return
		}
		common.Fail(c, http.StatusBadGateway, 50205, "checkout indisponível no momento")
		return
	}

	common.OK(c, gin.H{
		"payment_id":   payment.ID,
		"checkout_url": url,
	})
}

type webhookReq struct {
	Event       string `json:"event"` // checkout.paid | payment.refunded
	ReferenceID string `json:"reference_id"`
}

// CheckoutWebhook receives gateway callbacks. Authentication is a
// shared secret header; deliveries are retried by the gateway so the
// handler must be idempotent.
func (h *Handler) CheckoutWebhook(c *gin.Context) {
	secret := h.Cfg.CheckoutWebhookSecret
	got := c.GetHeader("X-Webhook-Secret")
	if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
		common.Fail(c, http.StatusUnauthorized, 40103, "invalid webhook secret")
		return
	}

	var req webhookReq
	if err := c.ShouldBindJSON(&req); err != nil || req.ReferenceID == "" {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	switch req.Event {
	case "checkout.paid":
		payment, err := h.BillingSvc.ConfirmPaid(c.Request.Context(), req.ReferenceID)
		if err != nil {
			if errors.Is(err, billing.ErrPaymentNotFound) {
				common.Fail(c, http.StatusNotFound, 40405, "payment not found")
				return
			}
			common.Fail(c, http.StatusInternalServerError, 20001, "db error")
			return
		}
		h.sendReceipt(payment)

	case "payment.refunded":
		if err := h.BillingSvc.Refund(c.Request.Context(), req.ReferenceID); err != nil {
			if errors.Is(err, billing.ErrPaymentNotFound) {
				common.Fail(c, http.StatusNotFound, 40405, "payment not found")
				return
			}
			common.Fail(c, http.StatusInternalServerError, 20001, "db error")
			return
		}

	default:
		common.Fail(c, http.StatusBadRequest, 10041, "unknown event")
		return
	}

	common.OK(c, gin.H{"received": true})
}

func (h *Handler) sendReceipt(payment *billing.Payment) {
	if h.Mailer == nil {
		return
	}
	var user models.User
	if err := h.DB.First(&user, payment.UserID).Error; err != nil {
		return
	}
	plan := billing.Plans[payment.PlanID]
	subject, body := email.ReceiptMail(user.Name, plan.Name, payment.Amount)
	go func(to string) {
		if err := h.Mailer.Send(context.Background(), to, subject, body); err != nil {
			log.Printf("billing: receipt mail failed to=%s err=%v", to, err)
		}
	}(user.Email)
}

func (h *Handler) ListPayments(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	payments, err := h.BillingSvc.ListPayments(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"payments": payments})
}

func (h *Handler) CancelSubscription(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.BillingSvc.Cancel(c.Request.Context(), uid); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	common.OK(c, gin.H{"subscription_plan": billing.FreePlan})
}
