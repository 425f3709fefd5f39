package billing

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/anantara-app/backend/internal/common"
	"github.com/anantara-app/backend/internal/models"
)

var (
	ErrUnknownPlan     = errors.New("billing: unknown plan")
	ErrPaymentNotFound = errors.New("billing: payment not found")
)

type Service struct {
	db       *gorm.DB
	repo     *Repo
	checkout *CheckoutClient

	frontendOrigin string
}

func NewService(db *gorm.DB, checkout *CheckoutClient, frontendOrigin string) *Service {
	return &Service{
		db:             db,
		repo:           NewRepo(db),
		checkout:       checkout,
		frontendOrigin: frontendOrigin,
	}
}

// Checkout creates a pending payment and a hosted checkout session for
// it, returning the payment and the redirect URL.
func (s *Service) Checkout(ctx context.Context, user *models.User, planID string) (*Payment, string, error) {
	plan, ok := Plans[planID]
	if !ok || planID == FreePlan {
		return nil, "", ErrUnknownPlan
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, "", err
	}

	p := &Payment{
		ID:     id,
		UserID: user.ID,
		PlanID: planID,
		Amount: plan.Price,
		Status: PaymentPending,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, "", err
	}

	successURL := fmt.Sprintf("%s/?checkout=success", s.frontendOrigin)
	cancelURL := fmt.Sprintf("%s/?checkout=cancel", s.frontendOrigin)

	ref, url, err := s.checkout.CreateSession(ctx, p.ID, planID, plan.Price, user.Email, successURL, cancelURL)
	if err != nil {
		return nil, "", err
	}
	if err := s.repo.SetProviderRef(ctx, p.ID, ref); err != nil {
		log.Printf("billing: provider ref update failed payment_id=%s err=%v", p.ID, err)
	}
	p.ProviderRef = ref

	return p, url, nil
}

// ConfirmPaid handles the gateway webhook for a completed checkout:
// flips the payment to paid and switches the user's plan. Duplicate
// deliveries are no-ops.
func (s *Service) ConfirmPaid(ctx context.Context, paymentID string) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	affected, err := s.repo.MarkPaid(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		// already paid or refunded; webhook retry
		return p, nil
	}
	p.Status = PaymentPaid

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", p.UserID).
		Update("plan", p.PlanID).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// Refund marks a paid payment refunded and drops the user to the free plan.
func (s *Service) Refund(ctx context.Context, paymentID string) error {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		return err
	}

	affected, err := s.repo.MarkRefunded(ctx, paymentID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", p.UserID).
		Update("plan", FreePlan).Error
}

func (s *Service) ListPayments(ctx context.Context, userID uint64) ([]Payment, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Cancel returns the user to the free plan immediately.
func (s *Service) Cancel(ctx context.Context, userID uint64) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("plan", FreePlan).Error
}
