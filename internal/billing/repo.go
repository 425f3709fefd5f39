package billing

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, p *Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Payment, error) {
	var p Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID uint64) ([]Payment, error) {
	var out []Payment
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPaid is a conditional pending->paid transition; the affected-rows
// count makes duplicate webhook deliveries harmless.
func (r *Repo) MarkPaid(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status = ?", id, PaymentPending).
		Update("status", PaymentPaid)
	return res.RowsAffected, res.Error
}

// MarkRefunded transitions paid->refunded only.
func (r *Repo) MarkRefunded(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ? AND status = ?", id, PaymentPaid).
		Update("status", PaymentRefunded)
	return res.RowsAffected, res.Error
}

func (r *Repo) SetProviderRef(ctx context.Context, id, ref string) error {
	return r.db.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", id).
		Update("provider_ref", ref).Error
}
