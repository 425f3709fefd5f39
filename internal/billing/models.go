package billing

import "time"

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Payment struct {
	ID     string `gorm:"primaryKey;size:26" json:"id"` // ULID
	UserID uint64 `gorm:"index;not null" json:"user_id"`
	PlanID string `gorm:"type:varchar(32);not null" json:"plan_id"`

	Amount float64       `gorm:"not null" json:"amount"`
	Status PaymentStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Checkout session reference at the payment gateway.
	ProviderRef string `gorm:"type:varchar(128);index" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }
