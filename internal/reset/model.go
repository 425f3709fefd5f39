package reset

import "time"

// Token is a single-use password reset credential. Only the SHA-256 of
// the raw token is stored; the raw value travels exclusively inside the
// reset email.
type Token struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	TokenHash string    `gorm:"type:char(64);uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	Used      bool      `gorm:"not null;default:false" json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

func (Token) TableName() string { return "password_reset_tokens" }

func (t *Token) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
