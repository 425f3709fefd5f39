package reset

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

func (r *Repo) Create(ctx context.Context, t *Token) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// DeleteUnused drops any still-unused tokens for the user, so at most
// one issued token is live at a time.
func (r *Repo) DeleteUnused(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND used = ?", userID, false).
		Delete(&Token{}).Error
}

func (r *Repo) FindByHash(ctx context.Context, hash string) (*Token, error) {
	var t Token
	if err := r.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ConsumeByHash flips used=false to used=true in a single conditional
// update. The affected-rows count tells concurrent callers apart:
// exactly one request wins the race.
func (r *Repo) ConsumeByHash(ctx context.Context, hash string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&Token{}).
		Where("token_hash = ? AND used = ?", hash, false).
		Update("used", true)
	return res.RowsAffected, res.Error
}
