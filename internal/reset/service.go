package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrTokenNotFound    = errors.New("reset: token not found")
	ErrTokenExpired     = errors.New("reset: token expired")
	ErrTokenAlreadyUsed = errors.New("reset: token already used")
)

const tokenBytes = 32 // 256 bits of entropy

type Service struct {
	repo *Repo
	ttl  time.Duration

	// overridable in tests
	now func() time.Time
}

func NewService(repo *Repo, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Service{repo: repo, ttl: ttl, now: time.Now}
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Issue creates a fresh token for the user and returns the raw value.
// Previously issued unused tokens are invalidated first.
func (s *Service) Issue(ctx context.Context, userID uint64) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)

	if err := s.repo.DeleteUnused(ctx, userID); err != nil {
		return "", err
	}

	t := &Token{
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return "", err
	}
	return raw, nil
}

// Validate checks the token and returns the owning user id. It does NOT
// consume the token: consumption is a separate step so a failed password
// write leaves the token usable for a retry.
func (s *Service) Validate(ctx context.Context, raw string) (uint64, error) {
	hash := hashToken(raw)

	t, err := s.repo.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrTokenNotFound
		}
		return 0, err
	}
	if subtle.ConstantTimeCompare([]byte(t.TokenHash), []byte(hash)) != 1 {
		return 0, ErrTokenNotFound
	}
	if t.Used {
		return 0, ErrTokenAlreadyUsed
	}
	if t.IsExpired(s.now()) {
		return 0, ErrTokenExpired
	}
	return t.UserID, nil
}

// Consume marks the token used. Call only after the password update has
// committed. A concurrent request that loses the conditional update race
// gets ErrTokenAlreadyUsed.
func (s *Service) Consume(ctx context.Context, raw string) error {
	hash := hashToken(raw)

	affected, err := s.repo.ConsumeByHash(ctx, hash)
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := s.repo.FindByHash(ctx, hash); errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenNotFound
		}
		return ErrTokenAlreadyUsed
	}
	return nil
}
