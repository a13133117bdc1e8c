package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/danblackadder/slumberhouse-api/internal/model"
	"gorm.io/gorm"
)

// ErrRefreshTokenInvalid covers unknown, revoked and expired refresh tokens.
var ErrRefreshTokenInvalid = errors.New("refresh token is invalid or expired")

// RefreshStore manages refresh token persistence via GORM. Only the SHA-256
// hash of a token is stored.
type RefreshStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewRefreshStore creates a RefreshStore whose tokens live for ttl.
func NewRefreshStore(db *gorm.DB, ttl time.Duration) *RefreshStore {
	return &RefreshStore{db: db, ttl: ttl}
}

// Issue generates a secure random token, stores its hash and returns the
// plaintext to the caller.
func (s *RefreshStore) Issue(ctx context.Context, userID string) (string, error) {
	return s.issue(s.db.WithContext(ctx), userID)
}

func (s *RefreshStore) issue(tx *gorm.DB, userID string) (string, error) {
	raw, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	rt := &model.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: time.Now().Add(s.ttl),
	}
	if err := tx.Create(rt).Error; err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return raw, nil
}

// Rotate revokes rawToken and issues its replacement in one transaction.
// It returns the new token and the owning user id.
func (s *RefreshStore) Rotate(ctx context.Context, rawToken string) (token, userID string, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rt model.RefreshToken
		if err := tx.Where("token_hash = ?", hashToken(rawToken)).First(&rt).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRefreshTokenInvalid
			}
			return fmt.Errorf("find refresh token: %w", err)
		}
		if rt.RevokedAt != nil || time.Now().After(rt.ExpiresAt) {
			return ErrRefreshTokenInvalid
		}
		if err := tx.Model(&rt).Update("revoked_at", time.Now()).Error; err != nil {
			return fmt.Errorf("revoke old refresh token: %w", err)
		}
		token, err = s.issue(tx, rt.UserID)
		userID = rt.UserID
		return err
	})
	if err != nil {
		return "", "", err
	}
	return token, userID, nil
}

// Revoke marks rawToken as revoked. Unknown tokens are ignored.
func (s *RefreshStore) Revoke(ctx context.Context, rawToken string) error {
	return s.db.WithContext(ctx).Model(&model.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashToken(rawToken)).
		Update("revoked_at", time.Now()).Error
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
