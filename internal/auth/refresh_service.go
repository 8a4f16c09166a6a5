package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/models"
	"github.com/epicgather/epicgather/pkg/crypto"
	"github.com/epicgather/epicgather/pkg/metrics"
)

// DefaultRefreshTokenTTL is the fallback refresh token lifetime.
const DefaultRefreshTokenTTL = 7 * 24 * time.Hour

// ErrRefreshTokenInvalid is returned when a presented refresh token is
// unknown, revoked, or expired. The three cases are deliberately
// indistinguishable to the caller.
var ErrRefreshTokenInvalid = errors.New("refresh: token invalid or expired")

// RefreshConfig describes tunable behaviour for the RefreshService.
type RefreshConfig struct {
	RefreshTokenTTL time.Duration
	TokenLength     int
	Clock           func() time.Time
}

// RefreshService maintains the per-user ledger of refresh tokens. Every
// successful rotation revokes the presented token in the same transaction
// that records its replacement, so a stolen token is usable at most once.
type RefreshService struct {
	db       *gorm.DB
	ttl      time.Duration
	tokenLen int
	now      func() time.Time
}

// NewRefreshService constructs a refresh token ledger backed by the provided database.
func NewRefreshService(db *gorm.DB, cfg RefreshConfig) (*RefreshService, error) {
	if db == nil {
		return nil, errors.New("refresh service: db is required")
	}

	ttl := cfg.RefreshTokenTTL
	if ttl <= 0 {
		ttl = DefaultRefreshTokenTTL
	}

	length := cfg.TokenLength
	if length <= 0 {
		length = 48
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &RefreshService{
		db:       db,
		ttl:      ttl,
		tokenLen: length,
		now:      clock,
	}, nil
}

// WithTx returns a copy of the service bound to the given transaction handle.
func (s *RefreshService) WithTx(tx *gorm.DB) *RefreshService {
	cp := *s
	cp.db = tx
	return &cp
}

// Issue creates a new refresh token record for the user.
func (s *RefreshService) Issue(userID string) (*models.RefreshToken, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("refresh service: user id is required")
	}

	token, err := crypto.GenerateToken(s.tokenLen)
	if err != nil {
		return nil, fmt.Errorf("refresh service: generate token: %w", err)
	}

	record := &models.RefreshToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := s.db.Create(record).Error; err != nil {
		return nil, fmt.Errorf("refresh service: create token: %w", err)
	}

	metrics.ActiveRefreshTokens.Inc()

	return record, nil
}

// RevokeAll marks every unrevoked token belonging to the user as revoked.
// A fresh login calls this first so that only one token lineage is ever live.
func (s *RefreshService) RevokeAll(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("refresh service: user id is required")
	}

	result := s.db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true)
	if result.Error != nil {
		return fmt.Errorf("refresh service: revoke user tokens: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveRefreshTokens.Sub(float64(result.RowsAffected))
	}

	return nil
}

// Rotate revokes the presented token and issues a replacement for the same
// user inside a single transaction. The revocation is a conditional update
// keyed on revoked = false, so two concurrent presentations of the same
// token yield exactly one success.
func (s *RefreshService) Rotate(tokenString string) (*models.RefreshToken, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrRefreshTokenInvalid
	}

	var replacement *models.RefreshToken

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var current models.RefreshToken
		err := tx.Where("token = ?", tokenString).Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRefreshTokenInvalid
		}
		if err != nil {
			return fmt.Errorf("refresh service: find token: %w", err)
		}

		if !current.Usable(s.now()) {
			return ErrRefreshTokenInvalid
		}

		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked = ?", current.ID, false).
			Update("revoked", true)
		if result.Error != nil {
			return fmt.Errorf("refresh service: revoke token: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Lost the race to a concurrent rotation.
			return ErrRefreshTokenInvalid
		}

		next, err := s.WithTx(tx).Issue(current.UserID)
		if err != nil {
			return err
		}

		replacement = next
		return nil
	})
	if err != nil {
		metrics.TokenRotations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	metrics.TokenRotations.WithLabelValues("success").Inc()
	metrics.ActiveRefreshTokens.Dec()

	return replacement, nil
}

// Revoke marks the token as revoked. Revoking an unknown or already-revoked
// token is a no-op so that a client double-submitting a logout never sees an
// error.
func (s *RefreshService) Revoke(tokenString string) error {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil
	}

	result := s.db.Model(&models.RefreshToken{}).
		Where("token = ? AND revoked = ?", tokenString, false).
		Update("revoked", true)
	if result.Error != nil {
		return fmt.Errorf("refresh service: revoke token: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.ActiveRefreshTokens.Sub(float64(result.RowsAffected))
	}

	return nil
}

// IsValid reports whether the record can still be presented. Expiry is
// checked lazily here rather than by a background sweep.
func (s *RefreshService) IsValid(token *models.RefreshToken) bool {
	return token != nil && token.Usable(s.now())
}

// CleanupExpired deletes tokens that are revoked or past expiry. Wired to the
// periodic maintenance job; correctness never depends on it running.
func (s *RefreshService) CleanupExpired(ctx context.Context) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	result := s.db.WithContext(ctx).
		Where("expires_at < ?", s.now()).
		Or("revoked = ?", true).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("refresh service: cleanup tokens: %w", result.Error)
	}

	return result.RowsAffected, nil
}
