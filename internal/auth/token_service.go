package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/database"
	"github.com/epicgather/epicgather/internal/models"
	"github.com/epicgather/epicgather/pkg/crypto"
)

// DefaultSingleUseTokenTTL is the validity window for activation and
// password-reset tokens.
const DefaultSingleUseTokenTTL = 15 * time.Minute

const (
	activationCodeLength = 6
	resetTokenLength     = 32
)

var (
	// ErrTokenNotFound indicates no token record matches the presented string.
	ErrTokenNotFound = errors.New("token: not found")
	// ErrTokenTypeMismatch indicates the token exists but was issued for a different operation.
	ErrTokenTypeMismatch = errors.New("token: type mismatch")
	// ErrTokenExpired indicates the token's validity window has elapsed.
	ErrTokenExpired = errors.New("token: expired")
	// ErrTokenConsumed indicates the token has already been redeemed.
	ErrTokenConsumed = errors.New("token: already used")
)

// TokenConfig describes tunable behaviour for the TokenService.
type TokenConfig struct {
	TokenTTL time.Duration
	Clock    func() time.Time
}

// TokenService is the registry of single-use tokens. Activation tokens are
// short numeric codes suited to manual entry; password-reset tokens are
// high-entropy opaque strings delivered inside a link. Consumed tokens are
// marked, never deleted.
type TokenService struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewTokenService constructs a single-use token registry backed by the provided database.
func NewTokenService(db *gorm.DB, cfg TokenConfig) (*TokenService, error) {
	if db == nil {
		return nil, errors.New("token service: db is required")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultSingleUseTokenTTL
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &TokenService{
		db:  db,
		ttl: ttl,
		now: clock,
	}, nil
}

// WithTx returns a copy of the service bound to the given transaction handle.
func (s *TokenService) WithTx(tx *gorm.DB) *TokenService {
	cp := *s
	cp.db = tx
	return &cp
}

// IssueActivation creates a fresh activation code for the user. Outstanding
// activation tokens for the same user are left untouched; only the token a
// caller actually presents is ever checked.
func (s *TokenService) IssueActivation(userID string) (*models.SingleUseToken, error) {
	return s.issue(userID, models.TokenTypeActivation, func() (string, error) {
		return crypto.GenerateNumericCode(activationCodeLength)
	})
}

// IssuePasswordReset creates a fresh password-reset token for the user.
func (s *TokenService) IssuePasswordReset(userID string) (*models.SingleUseToken, error) {
	return s.issue(userID, models.TokenTypePasswordReset, func() (string, error) {
		return crypto.GenerateToken(resetTokenLength)
	})
}

// issueMaxAttempts bounds regeneration when a generated token collides with
// the table's unique index. Six-digit activation codes make collisions a
// certainty as the table grows.
const issueMaxAttempts = 5

func (s *TokenService) issue(userID string, tokenType models.TokenType, generate func() (string, error)) (*models.SingleUseToken, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("token service: user id is required")
	}

	for attempt := 0; attempt < issueMaxAttempts; attempt++ {
		token, err := generate()
		if err != nil {
			return nil, fmt.Errorf("token service: generate token: %w", err)
		}

		record := &models.SingleUseToken{
			Token:     token,
			Type:      tokenType,
			UserID:    userID,
			ExpiresAt: s.now().Add(s.ttl),
		}

		err = s.db.Create(record).Error
		if err == nil {
			return record, nil
		}
		if !database.IsUniqueConstraintError(err) {
			return nil, fmt.Errorf("token service: create token: %w", err)
		}
	}

	return nil, fmt.Errorf("token service: no unique token after %d attempts", issueMaxAttempts)
}

// Consume redeems a token of the expected type, setting its validation
// timestamp. The mark is a conditional update keyed on validated_at IS NULL,
// so two concurrent presentations of the same token yield exactly one
// success and one ErrTokenConsumed. On ErrTokenExpired and ErrTokenConsumed
// the stale record is returned alongside the error so callers can react to
// it, e.g. by issuing a replacement activation code.
func (s *TokenService) Consume(tokenString string, expected models.TokenType) (*models.SingleUseToken, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrTokenNotFound
	}

	var record models.SingleUseToken
	err := s.db.Where("token = ?", tokenString).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("token service: find token: %w", err)
	}

	if record.Type != expected {
		return nil, ErrTokenTypeMismatch
	}
	if record.ValidatedAt != nil {
		return &record, ErrTokenConsumed
	}

	now := s.now()
	if !now.Before(record.ExpiresAt) {
		return &record, ErrTokenExpired
	}

	result := s.db.Model(&models.SingleUseToken{}).
		Where("id = ? AND validated_at IS NULL", record.ID).
		Update("validated_at", now)
	if result.Error != nil {
		return nil, fmt.Errorf("token service: consume token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race to a concurrent consumption.
		return &record, ErrTokenConsumed
	}

	record.ValidatedAt = &now
	return &record, nil
}

// CleanupExpired deletes unconsumed tokens whose validity window elapsed
// more than the retention period ago. Consumed tokens are retained as an
// audit trail.
func (s *TokenService) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if retention < 0 {
		retention = 0
	}

	cutoff := s.now().Add(-retention)

	result := s.db.WithContext(ctx).
		Where("expires_at < ? AND validated_at IS NULL", cutoff).
		Delete(&models.SingleUseToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("token service: cleanup tokens: %w", result.Error)
	}

	return result.RowsAffected, nil
}
