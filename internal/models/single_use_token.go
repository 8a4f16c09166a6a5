package models

import "time"

// TokenType distinguishes the two kinds of single-use tokens.
type TokenType string

const (
	TokenTypeActivation    TokenType = "ACTIVATION"
	TokenTypePasswordReset TokenType = "PASSWORD_RESET"
)

// SingleUseToken is an activation or password-reset token. Consumed tokens
// are kept with ValidatedAt set rather than deleted, which preserves an audit
// trail and blocks replay.
type SingleUseToken struct {
	BaseModel

	Token  string    `gorm:"uniqueIndex;not null" json:"-"`
	Type   TokenType `gorm:"size:20;not null;index" json:"type"`
	UserID string    `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User     `gorm:"foreignKey:UserID" json:"-"`

	ExpiresAt   time.Time  `gorm:"index;not null" json:"expires_at"`
	ValidatedAt *time.Time `json:"validated_at"`
}

// Consumable reports whether the token can still be redeemed for the given
// type at the given instant.
func (t *SingleUseToken) Consumable(expected TokenType, now time.Time) bool {
	return t.Type == expected && t.ValidatedAt == nil && now.Before(t.ExpiresAt)
}
