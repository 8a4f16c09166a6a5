package models

import "time"

// RefreshToken is one entry in the refresh token ledger. A token is usable
// only while unrevoked and unexpired; rotation revokes the presented token
// and issues a replacement in the same transaction.
type RefreshToken struct {
	BaseModel

	Token  string `gorm:"uniqueIndex;not null" json:"-"`
	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Revoked   bool      `gorm:"default:false;index" json:"revoked"`
}

// Usable reports whether the token can still be presented at the given
// instant.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
