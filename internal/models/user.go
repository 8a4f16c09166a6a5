package models

import (
	"strings"
	"time"
)

// Gender enumerates the accepted gender values.
type Gender string

const (
	GenderMale           Gender = "MALE"
	GenderFemale         Gender = "FEMALE"
	GenderPreferNotToSay Gender = "PREFER_NOT_TO_SAY"
)

// ParseGender coerces free-text input into a Gender, reporting whether the
// value matched the enumerated set.
func ParseGender(value string) (Gender, bool) {
	switch Gender(strings.ToUpper(strings.TrimSpace(value))) {
	case GenderMale:
		return GenderMale, true
	case GenderFemale:
		return GenderFemale, true
	case GenderPreferNotToSay:
		return GenderPreferNotToSay, true
	default:
		return "", false
	}
}

// User is the identity record owned by the credential store. Email is stored
// lower-cased and Enabled stays false until the account is activated.
type User struct {
	BaseModel

	FirstName string `gorm:"size:20;not null" json:"first_name"`
	LastName  string `gorm:"size:20;not null" json:"last_name"`
	Email     string `gorm:"uniqueIndex;size:50;not null" json:"email"`
	Password  string `gorm:"column:password_hash;not null" json:"-"`

	DateOfBirth time.Time `gorm:"not null" json:"date_of_birth"`
	Gender      Gender    `gorm:"size:20" json:"gender"`
	PhotoURL    string    `gorm:"column:profile_picture_url" json:"photo_url"`

	IsAdmin bool `gorm:"default:false" json:"is_admin"`
	Enabled bool `gorm:"default:false" json:"enabled"`

	Bookings []Booking `gorm:"foreignKey:UserID" json:"-"`
}

// FullName returns the display name embedded in access token claims.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Age reports the user's age in whole years at the supplied instant.
func (u *User) Age(now time.Time) int {
	years := now.Year() - u.DateOfBirth.Year()
	anniversary := u.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
