package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/models"
	apperrors "github.com/epicgather/epicgather/pkg/errors"
)

// ErrUserNotFound indicates the requested user does not exist.
var ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)

// Profile is the read model returned for the authenticated user.
type Profile struct {
	ID          string        `json:"id"`
	FirstName   string        `json:"first_name"`
	LastName    string        `json:"last_name"`
	Email       string        `json:"email"`
	Gender      models.Gender `json:"gender"`
	DateOfBirth time.Time     `json:"date_of_birth"`
	Age         int           `json:"age"`
	PhotoURL    string        `json:"photo_url"`
	IsAdmin     bool          `json:"is_admin"`
	Enabled     bool          `json:"enabled"`
}

// UserService exposes read access to user accounts. Credential mutation
// stays in the auth package.
type UserService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db, now: time.Now}, nil
}

// GetByEmail fetches a user by their normalized email address.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ProfileByEmail returns the profile read model for the given email.
func (s *UserService) ProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	user, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	return &Profile{
		ID:          user.ID,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Email:       user.Email,
		Gender:      user.Gender,
		DateOfBirth: user.DateOfBirth,
		Age:         user.Age(s.now()),
		PhotoURL:    user.PhotoURL,
		IsAdmin:     user.IsAdmin,
		Enabled:     user.Enabled,
	}, nil
}
