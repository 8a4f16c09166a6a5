package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/database"
	"github.com/epicgather/epicgather/internal/models"
	"github.com/epicgather/epicgather/pkg/crypto"
	apperrors "github.com/epicgather/epicgather/pkg/errors"
	"github.com/epicgather/epicgather/pkg/logger"
	"github.com/epicgather/epicgather/pkg/mail"
	"github.com/epicgather/epicgather/pkg/metrics"
)

// MinimumAge is the youngest age at which registration is accepted.
const MinimumAge = 13

const emailSendTimeout = 30 * time.Second

// AuthConfig describes tunable behaviour for the AuthService.
type AuthConfig struct {
	// BaseURL is the public frontend origin used to build action links in
	// outbound emails.
	BaseURL string
	Clock   func() time.Time
}

// RegisterInput carries the profile fields collected at sign-up.
type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	DateOfBirth time.Time
	Gender      string
	PhotoURL    string
}

// Credentials is an email/password pair presented at login.
type Credentials struct {
	Email    string
	Password string
}

// AuthResponse is the payload returned by login and refresh.
type AuthResponse struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	IsAdmin      bool   `json:"isAdmin"`
	Email        string `json:"email"`
	FullName     string `json:"fullName"`
}

// AuthService orchestrates the credential and session lifecycle: it owns no
// token state itself but drives the user store, the single-use token
// registry, and the refresh token ledger, keeping each operation's mutations
// inside one transaction.
type AuthService struct {
	db      *gorm.DB
	jwt     *JWTService
	refresh *RefreshService
	tokens  *TokenService
	mailer  mail.Mailer
	baseURL string
	now     func() time.Time
	log     *zap.Logger
}

// NewAuthService constructs the session orchestrator.
func NewAuthService(db *gorm.DB, jwtService *JWTService, refreshService *RefreshService, tokenService *TokenService, mailer mail.Mailer, cfg AuthConfig) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	if refreshService == nil {
		return nil, errors.New("auth service: refresh service is required")
	}
	if tokenService == nil {
		return nil, errors.New("auth service: token service is required")
	}
	if mailer == nil {
		return nil, errors.New("auth service: mailer is required")
	}

	clock := time.Now
	if cfg.Clock != nil {
		clock = cfg.Clock
	}

	return &AuthService{
		db:      db,
		jwt:     jwtService,
		refresh: refreshService,
		tokens:  tokenService,
		mailer:  mailer,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		now:     clock,
		log:     logger.WithModule("auth"),
	}, nil
}

// Register creates a disabled user account, issues an activation code, and
// requests the activation email. Email uniqueness is enforced by the store's
// unique index rather than a read-then-insert check.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, apperrors.ErrBadRequest
	}

	gender, ok := models.ParseGender(input.Gender)
	if !ok {
		return nil, apperrors.ErrInvalidGender
	}

	user := &models.User{
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		Email:       email,
		DateOfBirth: input.DateOfBirth,
		Gender:      gender,
		PhotoURL:    input.PhotoURL,
		Enabled:     false,
	}

	if user.Age(s.now()) < MinimumAge {
		return nil, apperrors.ErrInvalidAge
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	user.Password = hashed

	var activation *models.SingleUseToken
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if database.IsUniqueConstraintError(err) {
				return apperrors.ErrEmailAlreadyExists
			}
			return apperrors.ErrInternalServer.WithInternal(err)
		}

		token, err := s.tokens.WithTx(tx).IssueActivation(user.ID)
		if err != nil {
			return apperrors.ErrInternalServer.WithInternal(err)
		}
		activation = token
		return nil
	})
	if err != nil {
		metrics.Registrations.WithLabelValues("failure").Inc()
		return nil, err
	}

	metrics.Registrations.WithLabelValues("success").Inc()
	s.sendMailAsync(user, mail.TemplateActivateAccount, activation.Token)

	return user, nil
}

// Login verifies the credentials, collapses all prior refresh tokens for the
// user, and issues a fresh token pair. Unknown emails and wrong passwords
// produce the same error.
func (s *AuthService) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrBadCredentials
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	if !crypto.VerifyPassword(creds.Password, user.Password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrBadCredentials
	}

	var refreshToken *models.RefreshToken
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.refresh.WithTx(tx)
		if err := ledger.RevokeAll(user.ID); err != nil {
			return err
		}

		token, err := ledger.Issue(user.ID)
		if err != nil {
			return err
		}
		refreshToken = token
		return nil
	})
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	response, err := s.buildResponse(&user, refreshToken.Token)
	if err != nil {
		return nil, err
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return response, nil
}

// Refresh rotates the presented refresh token and mints a new access token
// for its owner, returning the same payload shape as Login.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	rotated, err := s.refresh.WithTx(s.db.WithContext(ctx)).Rotate(refreshToken)
	if errors.Is(err, ErrRefreshTokenInvalid) {
		return nil, apperrors.ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, "id = ?", rotated.UserID).Error; err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	return s.buildResponse(&user, rotated.Token)
}

// Logout revokes the presented refresh token. It never fails visibly:
// unknown and already-revoked tokens are treated as successfully logged out.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refresh.WithTx(s.db.WithContext(ctx)).Revoke(refreshToken); err != nil {
		s.log.Warn("logout revoke failed", zap.Error(err))
	}
	return nil
}

// ActivateAccount consumes an activation code and enables the owning user in
// the same transaction. An expired code is self-healing: a replacement code
// is issued and emailed before the expiry error is returned.
func (s *AuthService) ActivateAccount(ctx context.Context, code string) error {
	var expired *models.SingleUseToken

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.tokens.WithTx(tx).Consume(code, models.TokenTypeActivation)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				expired = record
			}
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ?", record.UserID).
			Update("enabled", true).Error
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTokenExpired) && expired != nil {
		if reissueErr := s.reissueActivation(ctx, expired.UserID); reissueErr != nil {
			s.log.Error("reissue activation code failed", zap.Error(reissueErr))
		}
		return apperrors.ErrTokenExpired
	}

	return s.mapTokenError(err)
}

// ResendActivation issues a fresh activation code for a not-yet-enabled
// account and emails it. The lookup failure is reported with the generic
// credentials error to avoid confirming which addresses are registered.
func (s *AuthService) ResendActivation(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrBadCredentials
	}
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	if user.Enabled {
		return apperrors.NewBadRequest("account is already activated")
	}

	return s.reissueActivation(ctx, user.ID)
}

// ForgotPassword issues a password-reset token and emails it. Unknown emails
// produce the generic credentials error to avoid account enumeration.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrBadCredentials
	}
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	token, err := s.tokens.WithTx(s.db.WithContext(ctx)).IssuePasswordReset(user.ID)
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	s.sendMailAsync(&user, mail.TemplateResetPassword, token.Token)
	return nil
}

// ResetPassword consumes a password-reset token and stores the new password
// hash in the same transaction, so the token can never authorise a second
// change.
func (s *AuthService) ResetPassword(ctx context.Context, tokenString, newPassword string) error {
	if newPassword == "" {
		return apperrors.NewBadRequest("new password is required")
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.tokens.WithTx(tx).Consume(tokenString, models.TokenTypePasswordReset)
		if err != nil {
			return err
		}

		return tx.Model(&models.User{}).
			Where("id = ?", record.UserID).
			Update("password_hash", hashed).Error
	})
	if err != nil {
		return s.mapTokenError(err)
	}

	return nil
}

func (s *AuthService) reissueActivation(ctx context.Context, userID string) error {
	var user models.User
	if err := s.db.WithContext(ctx).Take(&user, "id = ?", userID).Error; err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	token, err := s.tokens.WithTx(s.db.WithContext(ctx)).IssueActivation(user.ID)
	if err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}

	s.sendMailAsync(&user, mail.TemplateActivateAccount, token.Token)
	return nil
}

func (s *AuthService) buildResponse(user *models.User, refreshToken string) (*AuthResponse, error) {
	accessToken, err := s.jwt.GenerateAccessToken(AccessTokenInput{
		Email:    user.Email,
		FullName: user.FullName(),
		IsAdmin:  user.IsAdmin,
	})
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		IsAdmin:      user.IsAdmin,
		Email:        user.Email,
		FullName:     user.FullName(),
	}, nil
}

func (s *AuthService) mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenTypeMismatch):
		return apperrors.ErrInvalidToken
	case errors.Is(err, ErrTokenExpired):
		return apperrors.ErrTokenExpired
	case errors.Is(err, ErrTokenConsumed):
		return apperrors.ErrTokenAlreadyUsed
	default:
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return apperrors.ErrInternalServer.WithInternal(err)
	}
}

// sendMailAsync requests delivery without blocking the caller. Failures are
// logged and never roll back the state change that preceded them.
func (s *AuthService) sendMailAsync(user *models.User, template mail.Template, rawToken string) {
	msg := mail.Message{
		To:        user.Email,
		ToName:    user.FullName(),
		Template:  template,
		ActionURL: s.actionURL(template, rawToken),
		Token:     rawToken,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
		defer cancel()

		if err := s.mailer.Send(ctx, msg); err != nil {
			metrics.EmailDispatches.WithLabelValues(string(template), "failure").Inc()
			s.log.Error("send email failed",
				zap.String("template", string(template)),
				zap.String("to", msg.To),
				zap.Error(err))
			return
		}
		metrics.EmailDispatches.WithLabelValues(string(template), "success").Inc()
	}()
}

func (s *AuthService) actionURL(template mail.Template, rawToken string) string {
	if s.baseURL == "" {
		return ""
	}
	switch template {
	case mail.TemplateActivateAccount:
		return fmt.Sprintf("%s/activate-account?token=%s", s.baseURL, rawToken)
	case mail.TemplateResetPassword:
		return fmt.Sprintf("%s/reset-password?token=%s", s.baseURL, rawToken)
	default:
		return s.baseURL
	}
}
