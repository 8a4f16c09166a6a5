package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/database/testutil"
	"github.com/epicgather/epicgather/internal/models"
	"github.com/epicgather/epicgather/pkg/crypto"
	apperrors "github.com/epicgather/epicgather/pkg/errors"
	"github.com/epicgather/epicgather/pkg/mail"
)

func TestRegisterCreatesDisabledUserWithActivationToken(t *testing.T) {
	f := setupAuthService(t)

	user, err := f.svc.Register(context.Background(), validRegisterInput("jane@example.com"))
	require.NoError(t, err)
	require.Equal(t, "jane@example.com", user.Email)
	require.False(t, user.Enabled)
	require.NotEqual(t, "secret-password", user.Password)

	var tokens []models.SingleUseToken
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Find(&tokens).Error)
	require.Len(t, tokens, 1)
	require.Equal(t, models.TokenTypeActivation, tokens[0].Type)
	require.True(t, tokens[0].ExpiresAt.Equal(f.clock.Now().Add(15*time.Minute)))

	msg := f.mailer.waitForMessage(t)
	require.Equal(t, "jane@example.com", msg.To)
	require.Equal(t, mail.TemplateActivateAccount, msg.Template)
	require.Equal(t, tokens[0].Token, msg.Token)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	f := setupAuthService(t)

	input := validRegisterInput("  Jane.Doe@Example.COM ")
	user, err := f.svc.Register(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "jane.doe@example.com", user.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := setupAuthService(t)

	_, err := f.svc.Register(context.Background(), validRegisterInput("dup@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Register(context.Background(), validRegisterInput("dup@example.com"))
	require.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Where("email = ?", "dup@example.com").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	f := setupAuthService(t)

	const attempts = 4
	errs := make([]error, attempts)

	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), validRegisterInput("contended@example.com"))
		}(i)
	}
	wg.Wait()

	// The unique index arbitrates: one registration wins, the rest see the
	// duplicate-email error.
	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.ErrorIs(t, err, apperrors.ErrEmailAlreadyExists)
	}
	require.Equal(t, 1, successes)

	var count int64
	require.NoError(t, f.db.Model(&models.User{}).Where("email = ?", "contended@example.com").Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRegisterUnderage(t *testing.T) {
	f := setupAuthService(t)

	input := validRegisterInput("kid@example.com")
	input.DateOfBirth = f.clock.Now().AddDate(-12, 0, 0)

	_, err := f.svc.Register(context.Background(), input)
	require.ErrorIs(t, err, apperrors.ErrInvalidAge)
}

func TestRegisterInvalidGender(t *testing.T) {
	f := setupAuthService(t)

	input := validRegisterInput("gender@example.com")
	input.Gender = "UNKNOWN"

	_, err := f.svc.Register(context.Background(), input)
	require.ErrorIs(t, err, apperrors.ErrInvalidGender)
}

func TestLoginIssuesTokenPair(t *testing.T) {
	f := setupAuthService(t)
	user := registerAndActivate(t, f, "login@example.com")

	resp, err := f.svc.Login(context.Background(), Credentials{Email: "login@example.com", Password: "secret-password"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, user.Email, resp.Email)
	require.Equal(t, user.FullName(), resp.FullName)
	require.False(t, resp.IsAdmin)

	claims, err := f.jwt.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.Email, claims.Subject)
	require.Equal(t, user.FullName(), claims.FullName)
}

func TestLoginRevokesPriorRefreshTokens(t *testing.T) {
	f := setupAuthService(t)
	registerAndActivate(t, f, "sessions@example.com")

	first, err := f.svc.Login(context.Background(), Credentials{Email: "sessions@example.com", Password: "secret-password"})
	require.NoError(t, err)

	second, err := f.svc.Login(context.Background(), Credentials{Email: "sessions@example.com", Password: "secret-password"})
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The earlier lineage is dead; only the latest token still rotates.
	_, err = f.svc.Refresh(context.Background(), first.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)

	_, err = f.svc.Refresh(context.Background(), second.RefreshToken)
	require.NoError(t, err)
}

func TestLoginBadCredentials(t *testing.T) {
	f := setupAuthService(t)
	registerAndActivate(t, f, "creds@example.com")

	_, err := f.svc.Login(context.Background(), Credentials{Email: "creds@example.com", Password: "wrong"})
	require.ErrorIs(t, err, apperrors.ErrBadCredentials)

	// Unknown emails fail identically to wrong passwords.
	_, err = f.svc.Login(context.Background(), Credentials{Email: "ghost@example.com", Password: "secret-password"})
	require.ErrorIs(t, err, apperrors.ErrBadCredentials)
}

func TestRefreshRotatesToken(t *testing.T) {
	f := setupAuthService(t)
	registerAndActivate(t, f, "refresh@example.com")

	login, err := f.svc.Login(context.Background(), Credentials{Email: "refresh@example.com", Password: "secret-password"})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	refreshed, err := f.svc.Refresh(context.Background(), login.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	require.Equal(t, login.Email, refreshed.Email)

	_, err = f.svc.Refresh(context.Background(), login.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}

func TestRefreshExpiredToken(t *testing.T) {
	f := setupAuthService(t)
	registerAndActivate(t, f, "refresh-expired@example.com")

	login, err := f.svc.Login(context.Background(), Credentials{Email: "refresh-expired@example.com", Password: "secret-password"})
	require.NoError(t, err)

	f.clock.Advance(8 * 24 * time.Hour)

	_, err = f.svc.Refresh(context.Background(), login.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := setupAuthService(t)
	registerAndActivate(t, f, "logout@example.com")

	login, err := f.svc.Login(context.Background(), Credentials{Email: "logout@example.com", Password: "secret-password"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), login.RefreshToken))
	require.NoError(t, f.svc.Logout(context.Background(), login.RefreshToken))
	require.NoError(t, f.svc.Logout(context.Background(), "unknown-token"))

	_, err = f.svc.Refresh(context.Background(), login.RefreshToken)
	require.ErrorIs(t, err, apperrors.ErrInvalidRefreshToken)
}

func TestActivateAccountEnablesUser(t *testing.T) {
	f := setupAuthService(t)

	user, err := f.svc.Register(context.Background(), validRegisterInput("activate@example.com"))
	require.NoError(t, err)

	var token models.SingleUseToken
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Take(&token).Error)

	require.NoError(t, f.svc.ActivateAccount(context.Background(), token.Token))

	var reloaded models.User
	require.NoError(t, f.db.Take(&reloaded, "id = ?", user.ID).Error)
	require.True(t, reloaded.Enabled)

	// Replaying the same code must fail.
	err = f.svc.ActivateAccount(context.Background(), token.Token)
	require.ErrorIs(t, err, apperrors.ErrTokenAlreadyUsed)
}

func TestActivateAccountExpiredCodeSpawnsReplacement(t *testing.T) {
	f := setupAuthService(t)

	user, err := f.svc.Register(context.Background(), validRegisterInput("expired-code@example.com"))
	require.NoError(t, err)

	var token models.SingleUseToken
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Take(&token).Error)

	f.clock.Advance(16 * time.Minute)

	err = f.svc.ActivateAccount(context.Background(), token.Token)
	require.ErrorIs(t, err, apperrors.ErrTokenExpired)

	var reloaded models.User
	require.NoError(t, f.db.Take(&reloaded, "id = ?", user.ID).Error)
	require.False(t, reloaded.Enabled)

	// A fresh code with a new validity window now exists.
	var tokens []models.SingleUseToken
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Order("created_at").Find(&tokens).Error)
	require.Len(t, tokens, 2)
	require.NotEqual(t, tokens[0].Token, tokens[1].Token)
	require.True(t, tokens[1].ExpiresAt.Equal(f.clock.Now().Add(15*time.Minute)))

	require.NoError(t, f.svc.ActivateAccount(context.Background(), tokens[1].Token))
}

func TestActivateAccountUnknownCode(t *testing.T) {
	f := setupAuthService(t)

	err := f.svc.ActivateAccount(context.Background(), "000000")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestResendActivation(t *testing.T) {
	f := setupAuthService(t)

	user, err := f.svc.Register(context.Background(), validRegisterInput("resend@example.com"))
	require.NoError(t, err)
	f.mailer.waitForMessage(t)

	require.NoError(t, f.svc.ResendActivation(context.Background(), "resend@example.com"))

	var tokens []models.SingleUseToken
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Find(&tokens).Error)
	require.Len(t, tokens, 2)

	require.ErrorIs(t, f.svc.ResendActivation(context.Background(), "ghost@example.com"), apperrors.ErrBadCredentials)
}

func TestForgotPasswordIssuesResetToken(t *testing.T) {
	f := setupAuthService(t)
	user := registerAndActivate(t, f, "forgot@example.com")

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "forgot@example.com"))

	var token models.SingleUseToken
	require.NoError(t, f.db.
		Where("user_id = ? AND type = ?", user.ID, models.TokenTypePasswordReset).
		Take(&token).Error)
	require.Nil(t, token.ValidatedAt)

	msg := f.mailer.waitForMessage(t)
	require.Equal(t, mail.TemplateResetPassword, msg.Template)
	require.Equal(t, token.Token, msg.Token)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := setupAuthService(t)

	err := f.svc.ForgotPassword(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, apperrors.ErrBadCredentials)
}

func TestResetPasswordChangesCredential(t *testing.T) {
	f := setupAuthService(t)
	user := registerAndActivate(t, f, "reset-pw@example.com")

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "reset-pw@example.com"))

	var token models.SingleUseToken
	require.NoError(t, f.db.
		Where("user_id = ? AND type = ?", user.ID, models.TokenTypePasswordReset).
		Take(&token).Error)

	require.NoError(t, f.svc.ResetPassword(context.Background(), token.Token, "brand-new-password"))

	_, err := f.svc.Login(context.Background(), Credentials{Email: "reset-pw@example.com", Password: "secret-password"})
	require.ErrorIs(t, err, apperrors.ErrBadCredentials)

	_, err = f.svc.Login(context.Background(), Credentials{Email: "reset-pw@example.com", Password: "brand-new-password"})
	require.NoError(t, err)

	// The token authorised exactly one change.
	err = f.svc.ResetPassword(context.Background(), token.Token, "another-password")
	require.ErrorIs(t, err, apperrors.ErrTokenAlreadyUsed)
}

func TestResetPasswordWithActivationToken(t *testing.T) {
	f := setupAuthService(t)

	user, err := f.svc.Register(context.Background(), validRegisterInput("cross-type@example.com"))
	require.NoError(t, err)

	var token models.SingleUseToken
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Take(&token).Error)

	err = f.svc.ResetPassword(context.Background(), token.Token, "new-password")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

type authFixture struct {
	db     *gorm.DB
	svc    *AuthService
	jwt    *JWTService
	clock  *testClock
	mailer *recordingMailer
}

func setupAuthService(t *testing.T) *authFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	clock := &testClock{current: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)}

	jwtService, err := NewJWTService(JWTConfig{
		Secret: "auth-secret",
		Clock:  clock.Now,
	})
	require.NoError(t, err)

	refreshService, err := NewRefreshService(db, RefreshConfig{Clock: clock.Now})
	require.NoError(t, err)

	tokenService, err := NewTokenService(db, TokenConfig{Clock: clock.Now})
	require.NoError(t, err)

	mailer := newRecordingMailer()

	svc, err := NewAuthService(db, jwtService, refreshService, tokenService, mailer, AuthConfig{
		BaseURL: "https://epicgather.test",
		Clock:   clock.Now,
	})
	require.NoError(t, err)

	return &authFixture{
		db:     db,
		svc:    svc,
		jwt:    jwtService,
		clock:  clock,
		mailer: mailer,
	}
}

func validRegisterInput(email string) RegisterInput {
	return RegisterInput{
		FirstName:   "Jane",
		LastName:    "Doe",
		Email:       email,
		Password:    "secret-password",
		DateOfBirth: time.Date(1990, 6, 15, 0, 0, 0, 0, time.UTC),
		Gender:      "FEMALE",
	}
}

func registerAndActivate(t *testing.T, f *authFixture, email string) *models.User {
	t.Helper()

	user, err := f.svc.Register(context.Background(), validRegisterInput(email))
	require.NoError(t, err)

	var token models.SingleUseToken
	require.NoError(t, f.db.Where("user_id = ?", user.ID).Take(&token).Error)
	require.NoError(t, f.svc.ActivateAccount(context.Background(), token.Token))

	var reloaded models.User
	require.NoError(t, f.db.Take(&reloaded, "id = ?", user.ID).Error)
	return &reloaded
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hashed, err := crypto.HashPassword("password")
	require.NoError(t, err)

	user := &models.User{
		FirstName:   "Test",
		LastName:    "User",
		Email:       email,
		Password:    hashed,
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
		Gender:      models.GenderFemale,
		Enabled:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

type recordingMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	notify   chan mail.Message
}

func newRecordingMailer() *recordingMailer {
	return &recordingMailer{notify: make(chan mail.Message, 16)}
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	m.notify <- msg
	return nil
}

func (m *recordingMailer) waitForMessage(t *testing.T) mail.Message {
	t.Helper()

	select {
	case msg := <-m.notify:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for email dispatch")
		return mail.Message{}
	}
}

type testClock struct {
	current time.Time
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}
