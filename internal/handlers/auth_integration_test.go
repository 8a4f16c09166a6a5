package handlers_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/epicgather/epicgather/internal/handlers/testutil"
	"github.com/epicgather/epicgather/internal/models"
)

func registerPayload(email string) map[string]string {
	return map[string]string{
		"first_name":    "Ada",
		"last_name":     "Lovelace",
		"email":         email,
		"password":      "secret-password",
		"date_of_birth": "1990-06-15",
		"gender":        "FEMALE",
	}
}

func TestAuthHandler_RegisterActivateLogin(t *testing.T) {
	env := testutil.NewEnv(t)
	email := "ada-" + uuid.NewString() + "@example.com"

	w := env.Request(http.MethodPost, "/api/auth/register", registerPayload(email), "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var user models.User
	require.NoError(t, env.DB.Where("email = ?", email).First(&user).Error)
	require.False(t, user.Enabled)

	code := env.ActivationCode(email)
	require.Len(t, code, 6)

	w = env.Request(http.MethodPost, "/api/auth/activate-account", map[string]string{"token": code}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, env.DB.Where("email = ?", email).First(&user).Error)
	require.True(t, user.Enabled)

	login := env.Login(email, "secret-password")
	require.Equal(t, email, login.Email)
	require.Equal(t, "Ada Lovelace", login.FullName)
	require.False(t, login.IsAdmin)
}

func TestAuthHandler_RegisterDuplicateEmail(t *testing.T) {
	env := testutil.NewEnv(t)
	email := "dup-" + uuid.NewString() + "@example.com"

	w := env.Request(http.MethodPost, "/api/auth/register", registerPayload(email), "")
	require.Equal(t, http.StatusAccepted, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/register", registerPayload(email), "")
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "EMAIL_ALREADY_EXISTS", resp.Error.Code)
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	payload := map[string]string{
		"first_name": "Ada",
		"email":      "not-an-email",
		"password":   "short",
	}

	w := env.Request(http.MethodPost, "/api/auth/register", payload, "")
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestAuthHandler_LoginBadCredentials(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("correct-password")

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    user.Email,
		"password": "wrong-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "BAD_CREDENTIALS", testutil.DecodeResponse(t, w).Error.Code)

	// Unknown emails produce the identical response.
	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "nobody-" + uuid.NewString() + "@example.com",
		"password": "whatever-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "BAD_CREDENTIALS", testutil.DecodeResponse(t, w).Error.Code)
}

func TestAuthHandler_RefreshRotation(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("secret-password")
	login := env.Login(user.Email, "secret-password")

	w := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rotated testutil.AuthPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &rotated)
	require.NotEmpty(t, rotated.Token)
	require.NotEmpty(t, rotated.RefreshToken)
	require.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// The consumed token is gone for good.
	w = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())

	// The replacement still works.
	w = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": rotated.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAuthHandler_LogoutRevokesRefreshToken(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("secret-password")
	login := env.Login(user.Email, "secret-password")

	w := env.Request(http.MethodPost, "/api/auth/logout", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// Logging out twice is harmless.
	w = env.Request(http.MethodPost, "/api/auth/logout", map[string]string{
		"refresh_token": login.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_PasswordResetFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("old-password-123")

	w := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": user.Email,
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	token := env.ResetToken(user.Email)
	require.NotEmpty(t, token)

	w = env.Request(http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token":        token,
		"new_password": "new-password-456",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Old password no longer works, new one does.
	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    user.Email,
		"password": "old-password-123",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	env.Login(user.Email, "new-password-456")

	// The reset token is single use.
	w = env.Request(http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token":        token,
		"new_password": "another-password",
	}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
}

func TestAuthHandler_ProtectedRoutes(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("secret-password")

	w := env.Request(http.MethodGet, "/api/users/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	login := env.Login(user.Email, "secret-password")
	w = env.Request(http.MethodGet, "/api/users/me", nil, login.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var me map[string]any
	testutil.DecodeInto(t, testutil.DecodeResponse(t, w).Data, &me)
	require.Equal(t, user.Email, me["email"])
}
