package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/epicgather/epicgather/internal/api"
	iauth "github.com/epicgather/epicgather/internal/auth"
	sharedtestutil "github.com/epicgather/epicgather/internal/database/testutil"
	"github.com/epicgather/epicgather/internal/models"
	"github.com/epicgather/epicgather/pkg/crypto"
	"github.com/epicgather/epicgather/pkg/mail"
	"github.com/epicgather/epicgather/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database
// for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Auth   *iauth.AuthService
	Mailer *CaptureMailer
}

// CaptureMailer records outbound messages instead of dialing SMTP. Sends are
// asynchronous in the auth service, so access is guarded by a mutex.
type CaptureMailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *CaptureMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a snapshot of everything sent so far.
func (m *CaptureMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mail.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// NewEnv provisions a fresh handler test environment with migrations and seed
// data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	refreshSvc, err := iauth.NewRefreshService(db, iauth.RefreshConfig{})
	require.NoError(t, err)

	tokenSvc, err := iauth.NewTokenService(db, iauth.TokenConfig{})
	require.NoError(t, err)

	mailer := &CaptureMailer{}

	authSvc, err := iauth.NewAuthService(db, jwtSvc, refreshSvc, tokenSvc, mailer, iauth.AuthConfig{
		BaseURL: "http://localhost:3000",
	})
	require.NoError(t, err)

	router, err := api.NewRouter(db, jwtSvc, authSvc)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Auth:   authSvc,
		Mailer: mailer,
	}
}

// CreateAdmin inserts an enabled admin user directly into the store and
// returns it alongside the plaintext password.
func (e *Env) CreateAdmin(password string) *models.User {
	e.T.Helper()
	return e.createUser(password, true)
}

// CreateUser inserts an enabled regular user directly into the store.
func (e *Env) CreateUser(password string) *models.User {
	e.T.Helper()
	return e.createUser(password, false)
}

func (e *Env) createUser(password string, admin bool) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	user := &models.User{
		FirstName:   "Test",
		LastName:    "User",
		Email:       "user-" + uuid.NewString() + "@example.com",
		Password:    hashed,
		DateOfBirth: time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC),
		Gender:      models.GenderPreferNotToSay,
		IsAdmin:     admin,
		Enabled:     true,
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// ActivationCode fetches the most recent unconsumed activation code issued to
// the given email.
func (e *Env) ActivationCode(email string) string {
	e.T.Helper()
	return e.latestToken(email, models.TokenTypeActivation)
}

// ResetToken fetches the most recent unconsumed password-reset token issued to
// the given email.
func (e *Env) ResetToken(email string) string {
	e.T.Helper()
	return e.latestToken(email, models.TokenTypePasswordReset)
}

func (e *Env) latestToken(email string, tokenType models.TokenType) string {
	e.T.Helper()

	var user models.User
	require.NoError(e.T, e.DB.Where("email = ?", email).First(&user).Error)

	var token models.SingleUseToken
	err := e.DB.
		Where("user_id = ? AND type = ? AND validated_at IS NULL", user.ID, tokenType).
		Order("created_at DESC").
		First(&token).Error
	require.NoError(e.T, err)
	return token.Token
}

// AuthPayload mirrors the handler login/refresh response payload.
type AuthPayload struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	IsAdmin      bool   `json:"is_admin"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
}

// Login authenticates with the given credentials and returns the issued pair.
func (e *Env) Login(email, password string) AuthPayload {
	e.T.Helper()

	payload := map[string]string{"email": email, "password": password}
	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result AuthPayload
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Token)
	require.NotEmpty(e.T, result.RefreshToken)
	return result
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON
// encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
