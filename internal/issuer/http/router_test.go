package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/agrilink/internal/issuer/domain"
	issuerhttp "github.com/agrilink/agrilink/internal/issuer/http"
	"github.com/agrilink/agrilink/internal/issuer/service"
	"github.com/agrilink/agrilink/internal/issuer/store/drivers/sqlite"
	"github.com/agrilink/agrilink/pkg/authsdk"
	"github.com/agrilink/agrilink/pkg/cryptox"
	"github.com/agrilink/agrilink/pkg/idx"
	"github.com/agrilink/agrilink/pkg/jwtx"
)

const testIssuer = "https://id.agrilink.internal"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "issuer-http-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type testEnv struct {
	router *issuerhttp.Router
	store  *sqlite.Store
	tokens *service.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "issuer_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  testIssuer,
		NumKeys: 1,
	})
	require.NoError(t, err)

	tokens := &service.TokenService{
		KeyManager: km,
		Store:      s,
		Issuer:     testIssuer,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}

	r := issuerhttp.NewRouter(km.KeySet, km.Verifier, "test", s, slog.Default())
	r.TokenService = tokens
	r.ValidationService = &service.ValidationService{
		Verifier: km.Verifier,
		Store:    s,
	}
	r.ApplyRoutes()

	return &testEnv{router: r, store: s, tokens: tokens}
}

func (e *testEnv) seedUser(t *testing.T, username, password string, roles ...string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Roles:        roles,
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) postJSON(t *testing.T, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	b, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(t *testing.T, path string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeTokens(t *testing.T, rec *httptest.ResponseRecorder) authsdk.TokenResponse {
	t.Helper()

	var out authsdk.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Code string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestLoginEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "freya", "pw", domain.RoleFarmer)

	rec := env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
		Username: "freya",
		Password: "pw",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	pair := decodeTokens(t, rec)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int(jwtx.DefaultAccessTokenTTL.Seconds()), pair.ExpiresIn)
}

func TestLoginEndpointRejections(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "freya", "pw", domain.RoleFarmer)

	t.Run("wrong password", func(t *testing.T) {
		rec := env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
			Username: "freya", Password: "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, authsdk.ErrorCodeInvalidCredentials, errorCode(t, rec))
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{Username: "freya"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, authsdk.ErrorCodeBadRequest, errorCode(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
			bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
			bytes.NewReader([]byte("username=freya&password=pw")))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "freya", "pw", domain.RoleFarmer)

	login := decodeTokens(t, env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
		Username: "freya", Password: "pw",
	}))

	rec := env.postJSON(t, "/v1/auth/refresh", authsdk.RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := decodeTokens(t, rec)
	assert.NotEqual(t, login.RefreshToken, rotated.RefreshToken)

	// Replaying the consumed token is rejected with the revoked code.
	rec = env.postJSON(t, "/v1/auth/refresh", authsdk.RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, authsdk.ErrorCodeRefreshRevoked, errorCode(t, rec))

	// A token that was never issued maps to invalid_token.
	rec = env.postJSON(t, "/v1/auth/refresh", authsdk.RefreshRequest{
		RefreshToken: "never-issued",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, authsdk.ErrorCodeInvalidToken, errorCode(t, rec))
}

func TestLogoutEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "freya", "pw", domain.RoleFarmer)

	login := decodeTokens(t, env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
		Username: "freya", Password: "pw",
	}))

	rec := env.postJSON(t, "/v1/auth/logout", authsdk.LogoutRequest{
		RefreshToken: login.RefreshToken,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Idempotent: logging out again still succeeds.
	rec = env.postJSON(t, "/v1/auth/logout", authsdk.LogoutRequest{
		RefreshToken: login.RefreshToken,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.postJSON(t, "/v1/auth/refresh", authsdk.RefreshRequest{
		RefreshToken: login.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutAllEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.tokens.MultiSession = true
	env.seedUser(t, "freya", "pw", domain.RoleFarmer)

	first := decodeTokens(t, env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
		Username: "freya", Password: "pw",
	}))
	second := decodeTokens(t, env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
		Username: "freya", Password: "pw",
	}))

	// Without a bearer token the endpoint is unreachable.
	rec := env.postJSON(t, "/v1/auth/logout-all", struct{}{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.postJSON(t, "/v1/auth/logout-all", struct{}{},
		"Authorization", "Bearer "+first.AccessToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	for _, token := range []string{first.RefreshToken, second.RefreshToken} {
		rec = env.postJSON(t, "/v1/auth/refresh", authsdk.RefreshRequest{RefreshToken: token})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestJWKSEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/.well-known/jwks.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var jwks jwtx.JWKS
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jwks))
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "RSA", jwks.Keys[0].Kty)
	assert.NotEmpty(t, jwks.Keys[0].N)
	assert.NotContains(t, rec.Body.String(), `"d"`, "private material must never be published")
}

func TestValidateEndpoint(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "freya", "pw", domain.RoleFarmer)

	login := decodeTokens(t, env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
		Username: "freya", Password: "pw",
	}))

	rec := env.postJSON(t, "/internal/v1/validate", authsdk.ValidateRequest{
		Token: login.AccessToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result authsdk.ValidationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, u.ID, result.Subject)

	// Invalid tokens are still a 200, flagged in the body.
	rec = env.postJSON(t, "/internal/v1/validate", authsdk.ValidateRequest{Token: "not.a.jwt"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestUserInfoEndpoint(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "freya", "pw", domain.RoleFarmer)

	login := decodeTokens(t, env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
		Username: "freya", Password: "pw",
	}))

	rec := env.get(t, "/internal/v1/userinfo", "Authorization", "Bearer "+login.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var info authsdk.UserInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, u.ID, info.UserID)
	assert.Equal(t, "freya", info.Username)
	assert.Equal(t, []string{domain.RoleFarmer}, info.Roles)

	rec = env.get(t, "/internal/v1/userinfo")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetUserEndpoint(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "freya", "pw", domain.RoleFarmer)
	env.seedUser(t, "root", "pw", domain.RoleAdmin)

	admin := decodeTokens(t, env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
		Username: "root", Password: "pw",
	}))

	rec := env.get(t, "/internal/v1/users/"+u.ID,
		"Authorization", "Bearer "+admin.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var info authsdk.UserInfoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "freya", info.Username)

	rec = env.get(t, "/internal/v1/users/missing",
		"Authorization", "Bearer "+admin.AccessToken)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, authsdk.ErrorCodeNotFound, errorCode(t, rec))
}

func TestGetUserEndpointRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	u := env.seedUser(t, "freya", "pw", domain.RoleFarmer)

	t.Run("no bearer", func(t *testing.T) {
		rec := env.get(t, "/internal/v1/users/"+u.ID)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-admin caller", func(t *testing.T) {
		farmer := decodeTokens(t, env.postJSON(t, "/v1/auth/login", authsdk.LoginRequest{
			Username: "freya", Password: "pw",
		}))

		rec := env.get(t, "/internal/v1/users/"+u.ID,
			"Authorization", "Bearer "+farmer.AccessToken)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, authsdk.ErrorCodeForbidden, errorCode(t, rec))
	})
}

func TestLivezEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/livez")
	require.Equal(t, http.StatusOK, rec.Code)

	var health authsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestReadyzEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)

	var health authsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	require.NotNil(t, health.Checks)
	assert.Equal(t, "ok", health.Checks.Database)
	assert.Equal(t, "ok", health.Checks.Signer)
}

func TestRequestIDHeaderEchoed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/livez")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
