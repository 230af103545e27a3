package service_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/agrilink/internal/issuer/domain"
	"github.com/agrilink/agrilink/internal/issuer/service"
	"github.com/agrilink/agrilink/internal/issuer/store"
	"github.com/agrilink/agrilink/internal/issuer/store/drivers/sqlite"
	"github.com/agrilink/agrilink/pkg/cryptox"
	"github.com/agrilink/agrilink/pkg/idx"
	"github.com/agrilink/agrilink/pkg/jwtx"
)

const testIssuer = "https://id.agrilink.internal"

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "issuer-service-test")
	if err != nil {
		panic(err)
	}
	cryptox.SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "issuer_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTokenService(t *testing.T, s store.Store) *service.TokenService {
	t.Helper()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  testIssuer,
		NumKeys: 1,
	})
	require.NoError(t, err)

	return &service.TokenService{
		KeyManager: km,
		Store:      s,
		Issuer:     testIssuer,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}
}

func seedUser(t *testing.T, s store.Store, username, password string, roles ...string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	u := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Roles:        roles,
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestLoginSuccess(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)
	u := seedUser(t, s, "freya", "correct horse battery", domain.RoleFarmer)

	pair, err := svc.Login(context.Background(), "freya", "correct horse battery")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, svc.AccessTTL, pair.ExpiresIn)

	// The minted access token verifies locally and carries the identity.
	claims, err := svc.KeyManager.Verifier.Verify(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, "freya", claims.Username)
	assert.Equal(t, []string{domain.RoleFarmer}, claims.Roles)

	// The refresh token is stored by fingerprint, never in the clear.
	rt, err := s.RefreshTokens().GetRefreshTokenByHash(
		context.Background(), cryptox.FingerprintToken(pair.RefreshToken))
	require.NoError(t, err)
	assert.Equal(t, u.ID, rt.UserID)
	assert.NotEqual(t, pair.RefreshToken, rt.TokenHash)
}

func TestLoginInvalidCredentials(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)
	seedUser(t, s, "freya", "correct horse battery", domain.RoleFarmer)

	_, err := svc.Login(context.Background(), "freya", "wrong password")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	// Unknown users get the same error as wrong passwords.
	_, err = svc.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestLoginSingleSessionRevokesSiblings(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)
	seedUser(t, s, "freya", "pw", domain.RoleFarmer)

	first, err := svc.Login(context.Background(), "freya", "pw")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "freya", "pw")
	require.NoError(t, err)

	// The first session's refresh token was displaced by the second login.
	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, service.ErrRefreshRevoked)
}

func TestLoginMultiSessionKeepsSiblings(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)
	svc.MultiSession = true
	seedUser(t, s, "freya", "pw", domain.RoleFarmer)

	first, err := svc.Login(context.Background(), "freya", "pw")
	require.NoError(t, err)
	_, err = svc.Login(context.Background(), "freya", "pw")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRotates(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)
	u := seedUser(t, s, "freya", "pw", domain.RoleFarmer)

	pair, err := svc.Login(context.Background(), "freya", "pw")
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	claims, err := svc.KeyManager.Verifier.Verify(context.Background(), rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)

	// The consumed token cannot be replayed.
	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, service.ErrRefreshRevoked)

	// The rotated token works.
	_, err = svc.Refresh(context.Background(), rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshUnknownToken(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)

	_, err := svc.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, service.ErrInvalidRefresh)
}

func TestRefreshExpiredToken(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)
	u := seedUser(t, s, "freya", "pw", domain.RoleFarmer)

	opaque := cryptox.MustGenerateToken(cryptox.TokenSize256)
	require.NoError(t, s.RefreshTokens().CreateRefreshToken(context.Background(), domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(opaque),
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, err := svc.Refresh(context.Background(), opaque)
	assert.ErrorIs(t, err, service.ErrRefreshExpired)
}

func TestConcurrentRefreshExactlyOneWinner(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)
	seedUser(t, s, "freya", "pw", domain.RoleFarmer)

	pair, err := svc.Login(context.Background(), "freya", "pw")
	require.NoError(t, err)

	const contenders = 8
	var successes atomic.Int64
	var wg sync.WaitGroup

	start := make(chan struct{})
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := svc.Refresh(context.Background(), pair.RefreshToken); err == nil {
				successes.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, successes.Load(), "exactly one concurrent refresh may succeed")
}

func TestRevokeRefreshTokenIdempotent(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)
	seedUser(t, s, "freya", "pw", domain.RoleFarmer)

	pair, err := svc.Login(context.Background(), "freya", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeRefreshToken(context.Background(), pair.RefreshToken))
	// Logout twice, and with garbage, stays quiet.
	require.NoError(t, svc.RevokeRefreshToken(context.Background(), pair.RefreshToken))
	require.NoError(t, svc.RevokeRefreshToken(context.Background(), "never-issued"))

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, service.ErrRefreshRevoked)
}

func TestRevokeAllForUser(t *testing.T) {
	s := newTestStore(t)
	svc := newTokenService(t, s)
	svc.MultiSession = true
	u := seedUser(t, s, "freya", "pw", domain.RoleFarmer)

	first, err := svc.Login(context.Background(), "freya", "pw")
	require.NoError(t, err)
	second, err := svc.Login(context.Background(), "freya", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAllForUser(context.Background(), u.ID))

	_, err = svc.Refresh(context.Background(), first.RefreshToken)
	assert.ErrorIs(t, err, service.ErrRefreshRevoked)
	_, err = svc.Refresh(context.Background(), second.RefreshToken)
	assert.ErrorIs(t, err, service.ErrRefreshRevoked)
}
