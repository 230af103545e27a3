package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agrilink/agrilink/internal/issuer/domain"
	"github.com/agrilink/agrilink/internal/issuer/store"
	"github.com/agrilink/agrilink/pkg/cryptox"
	"github.com/agrilink/agrilink/pkg/idx"
	"github.com/agrilink/agrilink/pkg/jwtx"
	"github.com/agrilink/agrilink/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// Refresh failures are distinguished so the HTTP layer can report a
	// structured reason: a revoked token is a different situation (possible
	// theft, lost rotation race) from an expired or unknown one.
	ErrInvalidRefresh = errors.New("invalid_refresh_token")
	ErrRefreshRevoked = errors.New("refresh_token_revoked")
	ErrRefreshExpired = errors.New("refresh_token_expired")
)

type TokenService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// MultiSession allows several live refresh tokens per user. When false
	// (the default policy), issuing a new refresh token revokes all other
	// active tokens for that user in the same transaction.
	MultiSession bool
}

// Login verifies a username/password pair and mints a fresh token pair.
func (s *TokenService) Login(
	ctx context.Context,
	username, password string,
) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		l.Info("password verification failed", slog.String("username", username))
		return nil, ErrInvalidCredentials
	}

	accessToken, err := s.signAccess(u, now)
	if err != nil {
		return nil, err
	}

	refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	refresh := domain.RefreshToken{
		ID:        idx.New().String(),
		UserID:    u.ID,
		TokenHash: cryptox.FingerprintToken(refreshOpaque),
		ExpiresAt: now.Add(s.RefreshTTL),
		Revoked:   false,
	}

	// Single-session policy: displacing sibling sessions must be atomic with
	// storing the new token, or a crash in between leaves the user locked out.
	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if !s.MultiSession {
			if err := tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, u.ID); err != nil {
				return err
			}
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, refresh)
	}); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshOpaque,
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// Refresh rotates a refresh token: the presented token is atomically consumed
// and a new pair is minted. Under concurrent refreshes of the same token the
// conditional revocation's affected-row count picks exactly one winner; every
// other caller gets ErrRefreshRevoked.
func (s *TokenService) Refresh(
	ctx context.Context,
	refreshOpaque string,
) (*domain.TokenPair, error) {
	now := time.Now()

	fp := cryptox.FingerprintToken(refreshOpaque)

	newRefreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}

	var result *domain.TokenPair

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if rt.Revoked {
			return ErrRefreshRevoked
		}
		if now.After(rt.ExpiresAt) {
			return ErrRefreshExpired
		}

		// The compare-and-swap: zero affected rows means a concurrent
		// rotation already consumed this token.
		if err := tx.RefreshTokens().ConsumeRefreshToken(ctx, fp); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrRefreshRevoked
			}
			return err
		}

		u, err := tx.Users().GetUserByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		accessToken, err := s.signAccess(u, now)
		if err != nil {
			return err
		}

		newRT := domain.RefreshToken{
			ID:        idx.New().String(),
			UserID:    u.ID,
			TokenHash: cryptox.FingerprintToken(newRefreshOpaque),
			ExpiresAt: now.Add(s.RefreshTTL),
			Revoked:   false,
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, newRT); err != nil {
			return err
		}

		result = &domain.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: newRefreshOpaque,
			ExpiresIn:    s.AccessTTL,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// RevokeRefreshToken revokes a single refresh token (by its opaque value).
// Revoking an unknown or already-revoked token is not an error, so logout is
// idempotent.
func (s *TokenService) RevokeRefreshToken(ctx context.Context, refreshOpaque string) error {
	fp := cryptox.FingerprintToken(refreshOpaque)
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, fp)
}

// RevokeAllForUser revokes every active refresh token belonging to a user.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	return s.Store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
}

func (s *TokenService) signAccess(u domain.User, now time.Time) (string, error) {
	claims := jwtx.NewAccessClaims(
		u.ID,        // subject
		u.Username,  // username
		u.Roles,     // roles
		s.AccessTTL, // token lifetime
		s.Issuer,    // issuer
		now,         // current time
	)
	// Use GetSigner() to distribute signing across the published kids
	signer := s.KeyManager.GetSigner()
	return signer.Sign(claims)
}
