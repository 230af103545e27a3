package service

import (
	"context"
	"errors"

	"github.com/agrilink/agrilink/internal/issuer/domain"
	"github.com/agrilink/agrilink/internal/issuer/store"
	"github.com/agrilink/agrilink/pkg/authsdk"
	"github.com/agrilink/agrilink/pkg/jwtx"
	"github.com/agrilink/agrilink/pkg/slogx"
)

// ErrUserNotFound is returned for lookups of accounts that don't exist.
var ErrUserNotFound = errors.New("user_not_found")

// ValidationService answers internal token validation and user lookup
// requests from other platform services. It wraps the same jwtx.Verifier the
// rest of the issuer uses, so there is a single verification code path.
type ValidationService struct {
	Verifier jwtx.Verifier
	Store    store.Store
}

// ValidateToken checks a raw access token and returns a structured result.
// Invalid tokens are a normal outcome here, not an error: the result carries
// Valid=false and a generic reason without claim detail.
func (s *ValidationService) ValidateToken(ctx context.Context, token string) authsdk.ValidationResult {
	claims, err := s.Verifier.Verify(ctx, token)
	if err != nil {
		l := slogx.FromContext(ctx)
		l.Debug("token validation failed", "err", err)

		return authsdk.ValidationResult{
			Valid:        false,
			ErrorMessage: "token verification failed",
		}
	}

	return authsdk.ValidationResult{
		Valid:    true,
		Subject:  claims.Subject,
		Username: claims.Username,
		Roles:    claims.Roles,
	}
}

// GetUserInfo resolves the account behind a valid access token. Roles come
// from the store, not the token, so recently granted or removed roles are
// reflected before the token expires.
func (s *ValidationService) GetUserInfo(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.Verifier.Verify(ctx, token)
	if err != nil {
		return domain.User{}, err
	}

	return s.GetUserByID(ctx, claims.Subject)
}

// GetUserByID fetches an account by id.
func (s *ValidationService) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}
