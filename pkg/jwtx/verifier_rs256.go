package jwtx

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// RS256Verifier validates JWTs signed using RS256. Keys come from a
// KeySource, so the same implementation serves the issuer (local KeySet)
// and the edge (cached remote key set).
type RS256Verifier struct {
	keys   KeySource
	issuer string
}

// NewVerifierRS256 creates a verifier over a KeySource of RSA public keys.
func NewVerifierRS256(keys KeySource, issuer string) *RS256Verifier {
	return &RS256Verifier{keys: keys, issuer: issuer}
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *RS256Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))

	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		// Need the kid to know which key to use
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMissingKID
		}

		pub, err := v.keys.Get(ctx, kid)
		if err != nil {
			switch {
			case errors.Is(err, ErrNoKey):
				return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
			case errors.Is(err, ErrUnknownKID), errors.Is(err, ErrUpstream):
				// KeySource already classified the failure.
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
			}
		}
		return pub, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaim
	}

	// Now check all the claim requirements
	if err := claims.ValidateIssuer(v.issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiry(); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, ErrInvalidClaim
	}

	return claims, nil
}

// mapParseError collapses the jwt library's error chain onto our sentinel
// values so callers can decide status codes with errors.Is.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, ErrMissingKID),
		errors.Is(err, ErrUnknownKID),
		errors.Is(err, ErrUpstream):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrNotYetValid, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidSig, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	default:
		return fmt.Errorf("%w: %w", ErrInvalidClaim, err)
	}
}
