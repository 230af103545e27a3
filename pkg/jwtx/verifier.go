package jwtx

import (
	"context"
	"errors"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
// The context bounds any key lookup the verifier has to make (remote key
// sets fetch over the network on a cache miss).
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrMissingKID = errors.New("jwtx: missing kid")
	ErrUnknownKID = errors.New("jwtx: unknown kid")
	ErrInvalidSig = errors.New("jwtx: invalid signature")

	ErrIssuer       = errors.New("jwtx: issuer mismatch")
	ErrExpired      = errors.New("jwtx: token expired")
	ErrNotYetValid  = errors.New("jwtx: token not yet valid")
	ErrInvalidClaim = errors.New("jwtx: invalid claims")

	// ErrUpstream means the key source itself failed (JWKS fetch error or
	// timeout), as opposed to a definitive unknown kid. Callers fail closed
	// either way, but edges report it as an upstream fault, not a 401.
	ErrUpstream = errors.New("jwtx: key source unavailable")
)
