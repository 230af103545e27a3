package proxy

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/agrilink/agrilink/pkg/authsdk"
	"github.com/agrilink/agrilink/pkg/httpx"
	"github.com/agrilink/agrilink/pkg/jwtx"
	"github.com/agrilink/agrilink/pkg/slogx"
)

// AuthFilter is the gateway's single authentication choke point. It verifies
// the bearer token on every non-public request, injects identity headers for
// the upstream, and reverse-proxies the result.
//
// Requests to public prefixes (and everything when Disabled is set) skip
// verification but still have inbound identity headers stripped.
type AuthFilter struct {
	Verifier jwtx.Verifier

	// PublicPrefixes lists path prefixes that are forwarded without a token.
	PublicPrefixes []string

	// Disabled turns off verification entirely. Identity headers are still
	// stripped so upstreams never see forged values.
	Disabled bool

	proxy *httputil.ReverseProxy
}

// NewAuthFilter builds a filter proxying to the given upstream base URL.
func NewAuthFilter(upstream *url.URL, verifier jwtx.Verifier) *AuthFilter {
	return &AuthFilter{
		Verifier: verifier,
		proxy:    httputil.NewSingleHostReverseProxy(upstream),
	}
}

func (f *AuthFilter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	StripIdentityHeaders(r)

	if f.Disabled || f.isPublic(r.URL.Path) {
		f.proxy.ServeHTTP(w, r)
		return
	}

	token, ok := httpx.BearerToken(r)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized,
			authsdk.ErrorCodeInvalidToken, "bearer token required")
		return
	}

	claims, err := f.Verifier.Verify(r.Context(), token)
	if err != nil {
		log := slogx.FromContext(r.Context())
		if errors.Is(err, jwtx.ErrUpstream) {
			log.Error("jwks fetch failed", "err", err)
			httpx.WriteError(w, http.StatusServiceUnavailable,
				authsdk.ErrorCodeUpstreamUnavailable, "key source unavailable")
			return
		}

		// One generic reason for every verification failure so the edge
		// never acts as a claim oracle.
		log.Debug("token rejected", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized,
			authsdk.ErrorCodeInvalidToken, "token verification failed")
		return
	}

	InjectIdentity(r, claims.Subject, claims.Username, claims.Roles, token)
	f.proxy.ServeHTTP(w, r)
}

func (f *AuthFilter) isPublic(path string) bool {
	for _, prefix := range f.PublicPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
