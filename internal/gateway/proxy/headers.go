package proxy

import (
	"net/http"
	"strings"
)

// Identity headers injected for upstream services. Anything arriving from the
// outside under these names is forged and must be stripped before forwarding.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUsername  = "X-Username"
	HeaderUserRoles = "X-User-Roles"
)

var identityHeaders = []string{HeaderUserID, HeaderUsername, HeaderUserRoles}

// StripIdentityHeaders removes all inbound identity headers from the request.
// Runs on every request, public or not, so upstreams can trust the headers
// unconditionally.
func StripIdentityHeaders(r *http.Request) {
	for _, h := range identityHeaders {
		r.Header.Del(h)
	}
}

// InjectIdentity sets the identity headers and a normalized Authorization
// header for a verified request.
func InjectIdentity(r *http.Request, userID, username string, roles []string, token string) {
	r.Header.Set(HeaderUserID, userID)
	r.Header.Set(HeaderUsername, username)
	r.Header.Set(HeaderUserRoles, strings.Join(roles, ","))
	r.Header.Set("Authorization", "Bearer "+token)
}
