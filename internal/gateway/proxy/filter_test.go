package proxy_test

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/agrilink/internal/gateway/proxy"
	"github.com/agrilink/agrilink/pkg/jwtx"
)

const testIssuer = "https://id.agrilink.internal"

// echoUpstream records the headers of the last request it received.
type echoUpstream struct {
	srv  *httptest.Server
	last http.Header
}

func newEchoUpstream(t *testing.T) *echoUpstream {
	t.Helper()

	e := &echoUpstream{}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e.last = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func newFilter(t *testing.T, upstream *echoUpstream) (*proxy.AuthFilter, *jwtx.KeyManager) {
	t.Helper()

	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  testIssuer,
		NumKeys: 1,
	})
	require.NoError(t, err)

	u, err := url.Parse(upstream.srv.URL)
	require.NoError(t, err)

	return proxy.NewAuthFilter(u, km.Verifier), km
}

func signToken(t *testing.T, km *jwtx.KeyManager, subject, username string, roles []string) string {
	t.Helper()

	claims := jwtx.NewAccessClaims(subject, username, roles, time.Minute, testIssuer, time.Now())
	token, err := km.GetSigner().Sign(claims)
	require.NoError(t, err)
	return token
}

func TestFilterInjectsIdentity(t *testing.T) {
	upstream := newEchoUpstream(t)
	filter, km := newFilter(t, upstream)
	token := signToken(t, km, "user-1", "freya", []string{"FARMER", "AGENT"})

	req := httptest.NewRequest(http.MethodGet, "/v1/fields", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	filter.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", upstream.last.Get(proxy.HeaderUserID))
	assert.Equal(t, "freya", upstream.last.Get(proxy.HeaderUsername))
	assert.Equal(t, "FARMER,AGENT", upstream.last.Get(proxy.HeaderUserRoles))
	assert.Equal(t, "Bearer "+token, upstream.last.Get("Authorization"))
}

func TestFilterRejectsMissingBearer(t *testing.T) {
	upstream := newEchoUpstream(t)
	filter, _ := newFilter(t, upstream)

	for name, setup := range map[string]func(*http.Request){
		"no header":    func(r *http.Request) {},
		"empty bearer": func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") },
		"basic auth":   func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") },
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/fields", nil)
			setup(req)
			rec := httptest.NewRecorder()
			filter.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t,
				`{"error":"invalid_token","status":401,"message":"bearer token required"}`,
				rec.Body.String())
		})
	}
}

func TestFilterRejectsBadTokenWithGenericReason(t *testing.T) {
	upstream := newEchoUpstream(t)
	filter, _ := newFilter(t, upstream)

	// Token signed by a key the filter has never seen.
	foreign, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer:  testIssuer,
		NumKeys: 1,
	})
	require.NoError(t, err)
	token := signToken(t, foreign, "user-1", "freya", nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/fields", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	filter.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid_token", body["error"])
	assert.Equal(t, "token verification failed", body["message"])
}

type failingKeySource struct{ err error }

func (f failingKeySource) Get(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	return nil, f.err
}

func TestFilterMapsKeySourceOutageTo503(t *testing.T) {
	upstream := newEchoUpstream(t)
	filter, km := newFilter(t, upstream)
	token := signToken(t, km, "user-1", "freya", nil)

	filter.Verifier = jwtx.NewVerifierRS256(
		failingKeySource{err: jwtx.ErrUpstream},
		testIssuer,
	)

	req := httptest.NewRequest(http.MethodGet, "/v1/fields", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	filter.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "upstream_unavailable", body["error"])
}

func TestFilterPublicPrefixSkipsAuth(t *testing.T) {
	upstream := newEchoUpstream(t)
	filter, _ := newFilter(t, upstream)
	filter.PublicPrefixes = []string{"/public/", "/v1/auth/"}

	req := httptest.NewRequest(http.MethodGet, "/public/prices", nil)
	req.Header.Set(proxy.HeaderUserID, "forged")
	rec := httptest.NewRecorder()
	filter.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// Forwarded, but forged identity headers are gone.
	assert.Empty(t, upstream.last.Get(proxy.HeaderUserID))
}

func TestFilterDisabledForwardsEverything(t *testing.T) {
	upstream := newEchoUpstream(t)
	filter, _ := newFilter(t, upstream)
	filter.Disabled = true

	req := httptest.NewRequest(http.MethodGet, "/v1/fields", nil)
	req.Header.Set(proxy.HeaderUserRoles, "ADMIN")
	rec := httptest.NewRecorder()
	filter.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, upstream.last.Get(proxy.HeaderUserRoles))
}

func TestFilterStripsForgedHeadersOnAuthedPath(t *testing.T) {
	upstream := newEchoUpstream(t)
	filter, km := newFilter(t, upstream)
	token := signToken(t, km, "user-1", "freya", []string{"FARMER"})

	req := httptest.NewRequest(http.MethodGet, "/v1/fields", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(proxy.HeaderUserID, "forged")
	req.Header.Set(proxy.HeaderUserRoles, "ADMIN")
	rec := httptest.NewRecorder()
	filter.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	// The verified identity wins over anything the client sent.
	assert.Equal(t, "user-1", upstream.last.Get(proxy.HeaderUserID))
	assert.Equal(t, "FARMER", upstream.last.Get(proxy.HeaderUserRoles))
}
