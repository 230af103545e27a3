/*
Package authsdk provides a client SDK for the AgriLink identity service.

# Overview

The SDK wraps the identity service's HTTP API with typed methods: credential
login, refresh-token rotation, logout, the public JWKS endpoint, the internal
validation API, and health probes.

	client := authsdk.NewSDKClient("https://id.agrilink.internal")

	tokens, err := client.Login(ctx, "freya", "hunter2-but-better")
	if err != nil {
		var apiErr *authsdk.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			// bad credentials
		}
		return err
	}

	// Later, rotate the refresh token for a fresh pair.
	tokens, err = client.Refresh(ctx, tokens.RefreshToken)

# Edge verification

Services that verify access tokens locally use KeySetCache, which implements
jwtx.KeySource over the identity service's published key set. Cache misses on
an unknown key id trigger exactly one re-fetch regardless of how many
goroutines miss concurrently.

	cache := authsdk.NewKeySetCache(client, authsdk.KeySetCacheConfig{})
	verifier := jwtx.NewVerifierRS256(cache, "https://id.agrilink.internal")

# Error handling

Every non-2xx response is returned as an *APIError carrying the service's
error code, HTTP status and message. Network and decoding failures are
returned as wrapped plain errors.
*/
package authsdk
