package authsdk

import (
	"context"
	"net/http"
)

// Login exchanges a username and password for a token pair.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", LoginRequest{
		Username: username,
		Password: password,
	}, nil)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokens, nil
}

// Refresh rotates a refresh token for a new token pair. The presented token
// is revoked whether or not the rotation succeeds for this caller; on a
// concurrent rotation exactly one caller receives the new pair.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", RefreshRequest{
		RefreshToken: refreshToken,
	}, nil)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokens, nil
}

// Logout revokes the presented refresh token.
func (c *SDKClient) Logout(ctx context.Context, refreshToken string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", LogoutRequest{
		RefreshToken: refreshToken,
	}, nil)
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}

// LogoutAll revokes every refresh token belonging to the caller identified by
// the access token.
func (c *SDKClient) LogoutAll(ctx context.Context, accessToken string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/auth/logout-all", nil, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}
